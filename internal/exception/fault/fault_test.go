package fault

import "testing"

func TestDefaultPolicySurvivesKnownClasses(t *testing.T) {
	for _, ec := range []uint64{ecBrk64, ecDataAbortLowerEL, ecDataAbortCurrentEL} {
		out := DefaultPolicy(ec, false, 0)
		if !out.Survived {
			t.Errorf("EC %#x: expected Survived, got Fatal(%s)", ec, out.Reason)
		}
		if out.AdvanceBytes != 4 {
			t.Errorf("EC %#x: AdvanceBytes = %d, want 4", ec, out.AdvanceBytes)
		}
	}
}

func TestDefaultPolicyFatalOtherwise(t *testing.T) {
	out := DefaultPolicy(0b000000, false, 0)
	if out.Survived {
		t.Error("expected unclassified exception to be fatal")
	}
}

func TestSetPolicyNilRestoresDefault(t *testing.T) {
	SetPolicy(func(ec uint64, farValid bool, far uint64) Outcome {
		return Fatal("custom")
	})
	defer SetPolicy(nil)

	if out := Evaluate(ecBrk64, false, 0); out.Survived {
		t.Fatal("custom policy should have been active")
	}

	SetPolicy(nil)
	if out := Evaluate(ecBrk64, false, 0); !out.Survived {
		t.Error("SetPolicy(nil) should restore DefaultPolicy")
	}
}
