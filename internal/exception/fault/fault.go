// Package fault holds the pluggable policy for synchronous exceptions that
// the kernel chooses to survive rather than escalate: spec.md §4.4 calls
// for "a single function that returns Survive(advance_bytes) or
// Fatal(reason)" in place of a hard-coded decision, so a future caller can
// swap in real page-fault handling without touching the dispatch table in
// package exception.
package fault

// Outcome is the verdict a Policy returns for one synchronous exception.
type Outcome struct {
	// Survived is true when the faulting context should resume.
	Survived bool
	// AdvanceBytes is added to ELR before eret when Survived is true.
	AdvanceBytes uint64
	// Reason explains a Fatal outcome, or documents why a Survive
	// outcome was chosen (printed either way for the diagnostic log).
	Reason string
}

// Survive builds a Survive outcome that advances ELR by advanceBytes.
func Survive(advanceBytes uint64, reason string) Outcome {
	return Outcome{Survived: true, AdvanceBytes: advanceBytes, Reason: reason}
}

// Fatal builds a Fatal outcome.
func Fatal(reason string) Outcome {
	return Outcome{Survived: false, Reason: reason}
}

// Policy decides the outcome for a classified synchronous exception. ec is
// the ESR_EL1.EC value, farValid/far describe the faulting address when
// applicable. The default policy (see DefaultPolicy) implements spec.md's
// demo behavior: breakpoints and data aborts are survived by skipping the
// faulting instruction; everything else is fatal.
type Policy func(ec uint64, farValid bool, far uint64) Outcome

// breakpoint and data-abort EC values duplicated from package exception to
// avoid an import cycle (exception imports fault to evaluate policy).
const (
	ecBrk64              = 0b111100
	ecDataAbortLowerEL   = 0b100100
	ecDataAbortCurrentEL = 0b100101
)

// DefaultPolicy survives BRK64 and both data-abort classes by advancing
// ELR 4 bytes (one instruction); everything else is fatal. This is
// spec.md's explicitly named "survival-for-demo" default — a real kernel
// would inspect ISS here and map the page, signal the task, or escalate.
func DefaultPolicy(ec uint64, farValid bool, far uint64) Outcome {
	switch ec {
	case ecBrk64:
		return Survive(4, "breakpoint")
	case ecDataAbortLowerEL, ecDataAbortCurrentEL:
		return Survive(4, "data abort")
	default:
		return Fatal("unclassified synchronous exception")
	}
}

var active Policy = DefaultPolicy

// SetPolicy installs the Policy consulted by package exception's
// synchronous handler. Passing nil restores DefaultPolicy.
func SetPolicy(p Policy) {
	if p == nil {
		p = DefaultPolicy
	}
	active = p
}

// Evaluate runs the installed policy.
func Evaluate(ec uint64, farValid bool, far uint64) Outcome {
	return active(ec, farValid, far)
}
