package exception

import "testing"

func TestFaultAddressValid(t *testing.T) {
	specs := []struct {
		ec    uint64
		valid bool
	}{
		{ECInstrAbortLowerEL, true},
		{ECInstrAbortCurrentEL, true},
		{ECPCAlignmentFault, true},
		{ECDataAbortLowerEL, true},
		{ECDataAbortCurrentEL, true},
		{ECWatchpointLowerEL, true},
		{ECWatchpointCurrentEL, true},
		{ECBrk64, false},
		{ECUnknown, false},
		{ECSVCAArch64, false},
		{ECSPAlignmentFault, false},
	}

	for _, spec := range specs {
		ctx := &Context{ESR: EsrEL1(spec.ec << esrECShift)}
		if got := ctx.FaultAddressValid(); got != spec.valid {
			t.Errorf("EC %#x: FaultAddressValid() = %v, want %v", spec.ec, got, spec.valid)
		}
	}
}

func TestEsrEL1ECAndISS(t *testing.T) {
	raw := EsrEL1(uint64(ECDataAbortCurrentEL)<<esrECShift | 0x1234)
	if got := raw.EC(); got != ECDataAbortCurrentEL {
		t.Errorf("EC() = %#x, want %#x", got, ECDataAbortCurrentEL)
	}
	if got := raw.ISS(); got != 0x1234 {
		t.Errorf("ISS() = %#x, want %#x", got, 0x1234)
	}
}

func TestSetSymbolResolverNilRestoresDefault(t *testing.T) {
	defer SetSymbolResolver(nil)

	SetSymbolResolver(nil)
	if activeResolver != NoSymbols {
		t.Error("SetSymbolResolver(nil) should install NoSymbols")
	}
}

type fakeResolver struct{}

func (fakeResolver) Lookup(addr uint64) (string, bool) {
	if addr == 0x1000 {
		return "kernel_init", true
	}
	return "", false
}

func TestFormatResolvesSymbol(t *testing.T) {
	SetSymbolResolver(fakeResolver{})
	defer SetSymbolResolver(nil)

	ctx := &Context{ELR: 0x1000, ESR: EsrEL1(ECUnknown << esrECShift)}
	out := Format(ctx, 0)
	if !contains(out, "kernel_init") {
		t.Errorf("expected formatted output to contain resolved symbol name, got:\n%s", out)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
