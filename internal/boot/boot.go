// Package boot is the EL2 -> EL1 boot trampoline: the Go side of the
// kernel's `_start` entry, grounded on original_source's
// aarch64/cpu/boot.rs (prepare_el2_to_el1_transition / _start_rust) and
// on mazboot's own split between a hand-written entry assembly and a Go
// function it calls into once the stack and BSS are usable.
//
// None of the functions here may touch package-level mutable state
// before the assembly entry point has zeroed BSS, exactly as boot.rs's
// safety comment states.
package boot

import (
	"github.com/mazboot/rpi3kernel/internal/cpu/regs"
	"github.com/mazboot/rpi3kernel/internal/mmu"
	"github.com/mazboot/rpi3kernel/internal/mmu/table"
)

// EL2-only registers touched solely during the EL2->EL1 handoff. Kept
// local to this package rather than in internal/cpu/regs since nothing
// past this trampoline ever runs at EL2 again.
//
// defined in asm_arm64.s
func readMpidrEl1() uint64

// defined in asm_arm64.s
func writeCnthctlEl2(val uint64)

// defined in asm_arm64.s
func writeCntvoffEl2(val uint64)

// defined in asm_arm64.s
func writeHcrEl2(val uint64)

// defined in asm_arm64.s
func writeSpsrEl2(val uint64)

// defined in asm_arm64.s
func writeElrEl2(val uint64)

// defined in asm_arm64.s
func writeSpEl1(val uint64)

// prepareBacktraceReset zeroes X29 (FP) and X30 (LR), making the function
// it returns into the root of any backtrace walk — mirrors boot.rs's
// prepare_backtrace_reset, called immediately before eret for the same
// reason: once EL1 starts running at kernelInitAddr, nothing upstream of
// it should appear in a backtrace.
//
// defined in asm_arm64.s
func prepareBacktraceReset()

// SPSR_EL2 fields for "return to EL1h with all interrupts masked",
// matching boot.rs's SPSR_EL2::D/A/I/F::Masked + M::EL1h.
const (
	spsrMaskD    = 1 << 9
	spsrMaskA    = 1 << 8
	spsrMaskI    = 1 << 7
	spsrMaskF    = 1 << 6
	spsrModeEL1h = 0b0101 // M[3:0]: EL1 using SP_EL1

	spsrEL2ToEL1h = spsrMaskD | spsrMaskA | spsrMaskI | spsrMaskF | spsrModeEL1h
)

// HCR_EL2.RW: EL1 (and below) execution state is AArch64.
const hcrRW = 1 << 31

// CNTHCTL_EL2: grant EL1 access to the physical counter/timer, matching
// boot.rs's CNTHCTL_EL2::EL1PCEN::SET + EL1PCTEN::SET.
const (
	cnthctlEL1PCTEN = 1 << 0
	cnthctlEL1PCEN  = 1 << 1
)

// coreIDMask extracts MPIDR_EL1.Aff0, the core number on BCM2837's
// 4-core Cortex-A53 cluster.
const coreIDMask = 0b11

// IsBootCore reports whether the calling core is core 0. Non-boot cores
// must park rather than continue into kernel_init: this kernel has no
// SMP support (spec.md §1 Non-goals).
func IsBootCore() bool {
	return readMpidrEl1()&coreIDMask == 0
}

// ParkNonBootCore is the fixed point for every core other than 0: wfe in
// a loop, forever.
func ParkNonBootCore() {
	for {
		regs.Wfe()
	}
}

// PrepareEL2ToEL1Transition programs HCR_EL2/SPSR_EL2/ELR_EL2/SP_EL1 so
// that a subsequent `eret` drops to EL1h at kernelInitAddr, with the
// stack pointer set to stackTopAddr. Mirrors boot.rs's
// prepare_el2_to_el1_transition exactly, field for field.
func PrepareEL2ToEL1Transition(stackTopAddr, kernelInitAddr uint64) {
	writeCnthctlEl2(cnthctlEL1PCEN | cnthctlEL1PCTEN)
	writeCntvoffEl2(0)
	writeHcrEl2(hcrRW)
	writeSpsrEl2(spsrEL2ToEL1h)
	writeElrEl2(kernelInitAddr)
	writeSpEl1(stackTopAddr)
}

// EnableMMUAndCaching initializes t (if not already initialized) and
// switches the MMU on; it adds no mappings of its own, so paging covers
// only what was mapped into t before the call. The Go-side equivalent
// of boot.rs's memory::mmu::enable_mmu_and_caching call made just before
// eret.
func EnableMMUAndCaching(t *table.Table) error {
	if err := t.Init(); err != nil {
		return err
	}
	return mmu.Enable(t)
}

// Eret performs the exception return to EL1, dropping execution to
// kernelInitAddr per the state programmed by PrepareEL2ToEL1Transition.
// Never returns.
func Eret() {
	regs.Eret()
}

// Bootstrap is the function the assembly entry point calls once BSS is
// zeroed and a transient EL2 stack exists: it is the Go-side
// _start_rust equivalent, running the four steps original_source's
// boot.rs performs in the same order (prepare the EL2->EL1 transition,
// switch the MMU on for the mapping kernelInitAddr lives in, reset the
// backtrace root, then eret). Like the Rust original, it never returns —
// the next instruction executed is kernelInitAddr, in EL1.
func Bootstrap(kernelTable *table.Table, stackTopAddr, kernelInitAddr uint64) {
	PrepareEL2ToEL1Transition(stackTopAddr, kernelInitAddr)

	if err := EnableMMUAndCaching(kernelTable); err != nil {
		// No console exists yet at this point in boot; parking here
		// with DAIF already masked is the only safe failure mode.
		ParkNonBootCore()
	}

	// Make kernelInitAddr the root of every backtrace taken from EL1:
	// nothing in this trampoline should ever appear in one.
	prepareBacktraceReset()

	Eret()
}
