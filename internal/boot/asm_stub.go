package boot

// This file documents the assembly entry point the Go side of this
// package expects to exist; it is not itself compiled into anything (no
// function bodies live here — see boot.go for the actual extern
// declarations).
//
// The real entry point, conventionally named _start, is the only code
// that runs before BSS is known to be zeroed. It is responsible for:
//
//  1. Reading MPIDR_EL1 and parking every core but 0 (boot.IsBootCore /
//     boot.ParkNonBootCore can't run yet — no stack exists for a Go call
//     until this step is done).
//  2. Zeroing the BSS section between the linker-provided __bss_start
//     and __bss_end symbols.
//  3. Setting SP (EL2's stack, used only transiently) to a fixed address
//     below the kernel image.
//  4. Branching into the Go runtime's entry, which eventually reaches
//     boot.PrepareEL2ToEL1Transition, boot.EnableMMUAndCaching,
//     boot.prepareBacktraceReset and boot.Eret in that order.
//
// Out of scope for this retrieval pack for the same reason mazboot keeps
// its own entry assembly in a sibling "mazboot/asm" package rather than
// Go source: the Go toolchain has no inline-assembly facility, so this
// file can only be written as a hand-authored .s counterpart, which this
// retrieval pack does not include a template for. The extern
// declarations in boot.go describe its contract precisely enough that
// the .s file is a mechanical, register-allocation-free translation of
// PrepareEL2ToEL1Transition's callees.
