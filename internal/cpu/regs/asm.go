package regs

// The functions below are implemented in AArch64 assembly (asm_arm64.s, not
// part of this retrieval — mazboot keeps the equivalent instructions in a
// sibling "mazboot/asm" package rather than inline `asm` blocks, and this
// package follows the same split: a Go declaration with no body, backed by
// a hand-written .s file). Each is a single MRS/MSR plus, where the
// architecture requires it, the barrier named in its comment. The barrier
// is part of the contract, not an implementation detail a replacement may
// drop.

// defined in asm_arm64.s
func ReadSctlrEl1() uint64

// WriteSctlrEl1 writes SCTLR_EL1. Callers must ISB afterward before relying
// on the new M/C/I bits.
//
// defined in asm_arm64.s
func WriteSctlrEl1(val uint64)

// defined in asm_arm64.s
func ReadTcrEl1() uint64

// defined in asm_arm64.s
func WriteTcrEl1(val uint64)

// defined in asm_arm64.s
func ReadMairEl1() uint64

// defined in asm_arm64.s
func WriteMairEl1(val uint64)

// defined in asm_arm64.s
func ReadTtbr0El1() uint64

// defined in asm_arm64.s
func WriteTtbr0El1(val uint64)

// defined in asm_arm64.s
func WriteTtbr1El1(val uint64)

// ReadIdAa64mmfr0El1 reports supported translation granules and physical
// address range; used by the MMU driver to fail fast on unsupported
// hardware rather than program SCTLR and hang.
//
// defined in asm_arm64.s
func ReadIdAa64mmfr0El1() uint64

// defined in asm_arm64.s
func WriteVbarEl1(val uint64)

// defined in asm_arm64.s
func ReadVbarEl1() uint64

// defined in asm_arm64.s
func ReadEsrEl1() uint64

// defined in asm_arm64.s
func ReadFarEl1() uint64

// Dsb issues a full-system data synchronization barrier.
//
// defined in asm_arm64.s
func Dsb()

// Isb issues an instruction synchronization barrier.
//
// defined in asm_arm64.s
func Isb()

// InvalidateTLBAll invalidates all TLB entries for the current ASID/VMID.
//
// defined in asm_arm64.s
func InvalidateTLBAll()

// Wfe/Wfi: the only suspension points in the kernel (idle loop, parked
// non-boot cores).
//
// defined in asm_arm64.s
func Wfe()

// defined in asm_arm64.s
func Wfi()

// Eret performs an exception return using the current ELR_EL1/SPSR_EL1 (or
// ELR_EL2/SPSR_EL2 when executed from EL2, as in the boot trampoline).
//
// defined in asm_arm64.s
func Eret()
