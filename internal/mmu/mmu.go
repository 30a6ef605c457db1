// Package mmu is the MMU driver: it programs MAIR_EL1/TCR_EL1/TTBR0_EL1/
// SCTLR_EL1 from a translation table built by package table, and answers
// address-translation queries once paging is live.
//
// The register-programming sequence (MAIR, then TCR, ISB, TTBR0, DSB,
// SCTLR with M+C+I, ISB, TLB invalidate) is grounded on mazboot's
// enableMMU (main/mmu.go): same ordering, same readback-verify-after-write
// discipline, generalized from its 4 KiB/4-level, identity-mapped layout to
// the 64 KiB granule / 1 GiB / two-level layout package table builds. The
// granule-support check against ID_AA64MMFR0_EL1 before touching SCTLR
// answers spec.md §4.3's "unsupported granule on this CPU -> return an
// error before writing SCTLR".
package mmu

import (
	"fmt"

	"github.com/mazboot/rpi3kernel/internal/cpu/regs"
	"github.com/mazboot/rpi3kernel/internal/memaddr"
	"github.com/mazboot/rpi3kernel/internal/mmu/table"
)

// MAIR_EL1 attribute encodings. Index 0 (normal cacheable DRAM) and index 1
// (device-nGnRnE) are the two package table's descriptors select between;
// see table.go's mairNormalIndex/mairDeviceIndex.
const (
	mairAttrNormal = 0xFF // Inner/outer write-back, read/write-allocate
	mairAttrDevice = 0x00 // nGnRnE: no gathering, no reordering, no early write ack

	mairValue = mairAttrNormal<<0 | mairAttrDevice<<8
)

// TCR_EL1 fields for a 64 KiB granule, 1 GiB (T0SZ=34) address space via
// TTBR0, with TTBR1 disabled (EPD1).
const (
	tcrT0SZ        = 64 - 30 // 1 GiB => 30 VA bits
	tcrTG0_64KiB   = 1 << 14 // TG0 = 0b01 selects the 64 KiB granule
	tcrIRGN0WBWA   = 1 << 8
	tcrORGN0WBWA   = 1 << 10
	tcrSH0Inner    = 3 << 12
	tcrEPD1Disable = 1 << 23 // no TTBR1 walks; kernel uses TTBR0 only (spec.md §4.3)
	tcrIPS40Bit    = 2 << 32

	tcrValue = uint64(tcrT0SZ) | tcrTG0_64KiB | tcrIRGN0WBWA | tcrORGN0WBWA | tcrSH0Inner | tcrEPD1Disable | tcrIPS40Bit
)

const (
	sctlrM = 1 << 0 // MMU enable
	sctlrC = 1 << 2 // data cache enable
	sctlrI = 1 << 12
)

// idAA64MMFR0TGran64Shift/Mask decode ID_AA64MMFR0_EL1.TGran64: 0x0 means
// the 64 KiB granule is supported, 0xF means it is not.
const (
	idAA64MMFR0TGran64Shift = 24
	idAA64MMFR0TGran64Mask  = 0xF
	idAA64MMFR0TGran64NotSupported = 0xF
)

// KernelTable is the single process-wide translation table cell
// spec.md §3 describes ("owned by a single process-wide cell guarded by
// an init-state lock" — the init-state lock is table.Table's own
// Uninitialized/Initialized state machine, so no separate mutex is
// needed here). The boot trampoline and startup orchestration both
// operate on this one instance.
var KernelTable table.Table

// granuleSupported reports whether this CPU implements the 64 KiB granule.
func granuleSupported() bool {
	mmfr0 := regs.ReadIdAa64mmfr0El1()
	tgran64 := (mmfr0 >> idAA64MMFR0TGran64Shift) & idAA64MMFR0TGran64Mask
	return tgran64 != idAA64MMFR0TGran64NotSupported
}

// Enable programs the translation hardware to walk t and turns paging on.
// It must run with the MMU off; on return with a nil error, virtual
// addresses mapped in t are live. On any error nothing in SCTLR_EL1 has
// been touched; the caller (the boot trampoline) treats this as fatal.
func Enable(t *table.Table) error {
	if !granuleSupported() {
		return fmt.Errorf("mmu: CPU does not support the 64 KiB translation granule")
	}

	regs.WriteMairEl1(mairValue)
	regs.Isb()
	if regs.ReadMairEl1()&0xFFFF != mairValue {
		return fmt.Errorf("mmu: MAIR_EL1 readback mismatch")
	}

	regs.WriteTcrEl1(tcrValue)
	regs.Isb()
	if regs.ReadTcrEl1()&0x3F != uint64(tcrT0SZ) {
		return fmt.Errorf("mmu: TCR_EL1 T0SZ readback mismatch")
	}

	regs.WriteTtbr1El1(0)
	regs.WriteTtbr0El1(uint64(t.RootPhysAddr()))
	regs.Dsb()
	if regs.ReadTtbr0El1()&^0xFFFF != uint64(t.RootPhysAddr()) {
		return fmt.Errorf("mmu: TTBR0_EL1 readback mismatch")
	}

	sctlr := regs.ReadSctlrEl1()
	sctlr |= sctlrM | sctlrC | sctlrI

	regs.Dsb()
	regs.Isb()
	regs.WriteSctlrEl1(sctlr)
	regs.Isb()
	regs.InvalidateTLBAll()
	regs.Dsb()
	regs.Isb()

	return nil
}

// TranslateVirtAddr resolves a virtual address through the live tables.
// Exposed for the fault-address formatter and diagnostics; the steady
// state has no need to re-walk tables it already wrote.
func TranslateVirtAddr(t *table.Table, virt memaddr.Address[memaddr.Virtual]) (memaddr.Address[memaddr.Physical], error) {
	return t.TryVirtAddrToPhysAddr(virt)
}
