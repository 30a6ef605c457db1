// Package table builds and populates the kernel's translation tables: a
// two-level tree (level-2 "lookup" descriptors over level-3 "page"
// descriptors) for the 64 KiB granule, 1 GiB kernel address space chosen in
// spec.md §4.2.
//
// The descriptor-bit layout is grounded on mazboot's createPageTableEntry/
// createTableEntry/mapPage (main/mmu.go), which walks a 4-level, 4 KiB-page
// tree; this package keeps the same bit assignments (PTE_VALID, PTE_TABLE,
// PTE_AF, PTE_SH_INNER, UXN/PXN, AP, MAIR index) but collapses the walk to
// the two levels a 64 KiB granule / 1 GiB address space requires, matching
// original_source's KernelGranule = TranslationGranule<65536> and
// KernelVirtAddrSpace = AddressSpace<1<<30> (src/bsp/raspberrypi/memory/mmu.rs)
// and the interface::TranslationTable contract in
// kernel/src/memory/mmu/translation_table.rs (init/map_at/
// try_virt_page_addr_to_phys_page_addr/try_page_attributes/
// try_virt_addr_to_phys_addr).
package table

import (
	"fmt"
	"unsafe"

	"github.com/mazboot/rpi3kernel/internal/memaddr"
)

const (
	entrySize = 8 // bytes per descriptor

	// Each table is exactly one granule, holding granule/entrySize entries.
	entriesPerTable = memaddr.GranuleSize / entrySize // 8192

	// A level-3 table's entriesPerTable 64 KiB pages span this many bytes.
	l3TableSpan = entriesPerTable * memaddr.GranuleSize // 512 MiB

	// The kernel's whole address space is 1 GiB, so the level-2 root needs
	// exactly two entries (spec.md §4.2: "a two-entry level-2 root").
	l2RootEntries = (1 << 30) / l3TableSpan

	l3IndexBits  = 13 // log2(entriesPerTable)
	l3IndexMask  = entriesPerTable - 1
	l2IndexShift = memaddr.GranuleShift + l3IndexBits // bit position of the L2 index
)

// descriptor bit layout, adapted from mazboot's PTE_* constants.
const (
	descValid = 1 << 0
	descTable = 1 << 1 // set on both level-2 table descriptors and level-3 page descriptors

	descAF = 1 << 10 // access flag, must be set for hardware-managed entries

	descAPReadOnly = 1 << 7 // AP[2]; clear = read/write, set = read-only
	descSHInner    = 3 << 8

	descUXN = 1 << 54
	descPXN = 1 << 53

	descMAIRShift = 2
	descMAIRMask  = 0x7 << descMAIRShift
)

// MAIR_EL1 attribute indices this table layer assumes the MMU driver has
// programmed (see internal/mmu): index 0 is normal cacheable DRAM, index 1
// is device-nGnRnE.
const (
	mairNormalIndex = 0
	mairDeviceIndex = 1
)

func mairIndex(attr memaddr.MemAttributes) uint64 {
	if attr == memaddr.Device {
		return mairDeviceIndex
	}
	return mairNormalIndex
}

func encodePageDescriptor(phys uintptr, attr memaddr.AttributeFields) uint64 {
	d := uint64(phys) | descValid | descTable | descAF | descSHInner
	d |= mairIndex(attr.MemAttributes) << descMAIRShift
	if attr.AccPerms == memaddr.ReadOnly {
		d |= descAPReadOnly
	}
	if attr.ExecuteNever {
		d |= descUXN | descPXN
	}
	return d
}

func decodeAttributeFields(desc uint64) memaddr.AttributeFields {
	var attr memaddr.AttributeFields
	if (desc&descMAIRMask)>>descMAIRShift == mairDeviceIndex {
		attr.MemAttributes = memaddr.Device
	} else {
		attr.MemAttributes = memaddr.CacheableDRAM
	}
	if desc&descAPReadOnly != 0 {
		attr.AccPerms = memaddr.ReadOnly
	} else {
		attr.AccPerms = memaddr.ReadWrite
	}
	attr.ExecuteNever = desc&(descUXN|descPXN) != 0
	return attr
}

func encodeTableDescriptor(phys uintptr) uint64 {
	return uint64(phys) | descValid | descTable
}

// rawTable is one granule-sized array of descriptors.
type rawTable [entriesPerTable]uint64

// tablePool is a bump allocator over a static, BSS-resident byte region,
// the way mazboot's allocatePageTable() carves level-1/2/3 tables out of a
// reserved PAGE_TABLE_BASE..PAGE_TABLE_END region (main/mmu.go) — tables
// need to live in the kernel's data section at a granule-aligned address,
// and nothing is available to allocate them dynamically this early in boot.
// The two-entry root lives inside Table itself; the pool holds only level-3
// tables. A real deployment's linker script would size this region, but the
// pool itself is architecture-agnostic.
// tablePoolCapacity bounds how many level-3 tables this kernel image can
// ever allocate. Each Table instance needs at most l2RootEntries of them;
// headroom beyond that exists only so host-side tests can construct more
// than one Table without exhausting the pool.
const tablePoolCapacity = 32

// Each slot is two granules wide so that, whatever alignment the Go
// compiler happens to give the array itself, rounding the slot's start
// address up to the next granule boundary always lands a full granule
// before the slot ends.
var tablePool struct {
	region [tablePoolCapacity][2 * memaddr.GranuleSize]byte
	next   int
}

func allocTable() *rawTable {
	if tablePool.next >= len(tablePool.region) {
		return nil
	}
	slot := &tablePool.region[tablePool.next]
	tablePool.next++

	addr := uintptr(unsafe.Pointer(&slot[0]))
	aligned := (addr + memaddr.GranuleSize - 1) &^ (memaddr.GranuleSize - 1)
	return (*rawTable)(unsafe.Pointer(aligned))
}

func (t *rawTable) physAddr() uintptr {
	return uintptr(unsafe.Pointer(&t[0]))
}

// state is the Uninitialized -> Initialized machine spec.md §4.2 requires;
// mapping operations are rejected before Init.
type state int

const (
	stateUninitialized state = iota
	stateInitialized
)

// Table is the kernel's translation table: a two-entry level-2 root, each
// entry lazily pointing at a level-3 table of 64 KiB page descriptors. Only
// one instance is meant to exist per spec.md §3 ("owned by a single
// process-wide cell guarded by an init-state lock"); see
// internal/mmu.KernelTable for that cell.
type Table struct {
	root  [l2RootEntries]uint64
	l3    [l2RootEntries]*rawTable
	state state
}

// Init performs one-shot setup. Subsequent calls are no-ops, matching
// spec.md's "Uninitialized -> Initialized via init ... subsequent calls are
// no-ops" (mirrored from original_source's
// interface::TranslationTable::init contract).
func (t *Table) Init() error {
	if t.state == stateInitialized {
		return nil
	}
	t.state = stateInitialized
	return nil
}

func (t *Table) requireInitialized() error {
	if t.state != stateInitialized {
		return fmt.Errorf("table: not initialized")
	}
	return nil
}

func l2Index(va uintptr) int      { return int(va >> l2IndexShift) }
func l3Index(va uintptr) uintptr { return (va >> memaddr.GranuleShift) & l3IndexMask }

// l3TableFor returns the level-3 table backing the given level-2 index,
// allocating it on first touch — spec.md's "allocate the covering
// level-3 table on first touch" tie-break for a virt_region that starts
// mid-lookup.
func (t *Table) l3TableFor(idx int) (*rawTable, error) {
	if t.l3[idx] != nil {
		return t.l3[idx], nil
	}
	raw := allocTable()
	if raw == nil {
		return nil, fmt.Errorf("table: out of page-table storage")
	}
	t.l3[idx] = raw
	t.root[idx] = encodeTableDescriptor(raw.physAddr())
	return raw, nil
}

// MapAt maps virtRegion to physRegion with the given attributes. It returns
// an error for an empty virtRegion or for regions whose page counts differ,
// and rejects overlap with any already-mapped page rather than silently
// rewriting it, per spec.md §4.2.
func (t *Table) MapAt(
	virtRegion memaddr.MemoryRegion[memaddr.Virtual],
	physRegion memaddr.MemoryRegion[memaddr.Physical],
	attr memaddr.AttributeFields,
) error {
	if err := t.requireInitialized(); err != nil {
		return err
	}
	if virtRegion.IsEmpty() {
		return fmt.Errorf("table: empty region")
	}
	if virtRegion.NumPages() != physRegion.NumPages() {
		return fmt.Errorf("table: virt/phys region page counts differ (%d != %d)",
			virtRegion.NumPages(), physRegion.NumPages())
	}

	numPages := int(virtRegion.NumPages())
	for i := 0; i < numPages; i++ {
		vp := virtRegion.Start().Offset(int64(i))
		pp := physRegion.Start().Offset(int64(i))

		idx2 := l2Index(vp.Raw())
		if idx2 < 0 || idx2 >= l2RootEntries {
			return fmt.Errorf("table: virtual address %#x outside the kernel's 1 GiB address space", vp.Raw())
		}
		l3, err := t.l3TableFor(idx2)
		if err != nil {
			return err
		}
		idx3 := l3Index(vp.Raw())
		if l3[idx3]&descValid != 0 {
			return fmt.Errorf("table: virtual address %#x is already mapped", vp.Raw())
		}
		l3[idx3] = encodePageDescriptor(pp.Raw(), attr)
	}
	return nil
}

func (t *Table) lookup(virtPage memaddr.PageAddress[memaddr.Virtual]) (uint64, error) {
	if err := t.requireInitialized(); err != nil {
		return 0, err
	}
	idx2 := l2Index(virtPage.Raw())
	if idx2 < 0 || idx2 >= l2RootEntries || t.l3[idx2] == nil {
		return 0, fmt.Errorf("table: %#x is not mapped", virtPage.Raw())
	}
	idx3 := l3Index(virtPage.Raw())
	desc := t.l3[idx2][idx3]
	if desc&descValid == 0 {
		return 0, fmt.Errorf("table: %#x is not mapped", virtPage.Raw())
	}
	return desc, nil
}

// TryVirtPageAddrToPhysPageAddr walks the tables for a page-aligned virtual
// address.
func (t *Table) TryVirtPageAddrToPhysPageAddr(
	virtPage memaddr.PageAddress[memaddr.Virtual],
) (memaddr.PageAddress[memaddr.Physical], error) {
	desc, err := t.lookup(virtPage)
	if err != nil {
		return memaddr.PageAddress[memaddr.Physical]{}, err
	}
	// Output address bits [47:16] for the 64 KiB granule; the attribute bits
	// above and below them (UXN/PXN, AF, SH, AP, MAIR index) are dropped.
	return memaddr.AsPageAddress[memaddr.Physical](uintptr(desc & 0x0000_FFFF_FFFF_0000))
}

// TryPageAttributes returns the decoded attributes of a mapped page.
func (t *Table) TryPageAttributes(virtPage memaddr.PageAddress[memaddr.Virtual]) (memaddr.AttributeFields, error) {
	desc, err := t.lookup(virtPage)
	if err != nil {
		return memaddr.AttributeFields{}, err
	}
	return decodeAttributeFields(desc), nil
}

// TryVirtAddrToPhysAddr translates an arbitrary (not necessarily
// page-aligned) virtual address.
func (t *Table) TryVirtAddrToPhysAddr(
	virt memaddr.Address[memaddr.Virtual],
) (memaddr.Address[memaddr.Physical], error) {
	page := virt.ToPage()
	physPage, err := t.TryVirtPageAddrToPhysPageAddr(page)
	if err != nil {
		return memaddr.Address[memaddr.Physical]{}, err
	}
	withinPage := int64(virt.Raw() - page.Raw())
	return physPage.Addr().Offset(withinPage), nil
}

// RootPhysAddr returns the physical address of the level-2 root, the value
// the MMU driver programs into TTBR0_EL1.
func (t *Table) RootPhysAddr() uintptr {
	return uintptr(unsafe.Pointer(&t.root[0]))
}
