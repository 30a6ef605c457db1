package table

import (
	"testing"

	"github.com/mazboot/rpi3kernel/internal/memaddr"
)

func regionAt[K any](t *testing.T, start uintptr, numPages int64) memaddr.MemoryRegion[K] {
	t.Helper()
	s, err := memaddr.AsPageAddress[K](start)
	if err != nil {
		t.Fatal(err)
	}
	return memaddr.NewMemoryRegion(s, s.Offset(numPages))
}

func TestMapAtRejectsBeforeInit(t *testing.T) {
	var tb Table
	v := regionAt[memaddr.Virtual](t, 0, 1)
	p := regionAt[memaddr.Physical](t, 0, 1)

	if err := tb.MapAt(v, p, memaddr.AttributeFields{}); err == nil {
		t.Error("expected MapAt to fail before Init")
	}
}

func TestInitIsIdempotent(t *testing.T) {
	var tb Table
	if err := tb.Init(); err != nil {
		t.Fatal(err)
	}
	if err := tb.Init(); err != nil {
		t.Fatalf("second Init must be a no-op, got error: %v", err)
	}
}

func TestMapAtAndTranslateRoundTrip(t *testing.T) {
	var tb Table
	if err := tb.Init(); err != nil {
		t.Fatal(err)
	}

	v := regionAt[memaddr.Virtual](t, 0, 4)
	p := regionAt[memaddr.Physical](t, 0x40000000, 4)
	attr := memaddr.AttributeFields{
		MemAttributes: memaddr.CacheableDRAM,
		AccPerms:      memaddr.ReadWrite,
		ExecuteNever:  true,
	}

	if err := tb.MapAt(v, p, attr); err != nil {
		t.Fatalf("MapAt: %v", err)
	}

	for i := int64(0); i < 4; i++ {
		vp := v.Start().Offset(i)
		got, err := tb.TryVirtPageAddrToPhysPageAddr(vp)
		if err != nil {
			t.Fatalf("page %d: %v", i, err)
		}
		want := p.Start().Offset(i)
		if got.Raw() != want.Raw() {
			t.Errorf("page %d: got phys %#x, want %#x", i, got.Raw(), want.Raw())
		}

		gotAttr, err := tb.TryPageAttributes(vp)
		if err != nil {
			t.Fatalf("page %d attrs: %v", i, err)
		}
		if gotAttr != attr {
			t.Errorf("page %d: attrs = %+v, want %+v", i, gotAttr, attr)
		}
	}
}

func TestMapAtRejectsOverlap(t *testing.T) {
	var tb Table
	if err := tb.Init(); err != nil {
		t.Fatal(err)
	}

	v := regionAt[memaddr.Virtual](t, 0, 2)
	p := regionAt[memaddr.Physical](t, 0x40000000, 2)
	attr := memaddr.AttributeFields{MemAttributes: memaddr.CacheableDRAM, AccPerms: memaddr.ReadWrite}

	if err := tb.MapAt(v, p, attr); err != nil {
		t.Fatalf("first MapAt: %v", err)
	}
	if err := tb.MapAt(v, p, attr); err == nil {
		t.Error("expected second MapAt over the same region to fail")
	}
}

func TestMapAtRejectsMismatchedPageCounts(t *testing.T) {
	var tb Table
	if err := tb.Init(); err != nil {
		t.Fatal(err)
	}

	v := regionAt[memaddr.Virtual](t, 0, 2)
	p := regionAt[memaddr.Physical](t, 0x40000000, 1)

	if err := tb.MapAt(v, p, memaddr.AttributeFields{}); err == nil {
		t.Error("expected MapAt to reject unequal page counts")
	}
}

func TestTryVirtAddrToPhysAddrUnmapped(t *testing.T) {
	var tb Table
	if err := tb.Init(); err != nil {
		t.Fatal(err)
	}
	va := memaddr.NewAddress[memaddr.Virtual](0x12345)
	if _, err := tb.TryVirtAddrToPhysAddr(va); err == nil {
		t.Error("expected lookup of an unmapped address to fail")
	}
}

func TestTryVirtAddrToPhysAddrWithinPageOffset(t *testing.T) {
	var tb Table
	if err := tb.Init(); err != nil {
		t.Fatal(err)
	}

	v := regionAt[memaddr.Virtual](t, 0, 1)
	p := regionAt[memaddr.Physical](t, 0x40000000, 1)
	if err := tb.MapAt(v, p, memaddr.AttributeFields{AccPerms: memaddr.ReadWrite}); err != nil {
		t.Fatal(err)
	}

	va := memaddr.NewAddress[memaddr.Virtual](0x100)
	phys, err := tb.TryVirtAddrToPhysAddr(va)
	if err != nil {
		t.Fatal(err)
	}
	if want := uintptr(0x40000000 + 0x100); phys.Raw() != want {
		t.Errorf("got %#x, want %#x", phys.Raw(), want)
	}
}
