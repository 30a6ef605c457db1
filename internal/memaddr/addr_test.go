package memaddr

import "testing"

func TestAddressAlignment(t *testing.T) {
	specs := []struct {
		raw     uintptr
		aligned bool
	}{
		{0, true},
		{GranuleSize, true},
		{GranuleSize - 1, false},
		{GranuleSize + 1, false},
		{2 * GranuleSize, true},
	}

	for i, spec := range specs {
		a := NewAddress[Virtual](spec.raw)
		if got := a.AlignedDown(GranuleSize); got != spec.aligned {
			t.Errorf("[spec %d] AlignedDown(%#x) = %v; want %v", i, spec.raw, got, spec.aligned)
		}
	}
}

func TestAddressAlignUpDown(t *testing.T) {
	a := NewAddress[Physical](GranuleSize + 1)

	if got, want := a.AlignDown(GranuleSize).Raw(), uintptr(GranuleSize); got != want {
		t.Errorf("AlignDown = %#x; want %#x", got, want)
	}
	if got, want := a.AlignUp(GranuleSize).Raw(), uintptr(2*GranuleSize); got != want {
		t.Errorf("AlignUp = %#x; want %#x", got, want)
	}
}

func TestAsPageAddressRejectsMisaligned(t *testing.T) {
	if _, err := AsPageAddress[Virtual](GranuleSize + 1); err == nil {
		t.Error("expected misaligned address to be rejected")
	}
	if _, err := AsPageAddress[Virtual](GranuleSize); err != nil {
		t.Errorf("expected aligned address to be accepted, got %v", err)
	}
}

func TestPageAddressOffset(t *testing.T) {
	start, err := AsPageAddress[Virtual](GranuleSize)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := start.Offset(3).Raw(), uintptr(4*GranuleSize); got != want {
		t.Errorf("Offset(3) = %#x; want %#x", got, want)
	}
	if got, want := start.Offset(-1).Raw(), uintptr(0); got != want {
		t.Errorf("Offset(-1) = %#x; want %#x", got, want)
	}
}

func TestMemoryRegionNumPagesAndContains(t *testing.T) {
	start, _ := AsPageAddress[Virtual](0)
	end, _ := AsPageAddress[Virtual](4 * GranuleSize)
	r := NewMemoryRegion(start, end)

	if got, want := r.NumPages(), uintptr(4); got != want {
		t.Errorf("NumPages = %d; want %d", got, want)
	}
	if r.IsEmpty() {
		t.Error("expected non-empty region")
	}

	inside, _ := AsPageAddress[Virtual](2 * GranuleSize)
	if !r.Contains(inside) {
		t.Error("expected region to contain page at offset 2")
	}
	if r.Contains(end) {
		t.Error("end-exclusive page must not be contained")
	}
}

func TestMemoryRegionEmpty(t *testing.T) {
	p, _ := AsPageAddress[Physical](GranuleSize)
	r := NewMemoryRegion(p, p)
	if !r.IsEmpty() {
		t.Error("expected start == end region to be empty")
	}
	if r.NumPages() != 0 {
		t.Errorf("expected 0 pages, got %d", r.NumPages())
	}
}

func TestMemoryRegionOverlaps(t *testing.T) {
	s1, _ := AsPageAddress[Virtual](0)
	e1, _ := AsPageAddress[Virtual](2 * GranuleSize)
	r1 := NewMemoryRegion(s1, e1)

	s2, _ := AsPageAddress[Virtual](GranuleSize)
	e2, _ := AsPageAddress[Virtual](3 * GranuleSize)
	r2 := NewMemoryRegion(s2, e2)

	if !r1.Overlaps(r2) {
		t.Error("expected overlapping regions to report overlap")
	}

	s3, _ := AsPageAddress[Virtual](2 * GranuleSize)
	e3, _ := AsPageAddress[Virtual](4 * GranuleSize)
	r3 := NewMemoryRegion(s3, e3)

	if r1.Overlaps(r3) {
		t.Error("adjacent half-open regions must not report overlap")
	}
}

func TestMemoryRegionForEachPage(t *testing.T) {
	start, _ := AsPageAddress[Virtual](0)
	end, _ := AsPageAddress[Virtual](3 * GranuleSize)
	r := NewMemoryRegion(start, end)

	var seen []uintptr
	r.ForEachPage(func(p PageAddress[Virtual]) bool {
		seen = append(seen, p.Raw())
		return true
	})

	want := []uintptr{0, GranuleSize, 2 * GranuleSize}
	if len(seen) != len(want) {
		t.Fatalf("visited %d pages; want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("page %d = %#x; want %#x", i, seen[i], want[i])
		}
	}
}

func TestMemoryRegionForEachPageStopsEarly(t *testing.T) {
	start, _ := AsPageAddress[Virtual](0)
	end, _ := AsPageAddress[Virtual](5 * GranuleSize)
	r := NewMemoryRegion(start, end)

	count := 0
	r.ForEachPage(func(PageAddress[Virtual]) bool {
		count++
		return count < 2
	})

	if count != 2 {
		t.Errorf("expected iteration to stop after 2 pages, got %d", count)
	}
}
