package pgtable

import "testing"

func TestTranslateUnmappedReturnsZero(t *testing.T) {
	h, err := newTestHandle(FormatS1_64)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.IovaToPhys(0xdead_b000); got != 0 {
		t.Fatalf("IovaToPhys of an unmapped iova = %#x, want 0", got)
	}
}

func TestLookupLeafDistinguishesUnmappedFromPAZero(t *testing.T) {
	h, err := newTestHandle(FormatS1_64)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Map(0, 0, 4<<10, ProtRead); err != nil {
		t.Fatal(err)
	}
	pa, ok := h.lookupLeaf(0)
	if !ok || pa != 0 {
		t.Fatalf("lookupLeaf(0) = (%#x, %v), want (0, true)", pa, ok)
	}
	if _, ok := h.lookupLeaf(8 << 10); ok {
		t.Fatal("expected an unmapped page to report ok=false")
	}
}

func TestTranslateDistinctGranulesRoundTrip(t *testing.T) {
	h, err := newTestHandle(FormatS1_64)
	if err != nil {
		t.Fatal(err)
	}
	for k, size := range []uint64{4 << 10, 2 << 20, 1 << 30} {
		iova := uint64(k) << 30
		if err := h.Map(iova, iova, size, ProtRead|ProtWrite|ProtExec|ProtCache); err != nil {
			t.Fatalf("size %#x: map: %v", size, err)
		}
		if got := h.IovaToPhys(iova + 42); got != iova+42 {
			t.Fatalf("size %#x: IovaToPhys = %#x, want %#x", size, got, iova+42)
		}
		if n := h.Unmap(iova, size); n != size {
			t.Fatalf("size %#x: Unmap = %#x", size, n)
		}
		if got := h.IovaToPhys(iova + 42); got != 0 {
			t.Fatalf("size %#x: IovaToPhys after unmap = %#x, want 0", size, got)
		}
	}
}
