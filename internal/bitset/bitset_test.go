package bitset

import "testing"

// These exercise bitset in the shape handle.go actually uses it: marking a
// handful of sparse bit positions (log2 of a page/block size) and reading
// them back in ascending order.
func TestSetTestClearRoundTrip(t *testing.T) {
	var b BitSet
	b.Set(12) // 4 KiB
	b.Set(21) // 2 MiB
	b.Set(30) // 1 GiB

	for _, i := range []uint{12, 21, 30} {
		if !b.Test(i) {
			t.Fatalf("bit %d expected set", i)
		}
	}
	if b.Test(13) {
		t.Fatal("bit 13 expected clear")
	}

	b.Clear(21)
	if b.Test(21) {
		t.Fatal("bit 21 expected clear after Clear")
	}
	if !b.Test(12) || !b.Test(30) {
		t.Fatal("Clear must not disturb other bits")
	}
}

func TestNextSetWalksAscendingBitPositions(t *testing.T) {
	var b BitSet
	b.Set(12)
	b.Set(21)
	b.Set(30)

	var got []uint
	for idx := uint(0); ; {
		next, ok := b.NextSet(idx)
		if !ok {
			break
		}
		got = append(got, next)
		idx = next + 1
	}

	want := []uint{12, 21, 30}
	if len(got) != len(want) {
		t.Fatalf("NextSet walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NextSet walk = %v, want %v", got, want)
		}
	}
}

func TestCountMatchesNumberOfSetBits(t *testing.T) {
	var b BitSet
	for _, i := range []uint{0, 12, 21, 30, 63, 128} {
		b.Set(i)
	}
	if got := b.Count(); got != 6 {
		t.Fatalf("Count() = %d, want 6", got)
	}
}

func TestTestOnUnextendedBitReturnsFalse(t *testing.T) {
	var b BitSet
	if b.Test(1000) {
		t.Fatal("Test on an empty, never-extended BitSet must return false")
	}
}
