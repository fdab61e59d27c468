package alloc

import "testing"

func TestLeakTrackerReportsOutstandingAllocations(t *testing.T) {
	l := NewLeakTracker(NewBump(0x1000, 4*4096))

	pa1, mem1, err := l.AllocPage(4096)
	if err != nil {
		t.Fatal(err)
	}
	pa2, _, err := l.AllocPage(4096)
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Report(); err == nil {
		t.Fatal("expected two outstanding allocations to be reported")
	}
	if out := l.Outstanding(); len(out) != 2 || out[0] != pa1 || out[1] != pa2 {
		t.Fatalf("Outstanding() = %v, want [%#x %#x]", out, pa1, pa2)
	}

	l.FreePage(pa1, mem1)
	if out := l.Outstanding(); len(out) != 1 || out[0] != pa2 {
		t.Fatalf("after freeing pa1, Outstanding() = %v, want [%#x]", out, pa2)
	}

	l.FreePage(pa2, nil)
	if err := l.Report(); err != nil {
		t.Fatalf("expected no leaks once everything is freed, got %v", err)
	}
}
