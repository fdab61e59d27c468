package alloc

import "testing"

func TestArenaAllocPageZeroesAndAdvances(t *testing.T) {
	a, err := NewArena(2 * 4096)
	if err != nil {
		t.Skipf("mmap unavailable in this environment: %v", err)
	}
	defer a.Close()

	pa1, mem1, err := a.AllocPage(4096)
	if err != nil {
		t.Fatal(err)
	}
	mem1[0] = 0xff
	for _, b := range mem1[1:] {
		if b != 0 {
			t.Fatal("expected a freshly allocated page to be zeroed")
		}
	}

	pa2, _, err := a.AllocPage(4096)
	if err != nil {
		t.Fatal(err)
	}
	if pa2 != pa1+4096 {
		t.Fatalf("second AllocPage pa = %#x, want %#x", pa2, pa1+4096)
	}
}

func TestArenaAllocPageFailsWhenExhausted(t *testing.T) {
	a, err := NewArena(4096)
	if err != nil {
		t.Skipf("mmap unavailable in this environment: %v", err)
	}
	defer a.Close()

	if _, _, err := a.AllocPage(4096); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.AllocPage(4096); err == nil {
		t.Fatal("expected exhaustion once the mapping is fully handed out")
	}
}
