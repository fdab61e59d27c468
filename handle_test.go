package pgtable

import "testing"

func TestAllocRejectsMissingCollaborators(t *testing.T) {
	_, err := Alloc(Config{IAS: 48, OAS: 48, PageSizes: 4 << 10, Format: FormatS1_64})
	if err == nil {
		t.Fatal("expected an error without Alloc/Coh set")
	}
}

func TestAllocStage1Registers(t *testing.T) {
	h, err := newTestHandle(FormatS1_64)
	if err != nil {
		t.Fatal(err)
	}
	regs := h.Registers()
	if regs.Stage2 {
		t.Fatal("expected a stage-1 handle to report Stage2=false")
	}
	if regs.TTBR0 == 0 {
		t.Fatal("expected a non-zero TTBR0")
	}
	if regs.TCR&0x3F != 64-48 {
		t.Fatalf("T0SZ field = %d, want %d", regs.TCR&0x3F, 64-48)
	}
}

func TestAllocStage2ConcatenationReflectedInRegisters(t *testing.T) {
	h, err := newTestHandle(FormatS2_64)
	if err != nil {
		t.Fatal(err)
	}
	if h.Levels() != 3 {
		t.Fatalf("Levels() = %d, want 3 (concatenated)", h.Levels())
	}
	regs := h.Registers()
	if !regs.Stage2 {
		t.Fatal("expected Stage2=true")
	}
	if regs.VTTBR == 0 {
		t.Fatal("expected a non-zero VTTBR")
	}
}

func TestPageSizesListUnpacksBitmapInAscendingOrder(t *testing.T) {
	h, err := newTestHandle(FormatS1_64)
	if err != nil {
		t.Fatal(err)
	}
	got := h.PageSizesList()
	want := []uint64{4 << 10, 2 << 20, 1 << 30}
	if len(got) != len(want) {
		t.Fatalf("PageSizesList() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PageSizesList() = %v, want %v", got, want)
		}
	}
}

func TestFreeIsIdempotent(t *testing.T) {
	h, err := newTestHandle(FormatS1_64)
	if err != nil {
		t.Fatal(err)
	}
	h.Free()
	h.Free() // must not panic
}
