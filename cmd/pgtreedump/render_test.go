package main

import (
	"testing"

	pgtable "github.com/arm-lpae/iopgtable"
)

func TestBuildDemoTreeProducesARenderableImage(t *testing.T) {
	h, err := buildDemoTree(false)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Free()

	dc := render(h)
	img := dc.Image()
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		t.Fatal("expected a non-empty rendered image")
	}
}

func TestBuildDemoTreeStage2(t *testing.T) {
	h, err := buildDemoTree(true)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Free()

	tables, leaves := 0, 0
	h.Walk(func(e pgtable.WalkEntry) {
		if e.Kind == pgtable.KindTable {
			tables++
		} else {
			leaves++
		}
	})
	if tables == 0 || leaves == 0 {
		t.Fatalf("expected both table and leaf entries, got tables=%d leaves=%d", tables, leaves)
	}
}
