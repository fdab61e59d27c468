// Command pgtreedump builds a demonstration translation tree, maps a
// representative mix of pages and blocks into it, and renders the
// resulting occupancy to a PNG: one colored square per populated
// descriptor, arranged by level. It is a debug visualizer only — it never
// participates in any map/unmap/translate invariant and calls nothing the
// core package doesn't already expose publicly through Walk.
package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	pgtable "github.com/arm-lpae/iopgtable"
	"github.com/arm-lpae/iopgtable/internal/alloc"
	"github.com/arm-lpae/iopgtable/internal/alloc/coherency"
)

func main() {
	out := flag.String("out", "pgtable.png", "output PNG path")
	stage2 := flag.Bool("stage2", false, "render a stage-2 (concatenated-root) tree instead of stage-1")
	flag.Parse()

	log := logrus.New()

	h, err := buildDemoTree(*stage2)
	if err != nil {
		log.WithError(err).Fatal("pgtreedump: failed to build demonstration tree")
	}
	defer h.Free()

	dc := render(h)
	if err := dc.SavePNG(*out); err != nil {
		log.WithError(err).Fatal("pgtreedump: failed to write PNG")
	}
	log.WithFields(logrus.Fields{"out": *out, "levels": h.Levels()}).Info("pgtreedump: wrote tree occupancy image")
	os.Exit(0)
}

// buildDemoTree allocates a Handle and installs a mix of block and page
// mappings, plus one scatter-gather batch, so the rendered tree shows
// every kind of populated descriptor the format can produce.
func buildDemoTree(stage2 bool) (*pgtable.Handle, error) {
	format := pgtable.FormatS1_64
	if stage2 {
		format = pgtable.FormatS2_64
	}

	h, err := pgtable.Alloc(pgtable.Config{
		IAS:       48,
		OAS:       48,
		PageSizes: (4 << 10) | (2 << 20) | (1 << 30),
		Format:    format,
		Alloc:     alloc.NewBump(0, 32<<20),
		Coh:       coherency.Noop{},
	})
	if err != nil {
		return nil, err
	}

	if err := h.Map(0, 0, 1<<30, pgtable.ProtRead|pgtable.ProtWrite); err != nil {
		return nil, err
	}
	if err := h.Map(1<<30, 1<<30, 2<<20, pgtable.ProtRead); err != nil {
		return nil, err
	}
	if err := h.Map((1<<30)+(2<<20), (1<<30)+(2<<20), 4<<10, pgtable.ProtRead|pgtable.ProtExec); err != nil {
		return nil, err
	}

	chunks := make([]pgtable.Chunk, 8)
	for i := range chunks {
		chunks[i] = pgtable.Chunk{Page: 0x9000_0000, Length: 1 << 20}
	}
	if _, err := h.MapSG(2<<30, chunks, pgtable.ProtRead|pgtable.ProtWrite); err != nil {
		return nil, err
	}

	return h, nil
}
