package main

import (
	"fmt"

	"github.com/fogleman/gg"

	pgtable "github.com/arm-lpae/iopgtable"
	"github.com/arm-lpae/iopgtable/internal/geom"
)

// cellSize is the edge length, in pixels, of one rendered descriptor slot.
const cellSize = 14

// levelColors assigns a fill color per level so occupancy at a glance
// shows which depth of the tree a mapping landed at; leaves are brighter
// than the interior tables that lead to them.
var levelColors = [4][3]float64{
	{0.55, 0.55, 0.60}, // level 0 - root/interior, slate
	{0.35, 0.45, 0.75}, // level 1 - interior, blue
	{0.30, 0.65, 0.45}, // level 2 - interior or 2M blocks, green
	{0.85, 0.55, 0.20}, // level 3 - pages, orange
}

// render walks h's tree via its public Walk API and draws one filled
// square per populated descriptor, arranged in rows by level and columns
// in visitation order. It never reaches into h's internals directly —
// Walk is the only introspection surface it uses, the same one Dump
// builds on for the text rendering.
func render(h *pgtable.Handle) *gg.Context {
	counts := map[int]int{}
	var entries []pgtable.WalkEntry
	h.Walk(func(e pgtable.WalkEntry) {
		entries = append(entries, e)
		counts[e.Level]++
	})

	maxCols := 1
	for _, c := range counts {
		if c > maxCols {
			maxCols = c
		}
	}

	width := (maxCols + 2) * cellSize
	height := (geom.TerminalLevel + 3) * cellSize
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	col := map[int]int{}
	for _, e := range entries {
		x := float64((col[e.Level] + 1) * cellSize)
		y := float64((e.Level + 1) * cellSize)
		col[e.Level]++

		color := levelColors[e.Level%len(levelColors)]
		dc.SetRGB(color[0], color[1], color[2])
		dc.DrawRectangle(x, y, cellSize-1, cellSize-1)
		dc.Fill()

		if e.Kind == pgtable.KindTable {
			dc.SetRGB(0, 0, 0)
			dc.SetLineWidth(1)
			dc.DrawRectangle(x, y, cellSize-1, cellSize-1)
			dc.Stroke()
		}
	}

	dc.SetRGB(0, 0, 0)
	for level := 0; level <= geom.TerminalLevel; level++ {
		dc.DrawString(fmt.Sprintf("L%d", level), 1, float64((level+1)*cellSize)+cellSize-3)
	}

	return dc
}
