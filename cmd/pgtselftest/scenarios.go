package main

import (
	"fmt"

	pgtable "github.com/arm-lpae/iopgtable"
)

// scenario is one runnable, named end-to-end check. Run receives a fresh
// Handle built from the domain under test and reports the first failure
// it finds; a nil return means the scenario passed.
type scenario struct {
	Name string
	Run  func(h *pgtable.Handle) error
}

var allScenarios = []scenario{
	{"distinct_granules_roundtrip", scenarioDistinctGranulesRoundtrip},
	{"overlap_rejected", scenarioOverlapRejected},
	{"partial_unmap_and_remap", scenarioPartialUnmapAndRemap},
	{"mixed_block_and_page", scenarioMixedBlockAndPage},
	{"scatter_gather_batching", scenarioScatterGatherBatching},
	{"stage2_concatenation", scenarioStage2Concatenation},
}

func scenarioByName(name string) (scenario, bool) {
	for _, s := range allScenarios {
		if s.Name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func scenarioDistinctGranulesRoundtrip(h *pgtable.Handle) error {
	for k, size := range []uint64{4 << 10, 2 << 20, 1 << 30} {
		iova := uint64(k) << 30
		pa := iova
		if err := h.Map(iova, pa, size, pgtable.ProtRead|pgtable.ProtWrite|pgtable.ProtExec|pgtable.ProtCache); err != nil {
			return fmt.Errorf("map size %#x: %w", size, err)
		}
		if got := h.IovaToPhys(iova + 42); got != pa+42 {
			return fmt.Errorf("translate size %#x = %#x, want %#x", size, got, pa+42)
		}
		if n := h.Unmap(iova, size); n != size {
			return fmt.Errorf("unmap size %#x = %#x, want %#x", size, n, size)
		}
	}
	return nil
}

func scenarioOverlapRejected(h *pgtable.Handle) error {
	if err := h.Map(0, 0, 4<<10, pgtable.ProtRead|pgtable.ProtWrite); err != nil {
		return err
	}
	if err := h.Map(0, 4<<10, 4<<10, pgtable.ProtRead); err == nil {
		return fmt.Errorf("expected a conflicting map to be rejected")
	}
	if got := h.IovaToPhys(42); got != 42 {
		return fmt.Errorf("original translation disturbed by a rejected map: got %#x", got)
	}
	return nil
}

func scenarioPartialUnmapAndRemap(h *pgtable.Handle) error {
	const gib = uint64(1) << 30
	if err := h.Map(gib, gib, 2<<20, pgtable.ProtRead); err != nil {
		return err
	}
	if n := h.Unmap(gib+4<<10, 4<<10); n != 4<<10 {
		return fmt.Errorf("partial unmap = %#x, want 4K", n)
	}
	if err := h.Map(gib+4<<10, 4<<10, 4<<10, pgtable.ProtRead); err != nil {
		return fmt.Errorf("remap hole: %w", err)
	}
	if got := h.IovaToPhys(gib + 4<<10 + 42); got != 4<<10+42 {
		return fmt.Errorf("translate after remap = %#x, want %#x", got, 4<<10+42)
	}
	return nil
}

func scenarioMixedBlockAndPage(h *pgtable.Handle) error {
	if err := h.Map(0, 0, 2<<20, pgtable.ProtRead); err != nil {
		return err
	}
	if err := h.Map(2<<20, 2<<20, 4<<10, pgtable.ProtRead); err != nil {
		return err
	}
	total := uint64(2<<20) + 4<<10
	if n := h.Unmap(0, total); n != total {
		return fmt.Errorf("unmap = %#x, want %#x", n, total)
	}
	return nil
}

func scenarioScatterGatherBatching(h *pgtable.Handle) error {
	const page = uint64(0xc000_0000)
	chunks := make([]pgtable.Chunk, 20)
	for i := range chunks {
		chunks[i] = pgtable.Chunk{Page: page, Length: 1 << 20}
	}
	n, err := h.MapSG(0, chunks, pgtable.ProtRead|pgtable.ProtWrite)
	if err != nil {
		return err
	}
	if n != 20<<20 {
		return fmt.Errorf("MapSG = %#x, want 20 MiB", n)
	}
	if got := h.Unmap(0, 20<<20); got != 20<<20 {
		return fmt.Errorf("unmap = %#x, want 20 MiB", got)
	}
	return nil
}

func scenarioStage2Concatenation(h *pgtable.Handle) error {
	if got := h.Levels(); got != 3 {
		return fmt.Errorf("Levels() = %d, want 3", got)
	}
	regs := h.Registers()
	if !regs.Stage2 {
		return fmt.Errorf("expected a stage-2 handle")
	}
	if regs.VTTBR == 0 {
		return fmt.Errorf("expected a non-zero VTTBR")
	}
	return nil
}
