package pgtable

import (
	"log/slog"

	"github.com/arm-lpae/iopgtable/internal/bitset"
	"github.com/arm-lpae/iopgtable/internal/geom"
	"github.com/arm-lpae/iopgtable/internal/table"
)

// Handle owns one allocated translation tree and the geometry it was built
// with.
type Handle struct {
	cfg    Config
	geo    geom.Geometry
	store  *table.Store
	root   *table.Node
	logger *slog.Logger
}

// Alloc derives a table geometry from cfg, allocates a root table through
// cfg.Alloc, and returns a Handle ready to Map and Unmap.
func Alloc(cfg Config) (*Handle, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cpuPageSize := cfg.CPUPageSize
	if cpuPageSize == 0 {
		cpuPageSize = 4 << 10
	}

	granule, restricted, err := geom.RestrictPageSizes(cfg.PageSizes, cpuPageSize)
	if err != nil {
		return nil, err
	}
	cfg.PageSizes = restricted

	g, err := geom.Derive(cfg.IAS, granule, cfg.Format.IsStage2())
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := table.NewStore(cfg.Alloc, cfg.Coh, cfg.Cookie, g)
	root, err := store.AllocTable(g.RootSize)
	if err != nil {
		return nil, ErrNoMemory
	}

	return &Handle{cfg: cfg, geo: g, store: store, root: root, logger: logger}, nil
}

// PageSizes returns the page/block sizes actually supported, after
// restriction to the chosen granule.
func (h *Handle) PageSizes() uint64 { return h.cfg.PageSizes }

// PageSizesList returns the same sizes as PageSizes, unpacked into a
// sorted slice (4 KiB, 2 MiB, 1 GiB, ...) for callers that want to iterate
// rather than test individual bits.
func (h *Handle) PageSizesList() []uint64 {
	var bs bitset.BitSet
	for i := uint(0); i < 64; i++ {
		if h.cfg.PageSizes&(1<<i) != 0 {
			bs.Set(i)
		}
	}

	sizes := make([]uint64, 0, bs.Count())
	for idx := uint(0); ; {
		next, ok := bs.NextSet(idx)
		if !ok {
			break
		}
		sizes = append(sizes, uint64(1)<<next)
		idx = next + 1
	}
	return sizes
}

// Granule returns the translation granule, in bytes.
func (h *Handle) Granule() uint64 { return h.geo.Granule }

// Levels returns the number of levels in the tree, including the root.
func (h *Handle) Levels() int { return h.geo.Levels }

// Registers returns the TCR/MAIR/TTBR0 (Stage-1) or VTCR/VTTBR (Stage-2)
// fields a host driver would program for this Handle's tree.
func (h *Handle) Registers() Registers {
	if h.cfg.Format.IsStage2() {
		f := geom.Stage2(h.geo, h.cfg.IAS, h.cfg.OAS, h.cfg.Format.Is32Bit())
		return Registers{Stage2: true, VTCR: f.VTCR, VTTBR: h.root.PA()}
	}
	f := geom.Stage1(h.geo, h.cfg.IAS, h.cfg.OAS, h.cfg.Format.Is32Bit())
	return Registers{TCR: f.TCR, MAIR0: f.MAIR0, MAIR1: f.MAIR1, TTBR0: h.root.PA()}
}

// Free tears down the entire tree, releasing every table through cfg.Alloc.
// The Handle must not be used afterward.
func (h *Handle) Free() {
	if h.root == nil {
		return
	}
	h.store.TeardownRecursive(h.root, h.geo.StartLevel)
	h.root = nil
}
