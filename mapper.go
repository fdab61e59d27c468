package pgtable

import (
	"fmt"

	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
	"github.com/arm-lpae/iopgtable/internal/table"
)

type mapOptions struct {
	suppressWarn bool
}

// MapOption customizes a single Map or MapSG call.
type MapOption func(*mapOptions)

// WithSuppressConflictWarning silences the log warning Map would otherwise
// emit when it finds the target range already mapped. It exists for
// workloads (like a randomized stress driver) that deliberately probe
// already-mapped ranges and would otherwise flood the log.
func WithSuppressConflictWarning() MapOption {
	return func(o *mapOptions) { o.suppressWarn = true }
}

// Map installs a single mapping of size bytes at iova, translating to pa,
// with the given protection. size must be one of the page sizes in
// h.PageSizes(), and iova/pa/size must all be aligned to size.
//
// A mapping request with neither ProtRead nor ProtWrite set is a silent
// no-op, matching how a real IOMMU driver treats a "map with no access"
// request as meaningless rather than an error.
func (h *Handle) Map(iova, pa, size uint64, prot Prot, opts ...MapOption) error {
	var o mapOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := h.validateMapArgs(iova, pa, size); err != nil {
		return err
	}
	if !prot.Has(ProtRead) && !prot.Has(ProtWrite) {
		return nil
	}

	return h.install(h.geo.StartLevel, h.root, nil, 0, iova, pa, size, prot, o)
}

func (h *Handle) validateMapArgs(iova, pa, size uint64) error {
	if h.cfg.PageSizes&size == 0 {
		return fmt.Errorf("%w: size %#x is not one of the configured page sizes", ErrInvalidArgument, size)
	}
	if iova%size != 0 || pa%size != 0 {
		return fmt.Errorf("%w: iova %#x / pa %#x not aligned to size %#x", ErrInvalidArgument, iova, pa, size)
	}
	return nil
}

// install walks down from level, allocating interior tables as needed,
// until it reaches the level whose block size matches size, then writes the
// leaf there.
func (h *Handle) install(level int, tbl *table.Node, parent *table.Node, parentIdx uint64, iova, pa, size uint64, prot Prot, o mapOptions) error {
	idx := h.store.Index(iova, level)
	cur := tbl.Get(idx)

	if size == geom.BlockSize(h.geo, level) {
		if desc.IsValid(cur) {
			if !o.suppressWarn {
				h.logger.Warn("pgtable: map over existing mapping", "iova", iova, "size", size)
			}
			return ErrExists
		}
		d, ok := desc.EncodeLeaf(level, pa, prot, h.cfg.Format, h.geo.PgShift, h.cfg.Quirks)
		if !ok {
			return nil
		}
		tbl.Set(idx, d)
		h.store.PublishSlot(tbl, idx)
		if parent != nil && level == geom.TerminalLevel {
			h.store.BumpCounter(parent, parentIdx, 1)
		}
		return nil
	}

	if level == geom.TerminalLevel {
		return fmt.Errorf("%w: size %#x has no matching level in this geometry", ErrInvalidArgument, size)
	}

	if !desc.IsValid(cur) {
		child, err := h.store.AllocTable(h.geo.Granule)
		if err != nil {
			return ErrNoMemory
		}
		d := desc.EncodeTable(child.PA(), h.geo.PgShift, h.cfg.Quirks)
		tbl.Set(idx, d)
		h.store.PublishSlot(tbl, idx)
		return h.install(level+1, child, tbl, idx, iova, pa, size, prot, o)
	}

	if !desc.IsTable(cur, level) {
		if !o.suppressWarn {
			h.logger.Warn("pgtable: map collides with an existing larger mapping", "iova", iova, "size", size)
		}
		return ErrExists
	}

	child := h.store.Deref(desc.OutputAddr(cur, h.geo.PgShift))
	if child == nil {
		return fmt.Errorf("%w: dangling table descriptor at iova %#x", ErrInvalidArgument, iova)
	}
	return h.install(level+1, child, tbl, idx, iova, pa, size, prot, o)
}
