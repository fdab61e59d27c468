package pgtable

import (
	"fmt"

	"github.com/arm-lpae/iopgtable/internal/desc"
	"github.com/arm-lpae/iopgtable/internal/geom"
	"github.com/arm-lpae/iopgtable/internal/table"
)

// Chunk is one physically-contiguous run of a scatter-gather list. The
// physical range it describes is [Page+Offset, Page+Offset+Length).
type Chunk struct {
	Page   uint64
	Offset uint64
	Length uint64
}

// mapState tracks an in-progress run of page-granule leaf writes sharing a
// single level-3 table, so their flush_pgtable calls can be coalesced into
// one range publish instead of one call per page.
type mapState struct {
	active     bool
	table      *table.Node
	parent     *table.Node
	parentIdx  uint64
	iovaEnd    uint64
	batchFirst uint64
	batchCount uint64
}

// MapSG maps a scatter-gather list of physically-contiguous chunks at
// successive iova, batching consecutive page-granule writes that land in
// the same level-3 table into a single publish. It returns the number of
// bytes successfully mapped; on error that prefix remains mapped and the
// caller is responsible for any cleanup.
func (h *Handle) MapSG(iova uint64, chunks []Chunk, prot Prot) (uint64, error) {
	if !prot.Has(ProtRead) && !prot.Has(ProtWrite) {
		return 0, nil
	}

	var st mapState
	var mapped uint64
	cur := iova

	for _, c := range chunks {
		pa := c.Page + c.Offset
		if pa%h.geo.Granule != 0 {
			h.flushBatch(&st)
			return mapped, nil
		}

		remaining := c.Length
		for remaining > 0 {
			size := h.sgPgsize(cur, pa, remaining)
			if size == 0 {
				h.flushBatch(&st)
				return mapped, fmt.Errorf("%w: no supported page size divides alignment at iova %#x", ErrInvalidArgument, cur)
			}
			if err := h.installSG(cur, pa, size, prot, &st); err != nil {
				h.flushBatch(&st)
				return mapped, err
			}
			mapped += size
			cur += size
			pa += size
			remaining -= size
		}
	}

	h.flushBatch(&st)
	return mapped, nil
}

func (h *Handle) sgPgsize(iova, pa, remaining uint64) uint64 {
	align := iova | pa
	var best uint64
	bm := h.cfg.PageSizes
	for bm != 0 {
		lsb := bm & (^bm + 1)
		bm &^= lsb
		if lsb <= remaining && align%lsb == 0 && lsb > best {
			best = lsb
		}
	}
	return best
}

func (h *Handle) installSG(iova, pa, size uint64, prot Prot, st *mapState) error {
	if size != h.geo.Granule {
		h.flushBatch(st)
		return h.install(h.geo.StartLevel, h.root, nil, 0, iova, pa, size, prot, mapOptions{})
	}

	leafTbl, parent, parentIdx, err := h.descendToLeafTable(iova)
	if err != nil {
		return err
	}

	idx := h.store.Index(iova, geom.TerminalLevel)
	if desc.IsValid(leafTbl.Get(idx)) {
		return ErrExists
	}
	d, ok := desc.EncodeLeaf(geom.TerminalLevel, pa, prot, h.cfg.Format, h.geo.PgShift, h.cfg.Quirks)
	if !ok {
		return nil
	}

	parentSpan := geom.BlockSize(h.geo, geom.TerminalLevel-1)
	sameBatch := st.active && st.table == leafTbl && iova < st.iovaEnd

	if !sameBatch {
		h.flushBatch(st)
		st.active = true
		st.table = leafTbl
		st.parent = parent
		st.parentIdx = parentIdx
		st.iovaEnd = (iova &^ (parentSpan - 1)) + parentSpan
		st.batchFirst = idx
		st.batchCount = 0
	}

	leafTbl.Set(idx, d)
	if parent != nil {
		h.store.BumpCounterNoPublish(parent, parentIdx, 1)
	}
	st.batchCount++
	return nil
}

func (h *Handle) flushBatch(st *mapState) {
	if st.active && st.batchCount > 0 {
		h.store.PublishRange(st.table, st.batchFirst, st.batchCount)
		if st.parent != nil {
			h.store.PublishSlot(st.parent, st.parentIdx)
		}
	}
	*st = mapState{}
}

// descendToLeafTable walks from the root down to (but not including) the
// level-3 leaf write, allocating interior tables as needed, and returns the
// level-3 table along with its immediate parent and the index within that
// parent the level-3 table descriptor occupies.
func (h *Handle) descendToLeafTable(iova uint64) (leaf, parent *table.Node, parentIdx uint64, err error) {
	tbl := h.root
	for level := h.geo.StartLevel; level < geom.TerminalLevel; level++ {
		idx := h.store.Index(iova, level)
		cur := tbl.Get(idx)

		if !desc.IsValid(cur) {
			child, aerr := h.store.AllocTable(h.geo.Granule)
			if aerr != nil {
				return nil, nil, 0, ErrNoMemory
			}
			d := desc.EncodeTable(child.PA(), h.geo.PgShift, h.cfg.Quirks)
			tbl.Set(idx, d)
			h.store.PublishSlot(tbl, idx)
			parent, parentIdx = tbl, idx
			tbl = child
			continue
		}

		if !desc.IsTable(cur, level) {
			return nil, nil, 0, ErrExists
		}
		child := h.store.Deref(desc.OutputAddr(cur, h.geo.PgShift))
		if child == nil {
			return nil, nil, 0, fmt.Errorf("%w: dangling table descriptor at iova %#x", ErrInvalidArgument, iova)
		}
		parent, parentIdx = tbl, idx
		tbl = child
	}
	return tbl, parent, parentIdx, nil
}
