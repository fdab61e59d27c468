package pgtable

import "github.com/arm-lpae/iopgtable/internal/table"

// Allocator supplies memory for translation tables. It is the only source
// of table addresses this package ever uses: every output address it
// writes into a table descriptor came from a prior AllocPage call, while
// leaf descriptors carry the physical address the caller passed to Map or
// MapSG.
type Allocator = table.PageAllocator

// Coherency lets a host keep a device's view of the tables, and its TLB,
// consistent with the writes this package makes.
type Coherency = table.Coherency
