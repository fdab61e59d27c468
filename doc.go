// Package pgtable allocates and drives ARM LPAE translation tables for an
// IOMMU. It owns the table tree and its bookkeeping; the host environment
// supplies physical memory and cache/TLB coherency through the Allocator and
// Coherency interfaces, and is itself responsible for driving the actual
// device translation hardware.
//
// A Handle is obtained from Alloc with a Config describing the address
// space (input/output address widths, supported page sizes, Stage-1 or
// Stage-2 format) and is then driven through Map, MapSG, Unmap, and
// IovaToPhys. Registers returns the TCR/MAIR or VTCR fields a caller would
// program into the corresponding hardware context.
package pgtable
