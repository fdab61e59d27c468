// Package geom derives ARM LPAE table geometry (granule, level count,
// per-level index widths) from an address-space configuration, and encodes
// the resulting geometry into the register fields a host driver would
// program into TCR/MAIR or VTCR.
package geom

import (
	"fmt"
	"math/bits"
)

// DescriptorSize is the on-disk size of one table entry, in bytes.
const DescriptorSize = 8

// TerminalLevel is the page-granule level; every walk bottoms out there.
const TerminalLevel = 3

// candidateGranules lists the three LPAE translation granules, smallest
// first.
var candidateGranules = [...]uint64{4 << 10, 16 << 10, 64 << 10}

// blockSizesFor maps each granule to the block sizes the architecture
// defines for it (granule itself plus the larger block sizes a descriptor at
// an interior level may terminate at).
var blockSizesFor = map[uint64][]uint64{
	4 << 10:  {4 << 10, 2 << 20, 1 << 30},
	16 << 10: {16 << 10, 32 << 20},
	64 << 10: {64 << 10, 512 << 20},
}

func log2(x uint64) uint { return uint(bits.Len64(x) - 1) }

// RestrictPageSizes picks the translation granule implied by cpuPageSize and
// pgsizeBitmap, then intersects pgsizeBitmap with the block sizes that
// granule actually supports.
//
// The granule is chosen the way a host MMU driver would offer page sizes to
// an IOMMU: prefer the CPU's own page size if the bitmap allows it,
// otherwise the largest allowed granule below it, otherwise the smallest
// allowed granule above it.
func RestrictPageSizes(pgsizeBitmap, cpuPageSize uint64) (granule, restricted uint64, err error) {
	if pgsizeBitmap&cpuPageSize != 0 {
		for _, g := range candidateGranules {
			if g == cpuPageSize {
				granule = g
				break
			}
		}
	}

	if granule == 0 {
		var best uint64
		for _, g := range candidateGranules {
			if g < cpuPageSize && pgsizeBitmap&g != 0 && g > best {
				best = g
			}
		}
		granule = best
	}

	if granule == 0 {
		var best uint64
		for _, g := range candidateGranules {
			if g > cpuPageSize && pgsizeBitmap&g != 0 && (best == 0 || g < best) {
				best = g
			}
		}
		granule = best
	}

	if granule == 0 {
		return 0, 0, fmt.Errorf("geom: no supported granule in page-size bitmap %#x for cpu page size %d", pgsizeBitmap, cpuPageSize)
	}

	sizes, ok := blockSizesFor[granule]
	if !ok {
		return 0, 0, fmt.Errorf("geom: unrecognized granule %d", granule)
	}
	for _, s := range sizes {
		if pgsizeBitmap&s != 0 {
			restricted |= s
		}
	}
	if restricted == 0 {
		return 0, 0, fmt.Errorf("geom: page-size bitmap %#x contains no sizes valid for granule %d", pgsizeBitmap, granule)
	}
	return granule, restricted, nil
}

// Geometry is the fully-derived shape of a translation table tree.
type Geometry struct {
	Granule      uint64 // bytes
	PgShift      uint
	BitsPerLevel uint
	Levels       int
	StartLevel   int
	RootBits     uint
	RootEntries  int
	RootSize     uint64 // bytes
	Concatenated bool
}

// BlockSize returns the span, in bytes, of one entry at level.
func BlockSize(g Geometry, level int) uint64 {
	shift := g.PgShift + uint(TerminalLevel-level)*g.BitsPerLevel
	return uint64(1) << shift
}

// LevelShift returns the bit position of the index field for level.
func LevelShift(g Geometry, level int) uint {
	return g.PgShift + uint(TerminalLevel-level)*g.BitsPerLevel
}

// LevelBits returns the number of IOVA bits this level's index consumes.
// The start level may consume fewer bits than an interior level when the
// address space doesn't divide evenly (or more, after Stage-2
// concatenation).
func LevelBits(g Geometry, level int) uint {
	if level == g.StartLevel {
		return g.RootBits
	}
	return g.BitsPerLevel
}

// LevelMask returns the index mask for level, already positioned at bit 0.
func LevelMask(g Geometry, level int) uint64 {
	return uint64(1)<<LevelBits(g, level) - 1
}

// Index extracts the table index for iova at level.
func Index(g Geometry, iova uint64, level int) uint64 {
	return (iova >> LevelShift(g, level)) & LevelMask(g, level)
}

// concatCap is the architectural limit on how many tables Stage-2 may
// concatenate at the root to avoid an extra level.
const concatCap = 16

// Derive computes the table geometry for an ias-bit input address space
// using the given granule. stage2 enables the root-concatenation rule that
// lets a Stage-2 walk fold away an otherwise-necessary extra level by
// widening the root to concatCap granule-sized tables.
func Derive(ias uint, granule uint64, stage2 bool) (Geometry, error) {
	if granule == 0 {
		return Geometry{}, fmt.Errorf("geom: zero granule")
	}
	pgShift := log2(granule)
	if ias <= pgShift {
		return Geometry{}, fmt.Errorf("geom: ias %d too small for granule %d", ias, granule)
	}
	bitsPerLevel := pgShift - log2(DescriptorSize)
	iasBits := uint(ias) - pgShift

	levels := int((iasBits + bitsPerLevel - 1) / bitsPerLevel)
	if levels < 1 {
		levels = 1
	}
	if levels > 4 {
		return Geometry{}, fmt.Errorf("geom: ias %d needs %d levels, maximum is 4", ias, levels)
	}

	startLevel := 4 - levels
	rootBits := iasBits - uint(levels-1)*bitsPerLevel
	rootEntries := 1 << rootBits
	rootSize := uint64(rootEntries) * DescriptorSize

	g := Geometry{
		Granule:      granule,
		PgShift:      pgShift,
		BitsPerLevel: bitsPerLevel,
		Levels:       levels,
		StartLevel:   startLevel,
		RootBits:     rootBits,
		RootEntries:  rootEntries,
		RootSize:     rootSize,
	}

	if stage2 && levels == 4 && rootSize <= concatCap*granule {
		newSize := concatCap * granule
		newEntries := int(newSize / DescriptorSize)
		g.RootBits = log2(uint64(newEntries))
		g.RootEntries = newEntries
		g.RootSize = newSize
		g.Levels--
		g.StartLevel++
		g.Concatenated = true
	}

	return g, nil
}
