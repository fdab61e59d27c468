// SPDX-License-Identifier: MIT

// Package golden generates randomized, alignment-correct input for
// page-table stress and property tests: (iova, pa, size) mappings drawn
// from a size distribution shaped like a real workload rather than
// uniformly, the same way a routing-table fuzzer draws prefixes from the
// ranges actually seen in production rather than the full address space.
package golden

import "math/rand/v2"

// Mapping is one randomly generated, alignment-correct map request.
type Mapping struct {
	IOVA uint64
	PA   uint64
	Size uint64
}

// DefaultSizes are the granule/block sizes RandomSize draws from, smallest
// first.
var DefaultSizes = []uint64{4 << 10, 2 << 20, 1 << 30}

// RandomSize returns a size from DefaultSizes, weighted the way real IOMMU
// workloads skew: mostly single pages, occasional 2 MiB blocks, rare 1 GiB
// blocks.
func RandomSize(prng *rand.Rand) uint64 {
	switch r := prng.IntN(100); {
	case r < 70:
		return DefaultSizes[0]
	case r < 95:
		return DefaultSizes[1]
	default:
		return DefaultSizes[2]
	}
}

func alignDown(v, align uint64) uint64 {
	return v &^ (align - 1)
}

// RandomMapping returns a single mapping whose iova lies in [0, maxIOVA)
// and whose pa lies below 1<<48, both aligned to its own (randomly chosen)
// size.
func RandomMapping(prng *rand.Rand, maxIOVA uint64) Mapping {
	size := RandomSize(prng)
	iova := alignDown(prng.Uint64()%maxIOVA, size)
	pa := alignDown(prng.Uint64()&(uint64(1)<<48-1), size)
	return Mapping{IOVA: iova, PA: pa, Size: size}
}

func overlaps(a, b Mapping) bool {
	aEnd, bEnd := a.IOVA+a.Size, b.IOVA+b.Size
	return a.IOVA < bEnd && b.IOVA < aEnd
}

// RandomNonOverlappingMappings returns n mappings with disjoint iova
// ranges, retrying draws that collide the same way a dedup-by-set loop
// retries duplicate prefixes.
func RandomNonOverlappingMappings(prng *rand.Rand, n int, maxIOVA uint64) []Mapping {
	out := make([]Mapping, 0, n)

	for len(out) < n {
		cand := RandomMapping(prng, maxIOVA)

		conflict := false
		for _, m := range out {
			if overlaps(cand, m) {
				conflict = true
				break
			}
		}
		if !conflict {
			out = append(out, cand)
		}
	}
	return out
}
