package pgtable

import "errors"

var (
	// ErrExists is returned when a Map or MapSG call would overwrite an
	// existing valid descriptor.
	ErrExists = errors.New("pgtable: region already mapped")

	// ErrInvalidArgument is returned for misaligned or unsupported
	// iova/pa/size combinations.
	ErrInvalidArgument = errors.New("pgtable: invalid argument")

	// ErrNoMemory is returned when the configured Allocator fails to
	// supply a new table.
	ErrNoMemory = errors.New("pgtable: allocator out of memory")
)
