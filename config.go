package pgtable

import (
	"fmt"
	"log/slog"

	"github.com/arm-lpae/iopgtable/internal/desc"
)

// Format selects the translation regime and descriptor width.
type Format = desc.Format

const (
	FormatS1_64 = desc.FormatS1_64
	FormatS2_64 = desc.FormatS2_64
	FormatS1_32 = desc.FormatS1_32
	FormatS2_32 = desc.FormatS2_32
)

// Quirks are per-allocator deviations from the default descriptor encoding.
type Quirks = desc.Quirks

const QuirkNS = desc.QuirkNS

// Prot is the set of access capabilities requested for a mapping.
type Prot = desc.Prot

const (
	ProtRead   = desc.ProtRead
	ProtWrite  = desc.ProtWrite
	ProtExec   = desc.ProtExec
	ProtCache  = desc.ProtCache
	ProtDevice = desc.ProtDevice
	ProtPriv   = desc.ProtPriv
	ProtNoExec = desc.ProtNoExec
)

// Config describes the address space an allocated Handle should manage.
type Config struct {
	// IAS is the input address size, in bits (the width of iova/the
	// VA or IPA space this tree translates from).
	IAS uint
	// OAS is the output address size, in bits.
	OAS uint
	// PageSizes is a bitmap of supported page/block sizes, one bit per
	// size (bit N set means size 1<<N is supported). It is intersected
	// with the sizes the chosen granule actually offers; the result is
	// visible afterward via Handle.PageSizes.
	PageSizes uint64
	// CPUPageSize biases which granule is chosen when PageSizes allows
	// more than one. Defaults to 4 KiB.
	CPUPageSize uint64

	Format Format
	Quirks Quirks

	Alloc  Allocator
	Coh    Coherency
	Cookie any

	// Logger receives warnings for conditions the allocator tolerates
	// but a caller likely wants to know about (e.g. a conflicting map).
	// Defaults to slog.Default().
	Logger *slog.Logger
}

func (c Config) validate() error {
	if c.Alloc == nil {
		return fmt.Errorf("%w: Config.Alloc is required", ErrInvalidArgument)
	}
	if c.Coh == nil {
		return fmt.Errorf("%w: Config.Coh is required", ErrInvalidArgument)
	}
	if c.IAS == 0 || c.IAS > 48 {
		return fmt.Errorf("%w: IAS %d out of range (1..48)", ErrInvalidArgument, c.IAS)
	}
	if c.OAS == 0 || c.OAS > 48 {
		return fmt.Errorf("%w: OAS %d out of range (1..48)", ErrInvalidArgument, c.OAS)
	}
	if c.Format.Is32Bit() && c.IAS > 40 {
		return fmt.Errorf("%w: IAS %d exceeds 32-bit format limit", ErrInvalidArgument, c.IAS)
	}
	if c.PageSizes == 0 {
		return fmt.Errorf("%w: PageSizes bitmap is empty", ErrInvalidArgument)
	}
	return nil
}

// Registers is the set of hardware register fields a host driver would
// program to run a walk over a Handle's tree.
type Registers struct {
	Stage2 bool

	TCR   uint64
	MAIR0 uint32
	MAIR1 uint32
	TTBR0 uint64

	VTCR  uint64
	VTTBR uint64
}
