package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	pgtable "github.com/arm-lpae/iopgtable"
)

// domainConfig names one address-space configuration to exercise, in the
// same terms spec.md §3 uses for alloc's parameters.
type domainConfig struct {
	Name         string   `toml:"name"`
	IAS          uint     `toml:"ias"`
	OAS          uint     `toml:"oas"`
	Stage2       bool     `toml:"stage2"`
	PageSizes    []string `toml:"page_sizes"`
	SuppressWarn bool     `toml:"suppress_conflict_warning"`
	Scenarios    []string `toml:"scenarios"`
}

// fileConfig is the root of a scenario TOML file: a named list of domains,
// each run through whichever scenario names it lists (or every known
// scenario, if the list is empty).
type fileConfig struct {
	Domain []domainConfig `toml:"domain"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("pgtselftest: decode %s: %w", path, err)
	}
	if len(cfg.Domain) == 0 {
		return fileConfig{}, fmt.Errorf("pgtselftest: %s defines no [[domain]] entries", path)
	}
	return cfg, nil
}

var pageSizeByName = map[string]uint64{
	"4K":  4 << 10,
	"16K": 16 << 10,
	"64K": 64 << 10,
	"2M":  2 << 20,
	"32M": 32 << 20,
	"512M": 512 << 20,
	"1G":  1 << 30,
}

func (d domainConfig) pageSizeBitmap() (uint64, error) {
	if len(d.PageSizes) == 0 {
		return (4 << 10) | (2 << 20) | (1 << 30), nil
	}
	var bitmap uint64
	for _, name := range d.PageSizes {
		sz, ok := pageSizeByName[name]
		if !ok {
			return 0, fmt.Errorf("pgtselftest: domain %q: unknown page size %q", d.Name, name)
		}
		bitmap |= sz
	}
	return bitmap, nil
}

func (d domainConfig) format() pgtable.Format {
	if d.Stage2 {
		return pgtable.FormatS2_64
	}
	return pgtable.FormatS1_64
}
