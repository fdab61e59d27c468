package main

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
[[domain]]
name = "stage1-4k"
ias = 48
oas = 48
page_sizes = ["4K", "2M", "1G"]
scenarios = ["distinct_granules_roundtrip", "overlap_rejected"]

[[domain]]
name = "stage2-4k"
ias = 48
oas = 48
stage2 = true
page_sizes = ["4K"]
scenarios = ["stage2_concatenation"]
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenarios.toml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigParsesDomains(t *testing.T) {
	cfg, err := loadConfig(writeSampleConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Domain) != 2 {
		t.Fatalf("got %d domains, want 2", len(cfg.Domain))
	}
	if cfg.Domain[0].Name != "stage1-4k" || cfg.Domain[1].Name != "stage2-4k" {
		t.Fatalf("unexpected domain names: %+v", cfg.Domain)
	}
	if !cfg.Domain[1].Stage2 {
		t.Fatal("expected the second domain to be marked stage2")
	}
}

func TestLoadConfigRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected an error for a config with no domains")
	}
}

func TestPageSizeBitmapRejectsUnknownName(t *testing.T) {
	d := domainConfig{Name: "bad", PageSizes: []string{"8K"}}
	if _, err := d.pageSizeBitmap(); err == nil {
		t.Fatal("expected an error for an unrecognized page size name")
	}
}

func TestPageSizeBitmapDefaultsWhenUnset(t *testing.T) {
	d := domainConfig{Name: "default"}
	bitmap, err := d.pageSizeBitmap()
	if err != nil {
		t.Fatal(err)
	}
	if bitmap != (4<<10)|(2<<20)|(1<<30) {
		t.Fatalf("bitmap = %#x, want default 4K|2M|1G", bitmap)
	}
}
