package engine

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.CatalogPath != "catalog.yaml" {
		t.Fatalf("expected default catalog path, got %q", cfg.CatalogPath)
	}
	if cfg.AuditCap != 200 {
		t.Fatalf("expected default audit cap 200, got %d", cfg.AuditCap)
	}
	if cfg.BoundaryMode != "report" {
		t.Fatalf("expected default boundary mode report, got %q", cfg.BoundaryMode)
	}
}

func TestParseConfigEnvOverrides(t *testing.T) {
	t.Setenv("SWSE_ENGINE_ADDR", ":9999")
	t.Setenv("SWSE_ENGINE_BOUNDARY_MODE", "block")

	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("expected env addr, got %q", cfg.Addr)
	}
	if cfg.BoundaryMode != "block" {
		t.Fatalf("expected env boundary mode, got %q", cfg.BoundaryMode)
	}
}

func TestParseConfigFlagsWinOverEnv(t *testing.T) {
	t.Setenv("SWSE_ENGINE_ADDR", ":9999")

	fs := flag.NewFlagSet("engine", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", ":7777", "-audit-cap", "50"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Fatalf("expected flag addr to win, got %q", cfg.Addr)
	}
	if cfg.AuditCap != 50 {
		t.Fatalf("expected flag audit cap, got %d", cfg.AuditCap)
	}
}
