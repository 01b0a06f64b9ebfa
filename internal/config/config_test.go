package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "CATALOG_PATH", "DATA_DIR", "WORD_THRESHOLD", "BLOCK_DELAY", "SECTION_PAUSE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WordThreshold != 150 || cfg.BlockDelay != 400*time.Millisecond || cfg.SectionPause != 600*time.Millisecond {
		t.Errorf("unexpected pacing defaults: %+v", cfg)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.Level())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORD_THRESHOLD", "80")
	t.Setenv("BLOCK_DELAY", "250ms")
	t.Setenv("SECTION_PAUSE", "-1s")
	t.Setenv("LOG_LEVEL", "debug")
	cfg := Load()

	if cfg.WordThreshold != 80 {
		t.Errorf("expected threshold 80, got %d", cfg.WordThreshold)
	}
	if cfg.BlockDelay != 250*time.Millisecond {
		t.Errorf("expected block delay 250ms, got %v", cfg.BlockDelay)
	}
	if cfg.SectionPause != 600*time.Millisecond {
		t.Errorf("expected negative pause to fall back, got %v", cfg.SectionPause)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.Level())
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	ok := Config{Port: "8090", DataDir: dir, LogLevel: "info"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := Config{
		DataDir:   filepath.Join(dir, "missing"),
		StaticDir: filepath.Join(dir, "nope"),
		LogLevel:  "chatty",
	}
	err := bad.Validate()
	if n := len(multierr.Errors(err)); n != 4 {
		t.Errorf("expected 4 problems, got %d: %v", n, err)
	}
}
