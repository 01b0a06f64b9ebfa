package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

type Config struct {
	Port   string
	APIKey string // guards write endpoints when set

	// Documents
	CatalogPath string // empty means scan DataDir
	DataDir     string
	StaticDir   string
	PrefsPath   string

	// Reveal pacing
	WordThreshold int
	BlockDelay    time.Duration
	SectionPause  time.Duration

	// Loading
	FetchTimeout time.Duration
	WorkerCount  int
	MaxQueueSize int
	DocTTL       time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel string
}

func Load() Config {
	cfg := Config{
		Port:   envOr("PORT", "8090"),
		APIKey: os.Getenv("ZENVIEW_API_KEY"),

		CatalogPath: os.Getenv("CATALOG_PATH"),
		DataDir:     envOr("DATA_DIR", "data"),
		StaticDir:   os.Getenv("STATIC_DIR"),
		PrefsPath:   os.Getenv("PREFS_PATH"),

		WordThreshold: envInt("WORD_THRESHOLD", 150),
		BlockDelay:    envDuration("BLOCK_DELAY", 400*time.Millisecond),
		SectionPause:  envDuration("SECTION_PAUSE", 600*time.Millisecond),

		FetchTimeout: envDuration("FETCH_TIMEOUT", 30*time.Second),
		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),
		DocTTL:       envDuration("DOC_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if cfg.WordThreshold <= 0 {
		cfg.WordThreshold = 150
	}
	if cfg.BlockDelay <= 0 {
		cfg.BlockDelay = 400 * time.Millisecond
	}
	if cfg.SectionPause <= 0 {
		cfg.SectionPause = 600 * time.Millisecond
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.DocTTL <= 0 {
		cfg.DocTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	var err error
	if c.Port == "" {
		err = multierr.Append(err, fmt.Errorf("PORT is required"))
	}
	if c.CatalogPath != "" {
		if _, serr := os.Stat(c.CatalogPath); serr != nil {
			err = multierr.Append(err, fmt.Errorf("CATALOG_PATH: %w", serr))
		}
	} else if fi, serr := os.Stat(c.DataDir); serr != nil || !fi.IsDir() {
		err = multierr.Append(err, fmt.Errorf("DATA_DIR %q must be a directory when CATALOG_PATH is unset", c.DataDir))
	}
	if c.StaticDir != "" {
		if fi, serr := os.Stat(c.StaticDir); serr != nil || !fi.IsDir() {
			err = multierr.Append(err, fmt.Errorf("STATIC_DIR %q must be a directory", c.StaticDir))
		}
	}
	if _, lerr := ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	return err
}

// Level returns the slog level for LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
