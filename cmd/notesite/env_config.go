package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-notesite/internal/config"
)

const envPrefix = "NOTESITE_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	// Tier 1 - Essential
	ConfigPath string        // NOTESITE_CONFIG: config file path
	Style      string        // NOTESITE_STYLE: CSS style name or path
	Timeout    time.Duration // NOTESITE_TIMEOUT: PDF page load timeout

	// Tier 2 - I/O
	InputDir  string // NOTESITE_INPUT_DIR: default input directory
	OutputDir string // NOTESITE_OUTPUT_DIR: default output directory
	TypstBin  string // NOTESITE_TYPST_BIN: typst executable

	// Tier 3 - Extended
	Workers int    // NOTESITE_WORKERS: parallel workers
	Addr    string // NOTESITE_ADDR: preview server address
}

// knownEnvVars lists valid NOTESITE_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"NOTESITE_CONFIG":     true,
	"NOTESITE_STYLE":      true,
	"NOTESITE_TIMEOUT":    true,
	"NOTESITE_INPUT_DIR":  true,
	"NOTESITE_OUTPUT_DIR": true,
	"NOTESITE_TYPST_BIN":  true,
	"NOTESITE_WORKERS":    true,
	"NOTESITE_ADDR":       true,
	// read by doctor
	"NOTESITE_CONTAINER": true,
}

// loadEnvConfig reads configuration from environment variables.
// Malformed durations and counts are ignored.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("NOTESITE_CONFIG"),
		Style:      os.Getenv("NOTESITE_STYLE"),
		InputDir:   os.Getenv("NOTESITE_INPUT_DIR"),
		OutputDir:  os.Getenv("NOTESITE_OUTPUT_DIR"),
		TypstBin:   os.Getenv("NOTESITE_TYPST_BIN"),
		Addr:       os.Getenv("NOTESITE_ADDR"),
	}

	if timeout := os.Getenv("NOTESITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	if workers := os.Getenv("NOTESITE_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}

	return cfg
}

// warnUnknownEnvVars prints warnings for unrecognized NOTESITE_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name, _, _ := strings.Cut(env, "=")
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overrides config values with the environment variables that
// are set. Precedence: CLI flags > env vars > config file > defaults
// (CLI flags are applied later by mergeFlags).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Style != "" {
		cfg.CSS.Style = env.Style
	}
	if env.Timeout > 0 {
		cfg.PDF.Timeout = env.Timeout.String()
	}
	if env.InputDir != "" {
		cfg.Input.DefaultDir = env.InputDir
	}
	if env.OutputDir != "" {
		cfg.Output.DefaultDir = env.OutputDir
	}
	if env.TypstBin != "" {
		cfg.Typst.Binary = env.TypstBin
	}
	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
}
