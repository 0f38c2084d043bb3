package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/alnah/go-notesite/internal/dateutil"
	"github.com/alnah/go-notesite/internal/fileutil"
	"github.com/alnah/go-notesite/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// DefaultName is the config name looked up when none is given.
const DefaultName = "notesite"

// Field length limits.
const (
	MaxTitleLength    = 200  // Site title
	MaxLangLength     = 35   // BCP 47 tag
	MaxPathLength     = 4096 // Directories, binaries, fonts
	MaxStyleLength    = 100  // Style name or path
	MaxColorLength    = 20   // "#cc0000" or color name
	MaxAddrLength     = 255  // host:port
	MaxLanguageLength = 30   // LiveCodes language id
	MaxInputKeyLength = 100  // sys.inputs key
	MaxInputValLength = 1000 // sys.inputs value
	MaxTypstProcs     = 64
	MaxPDFMargin      = 3.0 // inches
)

var (
	colorPattern    = regexp.MustCompile(`^(#[0-9A-Fa-f]{3,8}|[A-Za-z]+|(rgb|hsl)a?\([0-9., %]+\))$`)
	languagePattern = regexp.MustCompile(`^[a-z0-9+#-]+$`)
)

// Config holds all configuration for a site build.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	CSS       CSSConfig       `yaml:"css"`
	Assets    AssetsConfig    `yaml:"assets"`
	TOC       TOCConfig       `yaml:"toc"`
	Typst     TypstConfig     `yaml:"typst"`
	LiveCodes LiveCodesConfig `yaml:"livecodes"`
	Server    ServerConfig    `yaml:"server"`
	PDF       PDFConfig       `yaml:"pdf"`
}

// SiteConfig defines page-level metadata.
type SiteConfig struct {
	Title      string `yaml:"title"`      // Appended to page titles
	Lang       string `yaml:"lang"`       // html lang attribute (default: "en")
	DateFormat string `yaml:"dateFormat"` // "last updated" format, token or preset (default: "iso")
}

// InputConfig defines input source options.
type InputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Docs directory (default: "docs")
	Drafts     bool   `yaml:"drafts"`     // Build notes marked draft
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Build directory (default: "build")
}

// CSSConfig defines CSS styling options.
type CSSConfig struct {
	Style string `yaml:"style"` // Style name or path (default: "default", "none" disables)
}

// AssetsConfig defines asset loading options.
type AssetsConfig struct {
	BasePath string `yaml:"basePath"` // Empty = use embedded assets
}

// TOCConfig defines table of contents options.
type TOCConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Title    string `yaml:"title"`
	MinDepth int    `yaml:"minDepth"` // 1-6, default 2
	MaxDepth int    `yaml:"maxDepth"` // 1-6, default 3
}

// TypstConfig defines formula rendering options.
type TypstConfig struct {
	Disabled    bool              `yaml:"disabled"`
	Binary      string            `yaml:"binary"`     // default "typst" from PATH
	Root        string            `yaml:"root"`       // project root for #import
	FontPaths   []string          `yaml:"fontPaths"`  // extra font directories
	Inputs      map[string]string `yaml:"inputs"`     // sys.inputs
	ErrorColor  string            `yaml:"errorColor"` // fallback heading color
	MaxProcs    int               `yaml:"maxProcs"`   // concurrent typst processes (0 = GOMAXPROCS)
	Concurrency int               `yaml:"concurrency"`
}

// LiveCodesConfig defines which code blocks get a playground button.
type LiveCodesConfig struct {
	Languages []string `yaml:"languages"`
}

// ServerConfig defines preview server options.
type ServerConfig struct {
	Addr    string `yaml:"addr"` // default "127.0.0.1:3000"
	NoWatch bool   `yaml:"noWatch"`
}

// PDFConfig defines optional PDF export.
type PDFConfig struct {
	Enabled bool    `yaml:"enabled"`
	Size    string  `yaml:"size"`   // "letter", "a4", "legal" (default: "a4")
	Margin  float64 `yaml:"margin"`  // inches (default: 0.5)
	Timeout string  `yaml:"timeout"` // page load, Go duration (default: "30s")
}

// Validate checks field lengths and value ranges.
// Called automatically by LoadConfig, but available for consumers
// who construct Config manually.
func (c *Config) Validate() error {
	checks := []struct {
		field string
		value string
		max   int
	}{
		{"site.title", c.Site.Title, MaxTitleLength},
		{"site.lang", c.Site.Lang, MaxLangLength},
		{"input.defaultDir", c.Input.DefaultDir, MaxPathLength},
		{"output.defaultDir", c.Output.DefaultDir, MaxPathLength},
		{"css.style", c.CSS.Style, MaxStyleLength},
		{"assets.basePath", c.Assets.BasePath, MaxPathLength},
		{"toc.title", c.TOC.Title, MaxTitleLength},
		{"typst.binary", c.Typst.Binary, MaxPathLength},
		{"typst.root", c.Typst.Root, MaxPathLength},
		{"typst.errorColor", c.Typst.ErrorColor, MaxColorLength},
		{"server.addr", c.Server.Addr, MaxAddrLength},
	}
	for _, chk := range checks {
		if err := validateFieldLength(chk.field, chk.value, chk.max); err != nil {
			return err
		}
	}

	if c.Site.DateFormat != "" {
		if _, err := dateutil.Layout(c.Site.DateFormat); err != nil {
			return fmt.Errorf("site.dateFormat: %w", err)
		}
	}

	if c.TOC.Enabled {
		if err := validateDepth("toc.minDepth", c.TOC.MinDepth); err != nil {
			return err
		}
		if err := validateDepth("toc.maxDepth", c.TOC.MaxDepth); err != nil {
			return err
		}
		if c.TOC.MinDepth != 0 && c.TOC.MaxDepth != 0 && c.TOC.MinDepth > c.TOC.MaxDepth {
			return fmt.Errorf("%w: toc.minDepth (%d) greater than toc.maxDepth (%d)",
				ErrInvalidValue, c.TOC.MinDepth, c.TOC.MaxDepth)
		}
	}

	if err := c.validateTypst(); err != nil {
		return err
	}

	for i, lang := range c.LiveCodes.Languages {
		field := fmt.Sprintf("livecodes.languages[%d]", i)
		if err := validateFieldLength(field, lang, MaxLanguageLength); err != nil {
			return err
		}
		if !languagePattern.MatchString(lang) {
			return fmt.Errorf("%w: %s %q", ErrInvalidValue, field, lang)
		}
	}

	if c.PDF.Size != "" {
		switch strings.ToLower(c.PDF.Size) {
		case "letter", "a4", "legal":
		default:
			return fmt.Errorf("%w: pdf.size %q (must be letter, a4, or legal)", ErrInvalidValue, c.PDF.Size)
		}
	}
	if c.PDF.Margin < 0 || c.PDF.Margin > MaxPDFMargin {
		return fmt.Errorf("%w: pdf.margin must be between 0 and %.1f, got %.2f", ErrInvalidValue, MaxPDFMargin, c.PDF.Margin)
	}
	if c.PDF.Timeout != "" {
		if _, err := c.PDF.TimeoutDuration(); err != nil {
			return err
		}
	}

	return nil
}

// TimeoutDuration parses pdf.timeout. Empty yields zero (use the default).
func (p PDFConfig) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: pdf.timeout %q (must be a positive duration like \"45s\")", ErrInvalidValue, p.Timeout)
	}
	return d, nil
}

func (c *Config) validateTypst() error {
	t := c.Typst
	if t.ErrorColor != "" && !colorPattern.MatchString(t.ErrorColor) {
		return fmt.Errorf("%w: typst.errorColor %q", ErrInvalidValue, t.ErrorColor)
	}
	if t.MaxProcs < 0 || t.MaxProcs > MaxTypstProcs {
		return fmt.Errorf("%w: typst.maxProcs must be between 0 and %d, got %d", ErrInvalidValue, MaxTypstProcs, t.MaxProcs)
	}
	if t.Concurrency < 0 {
		return fmt.Errorf("%w: typst.concurrency must not be negative, got %d", ErrInvalidValue, t.Concurrency)
	}
	for i, p := range t.FontPaths {
		if err := validateFieldLength(fmt.Sprintf("typst.fontPaths[%d]", i), p, MaxPathLength); err != nil {
			return err
		}
	}
	for k, v := range t.Inputs {
		if k == "" || strings.Contains(k, "=") {
			return fmt.Errorf("%w: typst.inputs key %q", ErrInvalidValue, k)
		}
		if err := validateFieldLength("typst.inputs key", k, MaxInputKeyLength); err != nil {
			return err
		}
		if err := validateFieldLength("typst.inputs."+k, v, MaxInputValLength); err != nil {
			return err
		}
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

func validateDepth(field string, depth int) error {
	if depth != 0 && (depth < 1 || depth > 6) {
		return fmt.Errorf("%w: %s must be between 1 and 6, got %d", ErrInvalidValue, field, depth)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Site:   SiteConfig{Lang: "en", DateFormat: "iso"},
		Input:  InputConfig{DefaultDir: "docs"},
		Output: OutputConfig{DefaultDir: "build"},
		CSS:    CSSConfig{Style: "default"},
		TOC:    TOCConfig{Enabled: true, MinDepth: 2, MaxDepth: 3},
		LiveCodes: LiveCodesConfig{
			Languages: []string{"js", "ts", "python", "go", "jsx", "tsx"},
		},
		Server: ServerConfig{Addr: "127.0.0.1:3000"},
		PDF:    PDFConfig{Size: "a4", Margin: 0.5},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Fields absent from the file keep their DefaultConfig values.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/notesite/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "notesite", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
