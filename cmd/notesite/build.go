package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	notesite "github.com/alnah/go-notesite"
	"github.com/alnah/go-notesite/internal/assets"
	"github.com/alnah/go-notesite/internal/config"
	"github.com/alnah/go-notesite/internal/hints"
	"github.com/alnah/go-notesite/internal/typst"
)

// Sentinel errors for the CLI.
var (
	ErrNoInput            = errors.New("no input directory specified")
	ErrUsage              = errors.New("invalid usage")
	ErrDiagnostics        = errors.New("formulas failed to compile")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// Default TOC depths when the config leaves them unset.
const (
	defaultTOCMinDepth = 2
	defaultTOCMaxDepth = 3
)

// diagnosticsError reports how many formula errors made a strict build fail.
type diagnosticsError struct {
	count int
}

func (e *diagnosticsError) Error() string {
	return fmt.Sprintf("%s: %d error block(s)", ErrDiagnostics, e.count)
}

func (e *diagnosticsError) Unwrap() error { return ErrDiagnostics }

// settings is the merged result of config file, environment and flags.
type settings struct {
	cfg     *config.Config
	input   string
	output  string
	workers int
	strict  bool
	common  commonFlags
}

// resolveSettings loads the config and applies env vars then flags on top.
func resolveSettings(f *buildFlags, args []string, env *Environment) (*settings, error) {
	envCfg := loadEnvConfig()
	warnUnknownEnvVars(env.Stderr)

	cfg, err := loadConfig(f.common.config, envCfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyEnvConfig(envCfg, cfg)
	mergeFlags(f, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	input := cfg.Input.DefaultDir
	if len(args) > 0 {
		input = args[0]
	}
	if input == "" {
		return nil, ErrNoInput
	}

	workers := envCfg.Workers
	if f.changed("workers") {
		workers = f.workers
	}
	if workers < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, workers)
	}

	return &settings{
		cfg:     cfg,
		input:   input,
		output:  cfg.Output.DefaultDir,
		workers: workers,
		strict:  f.strict,
		common:  f.common,
	}, nil
}

// loadConfig loads the named config, or the default one when it exists.
func loadConfig(flagName, envName string) (*config.Config, error) {
	name := flagName
	if name == "" {
		name = envName
	}
	if name != "" {
		return config.LoadConfig(name)
	}

	cfg, err := config.LoadConfig(config.DefaultName)
	if errors.Is(err, config.ErrConfigNotFound) {
		return config.DefaultConfig(), nil
	}
	return cfg, err
}

// mergeFlags copies the flags set on the command line into cfg.
func mergeFlags(f *buildFlags, cfg *config.Config) {
	if f.changed("output") {
		cfg.Output.DefaultDir = f.output
	}

	// Site
	if f.changed("title") {
		cfg.Site.Title = f.site.title
	}
	if f.changed("lang") {
		cfg.Site.Lang = f.site.lang
	}
	if f.changed("date-format") {
		cfg.Site.DateFormat = f.site.dateFormat
	}
	if f.changed("drafts") {
		cfg.Input.Drafts = f.site.drafts
	}

	// TOC
	if f.changed("toc-title") {
		cfg.TOC.Title = f.toc.title
	}
	if f.changed("toc-min-depth") {
		cfg.TOC.MinDepth = f.toc.minDepth
	}
	if f.changed("toc-max-depth") {
		cfg.TOC.MaxDepth = f.toc.maxDepth
	}
	if f.toc.disabled {
		cfg.TOC.Enabled = false
	}

	// Typst
	if f.changed("typst-bin") {
		cfg.Typst.Binary = f.typst.bin
	}
	if f.changed("typst-root") {
		cfg.Typst.Root = f.typst.root
	}
	if f.changed("font-path") {
		cfg.Typst.FontPaths = f.typst.fontPaths
	}
	if f.changed("typst-error-color") {
		cfg.Typst.ErrorColor = f.typst.errorColor
	}
	if f.typst.disabled {
		cfg.Typst.Disabled = true
	}

	// PDF
	if f.pdf.enabled {
		cfg.PDF.Enabled = true
	}
	if f.changed("page-size") {
		cfg.PDF.Size = f.pdf.size
	}
	if f.changed("margin") {
		cfg.PDF.Margin = f.pdf.margin
	}
	if f.changed("timeout") {
		cfg.PDF.Timeout = f.pdf.timeout
	}

	// Assets
	if f.changed("style") {
		cfg.CSS.Style = f.assets.style
	}
	if f.changed("asset-path") {
		cfg.Assets.BasePath = f.assets.assetPath
	}

	// Server
	if f.changed("addr") {
		cfg.Server.Addr = f.serve.addr
	}
	if f.serve.noWatch {
		cfg.Server.NoWatch = true
	}
}

// newLogger returns a text logger writing to w. Warnings show by default.
func newLogger(w io.Writer, f commonFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case f.verbose:
		level = slog.LevelDebug
	case f.quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newBuilder maps settings to builder options. The returned func releases
// the builder and the typst compiler.
func newBuilder(s *settings, env *Environment, log *slog.Logger, liveReload string) (*notesite.Builder, func() error, error) {
	cfg := s.cfg
	opts := []notesite.Option{
		notesite.WithLogger(log),
		notesite.WithSiteTitle(cfg.Site.Title),
		notesite.WithLang(cfg.Site.Lang),
		notesite.WithDateFormat(cfg.Site.DateFormat),
		notesite.WithStyle(cfg.CSS.Style),
		notesite.WithAssetPath(cfg.Assets.BasePath),
		notesite.WithPlaygroundLanguages(cfg.LiveCodes.Languages...),
		notesite.WithWorkers(s.workers),
		notesite.WithDrafts(cfg.Input.Drafts),
		notesite.WithTypstErrorColor(cfg.Typst.ErrorColor),
		notesite.WithTypstConcurrency(cfg.Typst.Concurrency),
	}

	if cfg.TOC.Enabled {
		minDepth, maxDepth := cfg.TOC.MinDepth, cfg.TOC.MaxDepth
		if minDepth == 0 {
			minDepth = defaultTOCMinDepth
		}
		if maxDepth == 0 {
			maxDepth = defaultTOCMaxDepth
		}
		opts = append(opts, notesite.WithTOC(cfg.TOC.Title, minDepth, maxDepth))
	}

	if cfg.PDF.Enabled {
		timeout, err := cfg.PDF.TimeoutDuration()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, notesite.WithPDF(notesite.PDFOptions{
			Size:    cfg.PDF.Size,
			Margin:  cfg.PDF.Margin,
			Timeout: timeout,
		}))
	}

	if liveReload != "" {
		opts = append(opts, notesite.WithLiveReload(liveReload))
	}

	var compiler closingCompiler
	if !cfg.Typst.Disabled {
		c, err := env.NewCompiler(typst.CompileArgs{
			Binary:    cfg.Typst.Binary,
			Root:      cfg.Typst.Root,
			FontPaths: cfg.Typst.FontPaths,
			Inputs:    cfg.Typst.Inputs,
			MaxProcs:  cfg.Typst.MaxProcs,
		})
		if err != nil {
			return nil, nil, err
		}
		compiler = c
		opts = append(opts, notesite.WithCompiler(c))
	}

	b, err := notesite.NewBuilder(s.input, s.output, opts...)
	if err != nil {
		if compiler != nil {
			_ = compiler.Close()
		}
		return nil, nil, err
	}

	closeAll := func() error {
		err := b.Close()
		if compiler != nil {
			err = errors.Join(err, compiler.Close())
		}
		return err
	}
	return b, closeAll, nil
}

// runBuild builds the site once.
func runBuild(ctx context.Context, args []string, env *Environment) error {
	f, rest, err := parseCommandFlags(cmdBuild, args, env.Stderr)
	if err != nil {
		return err
	}
	s, err := resolveSettings(f, rest, env)
	if err != nil {
		return err
	}

	log := newLogger(env.Stderr, s.common)
	b, closeAll, err := newBuilder(s, env, log, "")
	if err != nil {
		return err
	}
	defer func() { _ = closeAll() }()

	report, err := b.Build(ctx)
	if report != nil {
		printReport(env, report, b.OutputDir(), s.common.quiet)
	}
	if err != nil {
		return err
	}

	if n := len(report.Messages()); s.strict && n > 0 {
		return &diagnosticsError{count: n}
	}
	return nil
}

// printReport writes diagnostics and failures to stderr and a summary to
// stdout.
func printReport(env *Environment, report *notesite.Report, output string, quiet bool) {
	for _, m := range report.Messages() {
		fmt.Fprintf(env.Stderr, "warning: %s\n", m)
	}
	for _, r := range report.Failed() {
		fmt.Fprintf(env.Stderr, "FAILED %s: %v\n", r.Source, r.Err)
	}
	if quiet {
		return
	}
	fmt.Fprintf(env.Stdout, "Built %d page(s), %d asset(s) in %v -> %s\n",
		report.Pages(), report.Assets(), report.Duration.Round(time.Millisecond), output)
	if n := report.Drafts(); n > 0 {
		fmt.Fprintf(env.Stdout, "Skipped %d draft(s)\n", n)
	}
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	var diag *diagnosticsError
	switch {
	case errors.As(err, &diag):
		return hints.ForDiagnostics(diag.count)
	case errors.Is(err, notesite.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, notesite.ErrPageLoad), errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, typst.ErrCompilerNotFound):
		return hints.ForTypstNotFound()
	case errors.Is(err, assets.ErrStyleNotFound):
		return hints.ForStyleNotFound(assets.StyleNames())
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(triedPaths(err))
	case errors.Is(err, notesite.ErrWritePage):
		return hints.ForOutputDirectory()
	}
	return ""
}

// triedPaths extracts the searched locations from a config lookup error.
func triedPaths(err error) []string {
	_, list, ok := strings.Cut(err.Error(), "tried ")
	if !ok {
		return nil
	}
	return strings.Split(list, ", ")
}
