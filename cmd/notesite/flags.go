package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// siteFlags holds page metadata flags.
type siteFlags struct {
	title      string
	lang       string
	dateFormat string
	drafts     bool
}

// tocFlags holds table of contents flags.
type tocFlags struct {
	title    string
	minDepth int
	maxDepth int
	disabled bool
}

// typstFlags holds formula rendering flags.
type typstFlags struct {
	bin        string
	root       string
	fontPaths  []string
	errorColor string
	disabled   bool
}

// pdfFlags holds PDF export flags.
type pdfFlags struct {
	enabled bool
	size    string
	margin  float64
	timeout string
}

// assetFlags holds style and asset flags.
type assetFlags struct {
	style     string
	assetPath string
}

// serveFlags holds preview server flags.
type serveFlags struct {
	addr    string
	noWatch bool
}

// buildFlags holds all flags for the build and serve commands.
type buildFlags struct {
	common  commonFlags
	output  string
	workers int
	strict  bool
	site    siteFlags
	toc     tocFlags
	typst   typstFlags
	pdf     pdfFlags
	assets  assetFlags
	serve   serveFlags

	fs *flag.FlagSet
}

// changed reports whether the named flag was set on the command line.
func (f *buildFlags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed logs")
}

// addSiteFlags adds page metadata flags to a FlagSet.
func addSiteFlags(fs *flag.FlagSet, f *siteFlags) {
	fs.StringVar(&f.title, "title", "", "site title appended to page titles")
	fs.StringVar(&f.lang, "lang", "", "html lang attribute")
	fs.StringVar(&f.dateFormat, "date-format", "", "last update format (iso, us, european, long or tokens)")
	fs.BoolVar(&f.drafts, "drafts", false, "build notes marked draft")
}

// addTOCFlags adds TOC flags to a FlagSet.
func addTOCFlags(fs *flag.FlagSet, f *tocFlags) {
	fs.StringVar(&f.title, "toc-title", "", "table of contents heading")
	fs.IntVar(&f.minDepth, "toc-min-depth", 0, "min heading depth for TOC (1-6, default: 2)")
	fs.IntVar(&f.maxDepth, "toc-max-depth", 0, "max heading depth for TOC (1-6, default: 3)")
	fs.BoolVar(&f.disabled, "no-toc", false, "disable table of contents")
}

// addTypstFlags adds formula rendering flags to a FlagSet.
func addTypstFlags(fs *flag.FlagSet, f *typstFlags) {
	fs.StringVar(&f.bin, "typst-bin", "", "typst executable (default: typst from PATH)")
	fs.StringVar(&f.root, "typst-root", "", "typst project root for imports")
	fs.StringSliceVar(&f.fontPaths, "font-path", nil, "extra font directory (repeatable)")
	fs.StringVar(&f.errorColor, "typst-error-color", "", "heading color of formula error blocks")
	fs.BoolVar(&f.disabled, "no-typst", false, "keep formulas as code")
}

// addPDFFlags adds PDF export flags to a FlagSet.
func addPDFFlags(fs *flag.FlagSet, f *pdfFlags) {
	fs.BoolVar(&f.enabled, "pdf", false, "also print every page to PDF")
	fs.StringVarP(&f.size, "page-size", "p", "", "PDF page size: letter, a4, legal")
	fs.Float64Var(&f.margin, "margin", 0, "PDF margin in inches (0.25-3.0)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "PDF page load timeout (e.g., 30s, 2m)")
}

// addAssetFlags adds style and asset flags to a FlagSet.
func addAssetFlags(fs *flag.FlagSet, f *assetFlags) {
	fs.StringVar(&f.style, "style", "", "CSS style name or file path (\"none\" disables)")
	fs.StringVar(&f.assetPath, "asset-path", "", "custom asset directory")
}

// addServeFlags adds preview server flags to a FlagSet.
func addServeFlags(fs *flag.FlagSet, f *serveFlags) {
	fs.StringVar(&f.addr, "addr", "", "listen address (default: 127.0.0.1:3000)")
	fs.BoolVar(&f.noWatch, "no-watch", false, "do not rebuild on change")
}

// newFlagSet creates the flag set of the build or serve command.
func newFlagSet(cmd string, f *buildFlags, usage io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(usage)

	// I/O flags
	fs.StringVarP(&f.output, "output", "o", "", "output directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = auto)")

	// Flag groups
	addCommonFlags(fs, &f.common)
	addSiteFlags(fs, &f.site)
	addTOCFlags(fs, &f.toc)
	addTypstFlags(fs, &f.typst)
	addPDFFlags(fs, &f.pdf)
	addAssetFlags(fs, &f.assets)

	switch cmd {
	case cmdBuild:
		fs.BoolVar(&f.strict, "strict", false, "fail when a formula does not compile")
		fs.Usage = func() { printBuildUsage(usage) }
	case cmdServe:
		addServeFlags(fs, &f.serve)
		fs.Usage = func() { printServeUsage(usage) }
	}

	f.fs = fs
	return fs
}

// parseCommandFlags parses build or serve flags and returns positional args.
// Parse failures wrap ErrUsage; -h returns flag.ErrHelp unchanged.
func parseCommandFlags(cmd string, args []string, usage io.Writer) (*buildFlags, []string, error) {
	f := &buildFlags{}
	fs := newFlagSet(cmd, f, usage)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 1 {
		return nil, nil, fmt.Errorf("%w: expected at most one input directory, got %d", ErrUsage, fs.NArg())
	}

	return f, fs.Args(), nil
}
