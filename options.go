package notesite

import (
	"log/slog"
	"time"

	"github.com/alnah/go-notesite/internal/assets"
	"github.com/alnah/go-notesite/internal/pipeline"
	"github.com/alnah/go-notesite/internal/typst"
)

// Option configures a Builder.
type Option func(*Builder)

// builderConfig holds the settings collected from options.
type builderConfig struct {
	siteTitle     string
	lang          string
	dateFormat    string
	styleInput    string // name, path or inline CSS; "none" disables
	assetPath     string
	layoutName    string
	toc           *pipeline.TOCOptions
	playground    []string
	errorColor    string
	concurrency   int
	workers       int
	liveReload    string
	includeDrafts bool
	pdf           *PDFOptions
}

// Default values.
const (
	defaultLang    = "en"
	defaultTimeout = 30 * time.Second
	noStyle        = "none"
)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithCompiler enables typst rendering with compiler. Without it, formulas
// stay as tagged code.
func WithCompiler(c typst.Compiler) Option {
	return func(b *Builder) {
		b.compiler = c
	}
}

// WithTypstErrorColor sets the heading color of the fallback error block.
func WithTypstErrorColor(color string) Option {
	return func(b *Builder) {
		b.cfg.errorColor = color
	}
}

// WithTypstConcurrency bounds the formulas rendered at once per page.
// Zero means unbounded.
func WithTypstConcurrency(n int) Option {
	return func(b *Builder) {
		b.cfg.concurrency = n
	}
}

// WithSiteTitle sets the title appended to every page title.
func WithSiteTitle(title string) Option {
	return func(b *Builder) {
		b.cfg.siteTitle = title
	}
}

// WithLang sets the html lang attribute.
func WithLang(lang string) Option {
	return func(b *Builder) {
		b.cfg.lang = lang
	}
}

// WithDateFormat sets the format of the "last updated" label
// (preset name or token format, see dateutil.Layout).
func WithDateFormat(format string) Option {
	return func(b *Builder) {
		b.cfg.dateFormat = format
	}
}

// WithStyle sets the page stylesheet: a style name, a file path, inline CSS,
// or "none".
func WithStyle(style string) Option {
	return func(b *Builder) {
		b.cfg.styleInput = style
	}
}

// WithLayout selects the page layout by name (default "page").
func WithLayout(name string) Option {
	return func(b *Builder) {
		b.cfg.layoutName = name
	}
}

// WithAssetPath looks up styles and layouts in dir before the embedded ones.
func WithAssetPath(dir string) Option {
	return func(b *Builder) {
		b.cfg.assetPath = dir
	}
}

// WithAssetLoader replaces the asset loader entirely.
func WithAssetLoader(l assets.AssetLoader) Option {
	return func(b *Builder) {
		if l != nil {
			b.assets = l
		}
	}
}

// WithTOC adds a numbered table of contents listing headings between
// minDepth and maxDepth.
func WithTOC(title string, minDepth, maxDepth int) Option {
	return func(b *Builder) {
		b.cfg.toc = &pipeline.TOCOptions{Title: title, MinDepth: minDepth, MaxDepth: maxDepth}
	}
}

// WithPlaygroundLanguages adds a LiveCodes button to code blocks in langs.
func WithPlaygroundLanguages(langs ...string) Option {
	return func(b *Builder) {
		b.cfg.playground = langs
	}
}

// WithWorkers sets how many notes are built at once. Zero or negative means
// ResolvePoolSize(0).
func WithWorkers(n int) Option {
	return func(b *Builder) {
		b.cfg.workers = n
	}
}

// WithLiveReload makes pages connect to the websocket at path and reload on
// change. Used by the preview server.
func WithLiveReload(path string) Option {
	return func(b *Builder) {
		b.cfg.liveReload = path
	}
}

// WithDrafts builds notes marked draft instead of skipping them.
func WithDrafts(include bool) Option {
	return func(b *Builder) {
		b.cfg.includeDrafts = include
	}
}

// WithPDF prints every built page to PDF next to its HTML file.
func WithPDF(opts PDFOptions) Option {
	return func(b *Builder) {
		b.cfg.pdf = &opts
	}
}
