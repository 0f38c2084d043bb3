package notesite

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-notesite/internal/assets"
	"github.com/alnah/go-notesite/internal/dateutil"
	"github.com/alnah/go-notesite/internal/fileutil"
	"github.com/alnah/go-notesite/internal/pipeline"
	"github.com/alnah/go-notesite/internal/typst"
)

const (
	pagePermissions = 0o644
	htmlExtension   = "html"
	pdfExtension    = "pdf"
)

// Builder turns a directory of notes into a site.
// Create with NewBuilder, run Build or Rebuild, and Close when done.
type Builder struct {
	input  string // absolute
	output string // absolute
	cfg    builderConfig
	log    *slog.Logger

	compiler  typst.Compiler
	assets    assets.AssetLoader
	converter pipeline.HTMLConverter
	layout    *pipeline.Layout
	style     template.CSS
	passes    []pipeline.TreeTransformer

	newRenderer func() pdfRenderer // replaced by tests
	pdfPool     *rendererPool
}

// NewBuilder creates a Builder reading notes from input and writing the site
// to output. Returns an error if input is missing, a style or layout cannot
// be loaded, or an option value is invalid.
func NewBuilder(input, output string, opts ...Option) (*Builder, error) {
	b := &Builder{
		cfg: builderConfig{
			lang:       defaultLang,
			styleInput: assets.DefaultStyleName,
			layoutName: assets.DefaultLayoutName,
		},
		log:    slog.New(slog.DiscardHandler),
		assets: assets.NewEmbeddedLoader(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.resolveDirs(input, output); err != nil {
		return nil, err
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	// Handle WithAssetPath: custom directory first, embedded fallback
	if b.cfg.assetPath != "" {
		resolver, err := assets.NewAssetResolver(b.cfg.assetPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetPath, err)
		}
		b.assets = resolver
	}

	if err := b.resolveStyle(); err != nil {
		return nil, err
	}

	src, err := b.assets.LoadLayout(b.cfg.layoutName)
	if err != nil {
		return nil, fmt.Errorf("loading layout %q: %w", b.cfg.layoutName, err)
	}
	if b.layout, err = pipeline.NewLayout(src); err != nil {
		return nil, err
	}

	b.converter = pipeline.NewGoldmarkConverter(pipeline.TagOptions{})
	b.passes = b.treePasses()

	if b.cfg.pdf != nil {
		pdfOpts := *b.cfg.pdf
		if b.newRenderer == nil {
			b.newRenderer = func() pdfRenderer { return newRodRenderer(pdfOpts) }
		}
		b.pdfPool = newRendererPool(ResolvePoolSize(b.cfg.workers), b.newRenderer)
	}

	return b, nil
}

// resolveDirs makes input and output absolute and checks input.
func (b *Builder) resolveDirs(input, output string) error {
	in, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("resolving input directory: %w", err)
	}
	info, err := os.Stat(in)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, input)
		}
		return fmt.Errorf("reading input directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotDir, input)
	}

	out, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("resolving output directory: %w", err)
	}
	if out == in {
		return fmt.Errorf("%w: %s", ErrOutputInInput, output)
	}

	b.input, b.output = in, out
	return nil
}

// validate checks option values before any asset is loaded.
func (b *Builder) validate() error {
	if b.cfg.dateFormat != "" {
		if _, err := dateutil.Layout(b.cfg.dateFormat); err != nil {
			return err
		}
	}
	if toc := b.cfg.toc; toc != nil {
		if toc.MinDepth < 1 || toc.MaxDepth > 6 || toc.MinDepth > toc.MaxDepth {
			return fmt.Errorf("%w: %d-%d (must satisfy 1 <= min <= max <= 6)", ErrInvalidTOCDepth, toc.MinDepth, toc.MaxDepth)
		}
	}
	return b.cfg.pdf.Validate()
}

// resolveStyle resolves the style input (name, path, CSS content or "none").
func (b *Builder) resolveStyle() error {
	input := b.cfg.styleInput
	if input == "" || input == noStyle {
		return nil
	}

	var css string
	switch {
	case fileutil.IsCSS(input):
		css = input
	case fileutil.IsFilePath(input):
		content, err := os.ReadFile(input) // #nosec G304 -- user-provided path
		if err != nil {
			return fmt.Errorf("loading style file %q: %w", input, err)
		}
		css = string(content)
	default:
		content, err := b.assets.LoadStyle(input)
		if err != nil {
			return fmt.Errorf("loading style %q: %w", input, err)
		}
		css = content
	}
	b.style = pipeline.StyleSheet(css)
	return nil
}

// treePasses lists the passes run on every page, in order.
func (b *Builder) treePasses() []pipeline.TreeTransformer {
	var passes []pipeline.TreeTransformer
	if b.compiler != nil {
		passes = append(passes, pipeline.NewTypstRenderer(b.compiler, pipeline.RenderOptions{
			ErrorColor:  b.cfg.errorColor,
			Concurrency: b.cfg.concurrency,
			Logger:      b.log,
		}))
	}
	passes = append(passes,
		&pipeline.LinkRewriter{Root: b.input},
		&pipeline.ImageFigures{},
		&pipeline.Highlights{},
	)
	if len(b.cfg.playground) > 0 {
		passes = append(passes, pipeline.NewPlaygroundLinker(b.cfg.playground))
	}
	return passes
}

// InputDir returns the absolute notes directory.
func (b *Builder) InputDir() string { return b.input }

// OutputDir returns the absolute site directory.
func (b *Builder) OutputDir() string { return b.output }

// Close releases browser resources. The compiler is not closed.
func (b *Builder) Close() error {
	if b.pdfPool != nil {
		return b.pdfPool.close()
	}
	return nil
}

// ---------------------------------------------------------------------------
// Build / Rebuild
// ---------------------------------------------------------------------------

// jobKind says what happens to one source path.
type jobKind int

const (
	jobNote jobKind = iota
	jobAsset
	jobRemove
)

type job struct {
	kind jobKind
	rel  string // slash-separated, relative to input
}

// Build builds every note and copies every other file.
// Page failures do not stop the build: they are recorded in the Report and
// summarized in the returned error (ErrPageFailed). Cancellation stops the
// build and returns the context error.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	jobs, err := b.discover(b.input)
	if err != nil {
		return nil, err
	}
	b.log.Info("building site", "input", b.input, "output", b.output, "files", len(jobs))
	return b.run(ctx, jobs)
}

// Rebuild processes changed source paths (absolute, or relative to the
// input directory). Deleted notes and assets have their outputs removed;
// directories are rebuilt whole. Paths outside the input directory are
// ignored.
func (b *Builder) Rebuild(ctx context.Context, paths []string) (*Report, error) {
	seen := make(map[string]bool)
	var jobs []job
	for _, p := range paths {
		rel, ok := b.relative(p)
		if !ok || seen[rel] {
			continue
		}
		seen[rel] = true

		abs := filepath.Join(b.input, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			jobs = append(jobs, job{kind: jobRemove, rel: rel})
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrReadNote, err)
		case info.IsDir():
			sub, err := b.discover(abs)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, sub...)
		default:
			jobs = append(jobs, b.jobFor(rel))
		}
	}
	b.log.Debug("rebuilding", "files", len(jobs))
	return b.run(ctx, jobs)
}

// run executes jobs on the worker pool.
func (b *Builder) run(ctx context.Context, jobs []job) (*Report, error) {
	start := time.Now()
	results := make([]FileResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ResolvePoolSize(b.cfg.workers))
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			switch j.kind {
			case jobNote:
				results[i] = b.buildPage(gctx, j.rel)
			case jobAsset:
				results[i] = b.copyAsset(j.rel)
			case jobRemove:
				results[i] = b.removeOutputs(j.rel)
			}
			if err := results[i].Err; err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Source < results[j].Source })
	report := &Report{Results: results, Duration: time.Since(start)}

	failed := report.Failed()
	for _, r := range failed {
		b.log.Error("build failed", "source", r.Source, "error", r.Err)
	}
	b.log.Info("build finished",
		"pages", report.Pages(),
		"assets", report.Assets(),
		"messages", len(report.Messages()),
		"failed", len(failed),
		"duration_ms", report.Duration.Milliseconds(),
	)

	if len(failed) > 0 {
		errs := make([]error, len(failed))
		for i, r := range failed {
			errs[i] = r.Err
		}
		return report, fmt.Errorf("%w: %d of %d: %w", ErrPageFailed, len(failed), len(results), errors.Join(errs...))
	}
	return report, nil
}

// discover walks dir and returns one job per file, skipping hidden entries,
// partials ("_name.md") and the output directory.
func (b *Builder) discover(dir string) ([]job, error) {
	var jobs []job
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == b.output || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, ok := b.relative(path)
		if !ok {
			return nil
		}
		if fileutil.IsMarkdown(rel) && strings.HasPrefix(d.Name(), "_") {
			return nil
		}
		jobs = append(jobs, b.jobFor(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadNote, err)
	}
	return jobs, nil
}

func (b *Builder) jobFor(rel string) job {
	if fileutil.IsMarkdown(rel) {
		return job{kind: jobNote, rel: rel}
	}
	return job{kind: jobAsset, rel: rel}
}

// relative maps p to a slash path under the input directory. Paths outside
// input, inside output, or hidden are rejected.
func (b *Builder) relative(p string) (string, bool) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(b.input, p)
	}
	p = filepath.Clean(p)
	if p == b.output || strings.HasPrefix(p, b.output+string(filepath.Separator)) {
		return "", false
	}
	rel, err := filepath.Rel(b.input, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return "", false
		}
	}
	return rel, true
}

// outputPath maps a source path to its place in the site.
func (b *Builder) outputPath(rel, extension string) string {
	if extension != "" {
		// Extensions are constants; the error cannot occur.
		rel, _ = fileutil.ReplaceExtension(rel, extension)
	}
	return filepath.Join(b.output, filepath.FromSlash(rel))
}

// ---------------------------------------------------------------------------
// Pages
// ---------------------------------------------------------------------------

// buildPage runs the page pipeline for one note.
func (b *Builder) buildPage(ctx context.Context, rel string) FileResult {
	res := FileResult{Source: rel, Kind: KindPage}
	src := filepath.Join(b.input, filepath.FromSlash(rel))

	info, err := os.Stat(src)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrReadNote, rel, err)
		return res
	}
	data, err := os.ReadFile(src) // #nosec G304 -- path comes from walking the input directory
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrReadNote, rel, err)
		return res
	}

	note, err := pipeline.Preprocess(string(data))
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", rel, err)
		return res
	}
	if note.Meta.Draft && !b.cfg.includeDrafts {
		res.Kind = KindDraft
		b.log.Debug("skipping draft", "source", rel)
		return res
	}

	fragment, err := b.converter.ToHTML(ctx, note.Body)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", rel, err)
		return res
	}
	root, isFragment, err := pipeline.ParseHTML(fragment)
	if err != nil {
		res.Err = fmt.Errorf("%s: parsing HTML: %w", rel, err)
		return res
	}

	file := pipeline.NewFile(rel)
	for _, pass := range b.passes {
		if err := pass.Transform(ctx, root, file); err != nil {
			res.Err = fmt.Errorf("%s: %w", rel, err)
			return res
		}
	}
	res.Messages = file.Messages()

	var toc template.HTML
	if b.cfg.toc != nil {
		toc = pipeline.BuildTOC(root, *b.cfg.toc)
	}
	content, err := pipeline.RenderHTML(root, isFragment)
	if err != nil {
		res.Err = fmt.Errorf("%s: rendering HTML: %w", rel, err)
		return res
	}

	updated, err := dateutil.LastUpdated(note.Meta.LastUpdate, b.cfg.dateFormat, info.ModTime())
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", rel, err)
		return res
	}

	res.Title = pageTitle(note.Meta.Title, pipeline.FirstHeading(root), rel)
	page, err := b.layout.Render(ctx, &pipeline.PageData{
		Lang:        b.cfg.lang,
		SiteTitle:   b.cfg.siteTitle,
		Title:       res.Title,
		Description: note.Meta.Description,
		Tags:        note.Meta.Tags,
		Style:       b.style,
		TOC:         toc,
		Content:     template.HTML(content), // #nosec G203 -- rendered from the parsed tree
		LastUpdated: updated,
		LiveReload:  b.cfg.liveReload,
	})
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", rel, err)
		return res
	}

	res.Output = b.outputPath(rel, htmlExtension)
	if err := fileutil.WriteFileAtomic(res.Output, []byte(page), pagePermissions); err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrWritePage, res.Output, err)
		return res
	}

	if b.pdfPool != nil {
		res.PDF, res.Err = b.printPage(ctx, res.Output)
	}

	b.log.Debug("page built", "source", rel, "output", res.Output, "messages", len(res.Messages))
	return res
}

// printPage renders a written page to PDF next to it.
func (b *Builder) printPage(ctx context.Context, htmlPath string) (string, error) {
	r := b.pdfPool.acquire()
	defer b.pdfPool.release(r)

	data, err := r.RenderFromFile(ctx, htmlPath)
	if err != nil {
		return "", fmt.Errorf("printing %s: %w", htmlPath, err)
	}
	// Extensions are constants; the error cannot occur.
	pdfPath, _ := fileutil.ReplaceExtension(htmlPath, pdfExtension)
	if err := fileutil.WriteFileAtomic(pdfPath, data, pagePermissions); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrWritePage, pdfPath, err)
	}
	return pdfPath, nil
}

// pageTitle picks the front matter title, then the first heading, then the
// file name.
func pageTitle(frontMatter, heading, rel string) string {
	if t := strings.TrimSpace(frontMatter); t != "" {
		return t
	}
	if heading != "" {
		return heading
	}
	base := filepath.Base(filepath.FromSlash(rel))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ---------------------------------------------------------------------------
// Assets
// ---------------------------------------------------------------------------

// copyAsset copies a non-note file unless the copy is already current.
func (b *Builder) copyAsset(rel string) FileResult {
	res := FileResult{Source: rel, Kind: KindAsset}
	src := filepath.Join(b.input, filepath.FromSlash(rel))
	dst := b.outputPath(rel, "")
	res.Output = dst

	srcInfo, err := os.Stat(src)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrCopyAsset, rel, err)
		return res
	}
	if dstInfo, err := os.Stat(dst); err == nil && upToDate(srcInfo, dstInfo) {
		return res
	}

	data, err := os.ReadFile(src) // #nosec G304 -- path comes from walking the input directory
	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrCopyAsset, rel, err)
		return res
	}
	if err := fileutil.WriteFileAtomic(dst, data, srcInfo.Mode().Perm()); err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrCopyAsset, rel, err)
		return res
	}
	if err := os.Chtimes(dst, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		b.log.Debug("keeping asset time failed", "output", dst, "error", err)
	}
	return res
}

// upToDate reports whether dst is an unchanged copy of src.
func upToDate(src, dst os.FileInfo) bool {
	return src.Size() == dst.Size() && src.ModTime().Equal(dst.ModTime())
}

// removeOutputs deletes what a vanished source produced.
func (b *Builder) removeOutputs(rel string) FileResult {
	res := FileResult{Source: rel, Kind: KindRemoved}

	var errs []error
	if fileutil.IsMarkdown(rel) {
		for _, ext := range []string{htmlExtension, pdfExtension} {
			if err := os.Remove(b.outputPath(rel, ext)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	} else if err := os.RemoveAll(b.outputPath(rel, "")); err != nil {
		// Also covers a deleted directory.
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", ErrWritePage, rel, err)
	}
	b.log.Debug("outputs removed", "source", rel)
	return res
}
