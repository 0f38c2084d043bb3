package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-notesite/internal/typst"
)

// Sentinel errors for typst rendering.
var (
	ErrNoBaseline      = errors.New("baseline query returned no result")
	ErrInvalidBaseline = errors.New("invalid baseline value")
	ErrNoSVGRoot       = errors.New("compiler output has no svg element")
	ErrSVGSize         = errors.New("cannot determine svg size")
)

const (
	// defaultEm is the compiler font size in points; sizes are divided by it
	// so formulas scale with the surrounding text.
	defaultEm = 11.0

	evictKeep        = 10
	baselineSelector = "<label>"
	renderFailure    = "Could not render math with typst"
	autoSetPageCode  = "#set page(height: auto, width: auto, margin: 0pt);\n"
)

// The inline template pins the horizontal line the formula starts on and
// exposes its vertical position as <label> metadata.
const (
	inlinePrefix = `
#set page(height: auto, width: auto, margin: 0pt)

#let s = state("t", (:))

#let pin(t) = context {
  let width = measure(line(length: here().position().y)).width
  s.update(it => it.insert(t, width) + it)
}

#show math.equation: it => {
  box(it, inset: (top: 0.5em, bottom: 0.5em))
}

$pin("l1")`
	inlineSuffix = `$

#context [
  #metadata(s.final().at("l1")) <label>
]
`
)

// TypstRenderer replaces typst code in an HTML tree with compiled SVG.
// Blocks are `pre > code.language-typst`; inline formulas carry the hint class
// set by TypstTagger.
//
// Once started, a pass always completes: a formula that fails to render
// becomes an error block plus a message on the File. The only error Transform
// returns is the context's, when it is already done before the pass starts;
// the tree is then left untouched.
type TypstRenderer struct {
	compiler   typst.Compiler
	errorColor string
	shared     TypstShared
	limit      int
	logger     *slog.Logger
}

// Compile-time interface check.
var _ TreeTransformer = (*TypstRenderer)(nil)

// NewTypstRenderer returns a render pass using compiler. The caller owns the
// compiler's lifecycle.
func NewTypstRenderer(compiler typst.Compiler, opts RenderOptions) *TypstRenderer {
	color := opts.ErrorColor
	if color == "" {
		color = DefaultErrorColor
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TypstRenderer{
		compiler:   compiler,
		errorColor: color,
		shared:     opts.Shared.withDefaults(),
		limit:      opts.Concurrency,
		logger:     logger,
	}
}

// typstCandidate is one formula found before any rewriting.
type typstCandidate struct {
	target    *html.Node // node replaced by the result
	display   bool
	options   DisplayOptions
	source    string
	place     Position
	ancestors []*html.Node
}

// Transform renders every candidate concurrently and waits for all of them.
// Render failures are reported to file and replaced by a visible error block;
// they never fail the pass. It returns ctx.Err() without touching root when
// ctx is done on entry.
func (r *TypstRenderer) Transform(ctx context.Context, root *html.Node, file *File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	candidates := r.collect(root)
	if len(candidates) == 0 {
		return nil
	}

	var (
		mu sync.Mutex // guards the tree and the sink
		g  errgroup.Group
	)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}

	for _, c := range candidates {
		g.Go(func() error {
			nodes, err := r.render(ctx, c)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.fail(c, err, file)
				return nil
			}
			replaceNode(c.target, nodes...)
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// collect finds candidates in document order without descending into them.
func (r *TypstRenderer) collect(root *html.Node) []typstCandidate {
	langClass := r.shared.LanguageClass()
	hint := r.shared.ClassNames.TypstInline

	var out []typstCandidate
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom != atom.Svg {
			isBlockLang := hasClass(n, langClass)
			if isBlockLang || hasClass(n, hint) {
				if c, ok := r.candidate(n, isBlockLang); ok {
					out = append(out, c)
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return out
}

func (r *TypstRenderer) candidate(n *html.Node, isBlockLang bool) (typstCandidate, bool) {
	c := typstCandidate{
		target:    n,
		options:   DefaultDisplayOptions(),
		ancestors: ancestors(n),
	}
	if pos, ok := getAttr(n, sourcePosAttr); ok {
		c.place = ParsePosition(pos)
	}

	if isBlockLang && n.DataAtom == atom.Code && isElement(n.Parent, atom.Pre) {
		c.target = n.Parent
		c.display = true
		if meta, ok := getAttr(n, "data-metastring"); ok {
			c.options = ParseDisplayOptions(meta)
		}
	}

	if c.target.Parent == nil {
		return typstCandidate{}, false
	}
	c.source = textContent(c.target)
	return c, true
}

// render compiles one candidate and returns the nodes to splice in.
func (r *TypstRenderer) render(ctx context.Context, c typstCandidate) ([]*html.Node, error) {
	var main string
	switch {
	case !c.display:
		main = inlinePrefix + c.source + inlineSuffix
	case c.options.AutoSetPage:
		main = autoSetPageCode + c.source
	default:
		main = c.source
	}

	doc, err := r.compiler.Compile(ctx, main)
	if err != nil {
		return nil, err
	}
	svg, err := r.compiler.SVG(ctx, doc)
	if err != nil {
		return nil, err
	}

	var baseline float64
	if !c.display {
		res, err := r.compiler.Query(ctx, doc, baselineSelector)
		if err != nil {
			return nil, err
		}
		if baseline, err = parseBaseline(res); err != nil {
			return nil, err
		}
	}

	r.compiler.EvictCache(evictKeep)
	return r.postProcess(svg, c.display, baseline)
}

// postProcess scales the SVG to em units and sets its alignment style.
func (r *TypstRenderer) postProcess(svg string, display bool, baseline float64) ([]*html.Node, error) {
	nodes, err := parseFragment(svg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSVGRoot, err)
	}

	var root *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			root = n
			break
		}
	}
	if root == nil || root.DataAtom != atom.Svg {
		return nil, ErrNoSVGRoot
	}

	height, err := svgDimension(root, "data-height", 3)
	if err != nil {
		return nil, err
	}
	width, err := svgDimension(root, "data-width", 2)
	if err != nil {
		return nil, err
	}

	var style string
	if display {
		style = "max-width: 100%; max-height: 100%; display: block; margin: 0 auto;"
	} else {
		shift := (height - baseline) / defaultEm
		style = "vertical-align: " + formatEm(-shift) + "em; max-width: 100%; max-height: 100%"
		addClass(root, r.shared.ClassNames.TypstInline)
	}
	setAttr(root, "style", style)
	setAttr(root, "height", formatEm(height/defaultEm)+"em")
	setAttr(root, "width", formatEm(width/defaultEm)+"em")

	return nodes, nil
}

// fail records the diagnostic and splices the fallback block.
func (r *TypstRenderer) fail(c typstCandidate, err error, file *File) {
	file.Report(Message{
		Reason:    renderFailure,
		Ancestors: c.ancestors,
		Cause:     err,
		Place:     c.place,
		Source:    r.shared.MetaLabels.Rehype,
	})
	r.logger.Error(renderFailure,
		slog.String("file", file.Path),
		slog.String("place", c.place.String()),
		slog.Any("error", err),
	)
	replaceNode(c.target, r.fallback(err.Error()))
}

// fallback builds the error block shown in place of a failed formula.
func (r *TypstRenderer) fallback(message string) *html.Node {
	details := elementText(atom.Details, "", html.Attribute{Key: "class", Val: "alert--warning"})
	summary := elementText(atom.Summary, "")
	summary.AppendChild(elementText(atom.Span, "Typst Error",
		html.Attribute{Key: "class", Val: "math-error"},
		html.Attribute{Key: "style", Val: "color: " + r.errorColor + "; font-weight: bold;"},
	))
	details.AppendChild(summary)
	details.AppendChild(elementText(atom.Code, message, html.Attribute{Key: "class", Val: "language-json"}))
	return details
}

// parseBaseline reads the pinned position from the first query result,
// e.g. "8.25pt".
func parseBaseline(res []typst.QueryResult) (float64, error) {
	if len(res) == 0 {
		return 0, ErrNoBaseline
	}
	raw := strings.TrimRightFunc(strings.TrimSpace(res[0].Value), unicode.IsLetter)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBaseline, res[0].Value)
	}
	return v, nil
}

// svgDimension reads attr, falling back to the given viewBox field.
func svgDimension(svg *html.Node, attr string, viewBoxField int) (float64, error) {
	if v, ok := getAttr(svg, attr); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s=%q", ErrSVGSize, attr, v)
		}
		return f, nil
	}

	vb, ok := getAttr(svg, "viewBox")
	if !ok {
		return 0, fmt.Errorf("%w: no %s or viewBox", ErrSVGSize, attr)
	}
	fields := strings.Fields(strings.ReplaceAll(vb, ",", " "))
	if len(fields) != 4 {
		return 0, fmt.Errorf("%w: viewBox=%q", ErrSVGSize, vb)
	}
	f, err := strconv.ParseFloat(fields[viewBoxField], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: viewBox=%q", ErrSVGSize, vb)
	}
	return f, nil
}

// formatEm prints v rounded to six decimals without trailing zeros.
func formatEm(v float64) string {
	v = math.Round(v*1e6) / 1e6
	if v == 0 {
		v = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
