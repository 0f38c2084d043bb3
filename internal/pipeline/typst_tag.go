package pipeline

import (
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const sourcePosAttr = "data-sourcepos"

// TypstTagger marks inline formulas for the render pass. Code spans matching
// IsInline lose one marker byte at each end and get the inline hint class.
// Fenced blocks in the typst language become TypstBlock nodes so their info
// string reaches the HTML tree.
type TypstTagger struct {
	isInline func(string) bool
	shared   TypstShared
}

// Compile-time interface check.
var _ parser.ASTTransformer = (*TypstTagger)(nil)

// NewTypstTagger returns a tagger; zero-valued options take their defaults.
func NewTypstTagger(opts TagOptions) *TypstTagger {
	isInline := opts.IsInline
	if isInline == nil {
		isInline = DefaultIsInline
	}
	return &TypstTagger{isInline: isInline, shared: opts.Shared.withDefaults()}
}

// Transform implements parser.ASTTransformer.
func (t *TypstTagger) Transform(doc *ast.Document, reader text.Reader, _ parser.Context) {
	source := reader.Source()
	lines := newLineIndex(source)

	var blocks []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.CodeSpan:
			t.tagSpan(node, source, lines)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			if string(node.Language(source)) == t.shared.Lang {
				blocks = append(blocks, node)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, fenced := range blocks {
		block := newTypstBlock(fenced, source, lines)
		fenced.Parent().ReplaceChild(fenced.Parent(), fenced, block)
	}
}

func (t *TypstTagger) tagSpan(span *ast.CodeSpan, source []byte, lines lineIndex) {
	if hasHint(span, t.shared.ClassNames.TypstInline) {
		return
	}

	var (
		texts []*ast.Text
		buf   bytes.Buffer
	)
	for c := span.FirstChild(); c != nil; c = c.NextSibling() {
		txt, ok := c.(*ast.Text)
		if !ok {
			return
		}
		texts = append(texts, txt)
		buf.Write(txt.Segment.Value(source))
	}
	if len(texts) == 0 || !t.isInline(buf.String()) {
		return
	}

	pos := lines.position(texts[0].Segment.Start)
	stripMarkers(texts)

	span.SetAttributeString("class", []byte(t.shared.ClassNames.TypstInline))
	span.SetAttributeString(sourcePosAttr, []byte(pos.String()))
}

// stripMarkers drops the first and the last byte of the span's text. A span
// shorter than two bytes ends up empty.
func stripMarkers(texts []*ast.Text) {
	total := 0
	for _, txt := range texts {
		total += txt.Segment.Len()
	}
	if total < 2 {
		for _, txt := range texts {
			txt.Segment.Stop = txt.Segment.Start
		}
		return
	}

	for _, txt := range texts {
		if txt.Segment.Len() > 0 {
			txt.Segment.Start++
			break
		}
	}
	for i := len(texts) - 1; i >= 0; i-- {
		if texts[i].Segment.Len() > 0 {
			texts[i].Segment.Stop--
			break
		}
	}
}

func hasHint(n ast.Node, hint string) bool {
	v, ok := n.AttributeString("class")
	if !ok {
		return false
	}
	var classes string
	switch c := v.(type) {
	case []byte:
		classes = string(c)
	case string:
		classes = c
	}
	for _, class := range strings.Fields(classes) {
		if class == hint {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Fenced typst blocks
// ---------------------------------------------------------------------------

// KindTypstBlock is the node kind of TypstBlock.
var KindTypstBlock = ast.NewNodeKind("TypstBlock")

// TypstBlock is a fenced typst block carrying its info string options.
type TypstBlock struct {
	ast.BaseBlock
	Meta string
	Pos  Position
}

func newTypstBlock(fenced *ast.FencedCodeBlock, source []byte, lines lineIndex) *TypstBlock {
	block := &TypstBlock{}
	block.SetLines(fenced.Lines())

	if fenced.Info != nil {
		info := fenced.Info.Segment.Value(source)
		if _, rest, ok := bytes.Cut(bytes.TrimSpace(info), []byte(" ")); ok {
			block.Meta = strings.TrimSpace(string(rest))
		}
		block.Pos = lines.position(fenced.Info.Segment.Start)
		block.Pos.Column = 1
	} else if fenced.Lines().Len() > 0 {
		block.Pos = lines.position(fenced.Lines().At(0).Start)
		block.Pos.Line--
	}
	return block
}

// Kind implements ast.Node.
func (n *TypstBlock) Kind() ast.NodeKind { return KindTypstBlock }

// IsRaw implements ast.Node.
func (n *TypstBlock) IsRaw() bool { return true }

// Dump implements ast.Node.
func (n *TypstBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Meta": n.Meta}, nil)
}

// typstBlockRenderer writes TypstBlock nodes as the pre/code pair the render
// pass looks for.
type typstBlockRenderer struct {
	languageClass string
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *typstBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindTypstBlock, r.render)
}

func (r *typstBlockRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*TypstBlock)

	_, _ = w.WriteString(`<pre><code class="`)
	_, _ = w.WriteString(r.languageClass)
	_ = w.WriteByte('"')
	if n.Meta != "" {
		_, _ = w.WriteString(` data-metastring="`)
		_, _ = w.Write(util.EscapeHTML([]byte(n.Meta)))
		_ = w.WriteByte('"')
	}
	if !n.Pos.IsZero() {
		_, _ = w.WriteString(` ` + sourcePosAttr + `="` + n.Pos.String() + `"`)
	}
	_ = w.WriteByte('>')

	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(line.Value(source)))
	}
	_, _ = w.WriteString("</code></pre>\n")
	return ast.WalkSkipChildren, nil
}

// typstTagExtension registers the tagger and the block renderer.
type typstTagExtension struct {
	opts TagOptions
}

// NewTypstTagExtension returns a goldmark extension running TypstTagger.
func NewTypstTagExtension(opts TagOptions) goldmark.Extender {
	return &typstTagExtension{opts: opts}
}

// Extend implements goldmark.Extender.
func (e *typstTagExtension) Extend(m goldmark.Markdown) {
	tagger := NewTypstTagger(e.opts)
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(tagger, 100),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&typstBlockRenderer{languageClass: tagger.shared.LanguageClass()}, 100),
	))
}

// ---------------------------------------------------------------------------
// Source positions
// ---------------------------------------------------------------------------

// lineIndex holds the byte offset of every line start.
type lineIndex []int

func newLineIndex(source []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range source {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// position converts a byte offset to a 1-based line and column.
func (idx lineIndex) position(offset int) Position {
	line := sort.SearchInts(idx, offset+1) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line + 1, Column: offset - idx[line] + 1}
}
