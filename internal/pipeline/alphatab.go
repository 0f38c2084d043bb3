package pipeline

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// AlphaTexLanguage is the fence language of music notation blocks.
const AlphaTexLanguage = "alphatex"

// KindAlphaTab is the node kind of AlphaTabBlock.
var KindAlphaTab = ast.NewNodeKind("AlphaTab")

// AlphaTabBlock holds alphaTex source for the in-browser notation engine.
type AlphaTabBlock struct {
	ast.BaseBlock
	Tracks string
	File   string
}

// Kind implements ast.Node.
func (n *AlphaTabBlock) Kind() ast.NodeKind { return KindAlphaTab }

// IsRaw implements ast.Node.
func (n *AlphaTabBlock) IsRaw() bool { return true }

// Dump implements ast.Node.
func (n *AlphaTabBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Tracks": n.Tracks, "File": n.File}, nil)
}

// alphaTabTransformer swaps ```alphatex fences for AlphaTabBlock nodes.
type alphaTabTransformer struct{}

// Transform implements parser.ASTTransformer.
func (t *alphaTabTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()

	var blocks []*ast.FencedCodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fenced, ok := n.(*ast.FencedCodeBlock); ok {
			if string(fenced.Language(source)) == AlphaTexLanguage {
				blocks = append(blocks, fenced)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, fenced := range blocks {
		block := &AlphaTabBlock{}
		block.SetLines(fenced.Lines())
		if fenced.Info != nil {
			info := bytes.TrimSpace(fenced.Info.Segment.Value(source))
			if _, meta, ok := bytes.Cut(info, []byte(" ")); ok {
				opts := parseMetaPairs(string(meta))
				block.Tracks = opts["tracks"]
				block.File = opts["file"]
			}
		}
		fenced.Parent().ReplaceChild(fenced.Parent(), fenced, block)
	}
}

// parseMetaPairs reads key=value tokens; values may be double-quoted.
// Tokens without "=" are ignored.
func parseMetaPairs(meta string) map[string]string {
	pairs := make(map[string]string)
	for _, field := range strings.Fields(meta) {
		key, val, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			continue
		}
		pairs[key] = strings.Trim(val, `"`)
	}
	return pairs
}

type alphaTabRenderer struct{}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *alphaTabRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAlphaTab, r.render)
}

func (r *alphaTabRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*AlphaTabBlock)

	_, _ = w.WriteString(`<div class="alphatab" data-tex="true"`)
	if n.Tracks != "" {
		_, _ = w.WriteString(` data-tracks="`)
		_, _ = w.Write(util.EscapeHTML([]byte(n.Tracks)))
		_ = w.WriteByte('"')
	}
	if n.File != "" {
		_, _ = w.WriteString(` data-file="`)
		_, _ = w.Write(util.EscapeHTML([]byte(n.File)))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')

	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(line.Value(source)))
	}
	_, _ = w.WriteString("</div>\n")
	return ast.WalkSkipChildren, nil
}

type alphaTabExtension struct{}

// NewAlphaTabExtension returns a goldmark extension for ```alphatex blocks.
func NewAlphaTabExtension() goldmark.Extender {
	return &alphaTabExtension{}
}

// Extend implements goldmark.Extender.
func (e *alphaTabExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(
		util.Prioritized(&alphaTabTransformer{}, 100),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&alphaTabRenderer{}, 100),
	))
}
