package pipeline

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const minAdmonitionFence = 3

// admonitionKind describes how a keyword renders.
type admonitionKind struct {
	base    string // alert style the keyword borrows
	title   string // heading used when the opener has none
	details bool   // render as a collapsible <details>
}

// admonitionKinds maps every accepted keyword to its rendering.
var admonitionKinds = map[string]admonitionKind{
	"note":      {base: "note", title: "Note"},
	"tip":       {base: "tip", title: "Tip"},
	"info":      {base: "info", title: "Info"},
	"warning":   {base: "warning", title: "Warning"},
	"danger":    {base: "danger", title: "Danger"},
	"caution":   {base: "caution", title: "Caution"},
	"important": {base: "important", title: "Important"},
	"secondary": {base: "secondary", title: "Secondary"},
	"success":   {base: "success", title: "Success"},
	"quote":     {base: "note", title: "引用"},
	"example":   {base: "info", title: "示例"},
	"quiz":      {base: "secondary", title: "小测验"},
	"details":   {base: "info", title: "隐藏内容", details: true},
}

// KindAdmonition is the node kind of Admonition.
var KindAdmonition = ast.NewNodeKind("Admonition")

// Admonition is a ":::type [title]" ... ":::" container.
type Admonition struct {
	ast.BaseBlock
	Keyword string
	Base    string
	Title   string
	Details bool

	fence int
}

// Kind implements ast.Node.
func (n *Admonition) Kind() ast.NodeKind { return KindAdmonition }

// Dump implements ast.Node.
func (n *Admonition) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Keyword": n.Keyword, "Title": n.Title}, nil)
}

// admonitionParser opens a container on a line of three or more colons
// followed by a known keyword. A line of at least as many colons closes it,
// so nested containers use longer fences than their parent.
type admonitionParser struct{}

// Trigger implements parser.BlockParser.
func (p *admonitionParser) Trigger() []byte { return []byte{':'} }

// Open implements parser.BlockParser.
func (p *admonitionParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 {
		return nil, parser.NoChildren
	}

	fence, keyword, title, ok := parseAdmonitionOpener(line[pos:])
	if !ok {
		return nil, parser.NoChildren
	}
	kind, known := admonitionKinds[keyword]
	if !known {
		return nil, parser.NoChildren
	}
	if title == "" {
		title = kind.title
	}

	reader.Advance(segment.Len() - trailingNewline(line))
	return &Admonition{
		Keyword: keyword,
		Base:    kind.base,
		Title:   title,
		Details: kind.details,
		fence:   fence,
	}, parser.HasChildren
}

// Continue implements parser.BlockParser.
func (p *admonitionParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*Admonition)
	line, segment := reader.PeekLine()

	w, pos := util.IndentWidth(line, reader.LineOffset())
	if w < 4 {
		i := pos
		for i < len(line) && line[i] == ':' {
			i++
		}
		if i-pos >= n.fence && util.IsBlank(line[i:]) {
			reader.Advance(segment.Len() - trailingNewline(line))
			return parser.Close
		}
	}
	return parser.Continue | parser.HasChildren
}

// Close implements parser.BlockParser.
func (p *admonitionParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

// CanInterruptParagraph implements parser.BlockParser.
func (p *admonitionParser) CanInterruptParagraph() bool { return true }

// CanAcceptIndentedLine implements parser.BlockParser.
func (p *admonitionParser) CanAcceptIndentedLine() bool { return false }

// parseAdmonitionOpener reads ":::keyword title" or ":::keyword[title]".
func parseAdmonitionOpener(line []byte) (fence int, keyword, title string, ok bool) {
	for fence < len(line) && line[fence] == ':' {
		fence++
	}
	if fence < minAdmonitionFence {
		return 0, "", "", false
	}

	rest := line[fence:]
	end := 0
	for end < len(rest) && isASCIILetter(rest[end]) {
		end++
	}
	if end == 0 {
		return 0, "", "", false
	}
	if end < len(rest) && !util.IsSpace(rest[end]) && rest[end] != '[' {
		return 0, "", "", false
	}
	tail := util.TrimRightSpace(util.TrimLeftSpace(rest[end:]))

	if len(tail) >= 2 && tail[0] == '[' && tail[len(tail)-1] == ']' {
		tail = util.TrimRightSpace(util.TrimLeftSpace(tail[1 : len(tail)-1]))
	}
	return fence, string(bytes.ToLower(rest[:end])), string(tail), true
}

func isASCIILetter(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func trailingNewline(line []byte) int {
	if len(line) > 0 && line[len(line)-1] == '\n' {
		return 1
	}
	return 0
}

// admonitionRenderer writes Admonition nodes with alert classes the default
// style knows about.
type admonitionRenderer struct{}

// RegisterFuncs implements renderer.NodeRendererFuncRegisterer.
func (r *admonitionRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindAdmonition, r.render)
}

func (r *admonitionRenderer) render(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*Admonition)
	title := util.EscapeHTML([]byte(n.Title))
	classes := `admonition admonition-` + n.Base + ` alert alert--` + n.Base

	if n.Details {
		if entering {
			_, _ = w.WriteString(`<details class="` + classes + `" data-admonition="` + n.Keyword + `"><summary>`)
			_, _ = w.Write(title)
			_, _ = w.WriteString("</summary>\n<div class=\"admonition-content\">\n")
		} else {
			_, _ = w.WriteString("</div>\n</details>\n")
		}
		return ast.WalkContinue, nil
	}

	if entering {
		_, _ = w.WriteString(`<div class="` + classes + `" data-admonition="` + n.Keyword + `">`)
		_, _ = w.WriteString(`<div class="admonition-heading">`)
		_, _ = w.Write(title)
		_, _ = w.WriteString("</div>\n<div class=\"admonition-content\">\n")
	} else {
		_, _ = w.WriteString("</div>\n</div>\n")
	}
	return ast.WalkContinue, nil
}

type admonitionExtension struct{}

// NewAdmonitionExtension returns a goldmark extension for ":::" containers.
func NewAdmonitionExtension() goldmark.Extender {
	return &admonitionExtension{}
}

// Extend implements goldmark.Extender.
func (e *admonitionExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithBlockParsers(
		util.Prioritized(&admonitionParser{}, 750),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&admonitionRenderer{}, 100),
	))
}
