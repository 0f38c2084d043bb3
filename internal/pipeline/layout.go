package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sentinel errors for page layout.
var (
	ErrLayoutParse  = errors.New("page layout parsing failed")
	ErrLayoutRender = errors.New("page layout rendering failed")
)

// PageData is what a page layout template receives.
type PageData struct {
	Lang        string
	SiteTitle   string
	Title       string
	Description string
	Tags        []string
	Style       template.CSS
	TOC         template.HTML
	Content     template.HTML
	LastUpdated string
	LiveReload  string // websocket path; empty disables the reload script
}

// Layout renders pages through an html/template layout.
type Layout struct {
	tmpl *template.Template
}

// NewLayout parses a layout template.
func NewLayout(src string) (*Layout, error) {
	tmpl, err := template.New("page").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLayoutParse, err)
	}
	return &Layout{tmpl: tmpl}, nil
}

// Render executes the layout with data.
func (l *Layout) Render(ctx context.Context, data *PageData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrLayoutRender, err)
	}
	return buf.String(), nil
}

// StyleSheet marks css as safe for a <style> element after escaping
// sequences that could close the element early.
func StyleSheet(css string) template.CSS {
	return template.CSS(sanitizeCSS(css)) // #nosec G203 -- closing sequences escaped
}

// sanitizeCSS escapes sequences that could break out of a <style> block.
func sanitizeCSS(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}

// ---------------------------------------------------------------------------
// Table of contents
// ---------------------------------------------------------------------------

// TOCOptions selects the headings listed in a page's table of contents.
type TOCOptions struct {
	Title    string
	MinDepth int // 1-6
	MaxDepth int // 1-6
}

// headingInfo represents a heading found in the page tree.
type headingInfo struct {
	Level int    // 1-6
	ID    string // anchor ID
	Text  string // heading text content
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// BuildTOC returns a numbered table of contents for the headings of root,
// or "" when none fall within the requested depths. Headings without IDs
// are skipped.
func BuildTOC(root *xhtml.Node, opts TOCOptions) template.HTML {
	headings := extractHeadings(root, opts.MinDepth, opts.MaxDepth)
	return template.HTML(generateNumberedTOC(headings, opts.Title)) // #nosec G203 -- built from escaped parts
}

func extractHeadings(root *xhtml.Node, minDepth, maxDepth int) []headingInfo {
	nodes := findAll(root, func(n *xhtml.Node) bool {
		_, ok := headingLevels[n.DataAtom]
		return ok
	})

	var headings []headingInfo
	for _, n := range nodes {
		level := headingLevels[n.DataAtom]
		if level < minDepth || level > maxDepth {
			continue
		}
		id, ok := getAttr(n, "id")
		if !ok || id == "" {
			continue
		}
		headings = append(headings, headingInfo{
			Level: level,
			ID:    id,
			Text:  strings.Join(strings.Fields(textContent(n)), " "),
		})
	}
	return headings
}

// numberingState tracks hierarchical numbering for TOC entries.
// Supports normalization (first heading becomes level 1) and gap skipping.
type numberingState struct {
	counters     [6]int // counters[0] = level 1 count, etc.
	minLevelSeen int    // for normalization (0 = not set)
	lastLevel    int    // for tracking parent relationships
}

func newNumberingState() *numberingState {
	return &numberingState{}
}

// next returns the next number string and effective depth for the given heading level.
func (n *numberingState) next(level int) (numStr string, effectiveDepth int) {
	if n.minLevelSeen == 0 {
		n.minLevelSeen = level
	}

	effectiveDepth = level - n.minLevelSeen + 1
	if effectiveDepth < 1 {
		effectiveDepth = 1
	}

	// H2 -> H4 becomes depth 1 -> depth 2 (not depth 3)
	if n.lastLevel > 0 && effectiveDepth > n.lastLevel+1 {
		effectiveDepth = n.lastLevel + 1
	}

	for i := effectiveDepth; i < len(n.counters); i++ {
		n.counters[i] = 0
	}
	n.counters[effectiveDepth-1]++
	n.lastLevel = effectiveDepth

	parts := make([]string, 0, effectiveDepth)
	for i := 0; i < effectiveDepth; i++ {
		parts = append(parts, strconv.Itoa(n.counters[i]))
	}
	return strings.Join(parts, ".") + ".", effectiveDepth
}

// generateNumberedTOC creates the TOC markup.
// Uses <div> elements instead of <ul>/<li> to avoid CSS list-style conflicts.
func generateNumberedTOC(headings []headingInfo, title string) string {
	if len(headings) == 0 {
		return ""
	}

	var buf strings.Builder
	if title != "" {
		buf.WriteString(`<h2 class="toc-title">`)
		buf.WriteString(html.EscapeString(title))
		buf.WriteString(`</h2>`)
	}
	buf.WriteString(`<div class="toc-list">`)

	numbering := newNumberingState()
	for _, h := range headings {
		num, depth := numbering.next(h.Level)

		buf.WriteString(`<div class="toc-item"`)
		if indent := float64(depth-1) * 1.5; indent > 0 {
			fmt.Fprintf(&buf, ` style="padding-left:%.1fem"`, indent)
		}
		buf.WriteString(`><a href="#`)
		buf.WriteString(html.EscapeString(h.ID))
		buf.WriteString(`">`)
		buf.WriteString(num)
		buf.WriteString(` `)
		buf.WriteString(html.EscapeString(h.Text))
		buf.WriteString(`</a></div>`)
	}

	buf.WriteString(`</div>`)
	return buf.String()
}

// FirstHeading returns the text of the first h1 in root, or "".
func FirstHeading(root *xhtml.Node) string {
	for _, n := range findAll(root, func(n *xhtml.Node) bool { return n.DataAtom == atom.H1 }) {
		if text := strings.Join(strings.Fields(textContent(n)), " "); text != "" {
			return text
		}
	}
	return ""
}
