package pipeline

import (
	"context"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TreeTransformer rewrites a parsed page in place. Non-fatal problems are
// reported to file; a returned error aborts the page.
type TreeTransformer interface {
	Transform(ctx context.Context, root *html.Node, file *File) error
}

// TreeTransformerFunc adapts a function to TreeTransformer.
type TreeTransformerFunc func(ctx context.Context, root *html.Node, file *File) error

// Transform implements TreeTransformer.
func (f TreeTransformerFunc) Transform(ctx context.Context, root *html.Node, file *File) error {
	return f(ctx, root, file)
}

// ParseHTML parses HTML content, handling both full documents and fragments.
// Returns the parsed node and whether it was a fragment.
func ParseHTML(content string) (*html.Node, bool, error) {
	trimmed := strings.ToLower(strings.TrimSpace(content))

	// Full document: starts with <!DOCTYPE or <html
	if strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html") {
		doc, err := html.Parse(strings.NewReader(content))
		return doc, false, err
	}

	nodes, err := parseFragment(content)
	if err != nil {
		return nil, true, err
	}

	// Wrap nodes in a container for uniform traversal
	container := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, true, nil
}

// RenderHTML renders the tree back to a string.
// Fragments render their children only, without an html/body wrapper.
func RenderHTML(doc *html.Node, isFragment bool) (string, error) {
	var buf strings.Builder

	if isFragment {
		for c := doc.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return "", err
			}
		}
		return buf.String(), nil
	}

	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseFragment parses content with a body context so no wrapper elements
// are synthesized.
func parseFragment(content string) ([]*html.Node, error) {
	body := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Body,
		Data:     "body",
	}
	return html.ParseFragment(strings.NewReader(content), body)
}

// textContent concatenates every text node under n, whitespace preserved.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	v, _ := getAttr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func addClass(n *html.Node, class string) {
	if hasClass(n, class) {
		return
	}
	v, ok := getAttr(n, "class")
	if !ok || strings.TrimSpace(v) == "" {
		setAttr(n, "class", class)
		return
	}
	setAttr(n, "class", v+" "+class)
}

func isElement(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// ancestors returns the chain from the root down to n.
func ancestors(n *html.Node) []*html.Node {
	var chain []*html.Node
	for p := n; p != nil; p = p.Parent {
		chain = append(chain, p)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// replaceNode puts nodes where target is. Does nothing if target was
// already detached.
func replaceNode(target *html.Node, nodes ...*html.Node) {
	parent := target.Parent
	if parent == nil {
		return
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		parent.InsertBefore(n, target)
	}
	parent.RemoveChild(target)
}

// elementText builds <tag attrs...>text</tag>.
func elementText(a atom.Atom, text string, attrs ...html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}

// findAll returns elements matching pred in document order without
// descending into matches.
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}
