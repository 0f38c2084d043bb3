package pipeline

import (
	"context"
	"regexp"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// highlightPattern matches ==text== inside a single text run. The text must
// not start or end with a space so "a == b" comparisons stay literal.
var highlightPattern = regexp.MustCompile(`==([^\s=](?:[^\n=]*[^\s=])?)==`)

// Elements whose text is never rewritten.
var rawTextElements = map[atom.Atom]bool{
	atom.Code:     true,
	atom.Pre:      true,
	atom.Kbd:      true,
	atom.Samp:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Svg:      true,
	atom.Textarea: true,
}

// Highlights turns ==text== into <mark>text</mark> outside code.
type Highlights struct{}

// Compile-time interface check.
var _ TreeTransformer = Highlights{}

// Transform implements TreeTransformer.
func (Highlights) Transform(ctx context.Context, root *html.Node, _ *File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var texts []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && rawTextElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if highlightPattern.MatchString(n.Data) {
				texts = append(texts, n)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, t := range texts {
		replaceNode(t, splitHighlights(t.Data)...)
	}
	return nil
}

// splitHighlights breaks s into text nodes and <mark> elements.
func splitHighlights(s string) []*html.Node {
	var nodes []*html.Node
	last := 0
	for _, m := range highlightPattern.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			nodes = append(nodes, &html.Node{Type: html.TextNode, Data: s[last:m[0]]})
		}
		nodes = append(nodes, elementText(atom.Mark, s[m[2]:m[3]]))
		last = m[1]
	}
	if last < len(s) {
		nodes = append(nodes, &html.Node{Type: html.TextNode, Data: s[last:]})
	}
	return nodes
}
