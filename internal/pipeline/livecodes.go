package pipeline

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	liveCodesURL   = "https://livecodes.io"
	runButtonClass = "run-button"
	runButtonLabel = "Run in LiveCodes"
)

// PlaygroundLinker adds a LiveCodes launcher link under code blocks written
// in a runnable language.
type PlaygroundLinker struct {
	languages map[string]bool
}

// Compile-time interface check.
var _ TreeTransformer = (*PlaygroundLinker)(nil)

// NewPlaygroundLinker enables the launcher for the given fence languages.
func NewPlaygroundLinker(languages []string) *PlaygroundLinker {
	set := make(map[string]bool, len(languages))
	for _, l := range languages {
		set[strings.ToLower(strings.TrimSpace(l))] = true
	}
	return &PlaygroundLinker{languages: set}
}

// Transform implements TreeTransformer.
func (p *PlaygroundLinker) Transform(ctx context.Context, root *html.Node, _ *File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(p.languages) == 0 {
		return nil
	}

	blocks := findAll(root, func(n *html.Node) bool {
		return isElement(n, atom.Div) && hasClass(n, codeBlockClass)
	})
	for _, block := range blocks {
		lang, _ := getAttr(block, "data-language")
		lang = strings.ToLower(lang)
		if !p.languages[lang] || hasRunButton(block) {
			continue
		}
		pre := firstChildElement(block, atom.Pre)
		if pre == nil {
			continue
		}
		code := strings.TrimRight(textContent(pre), "\n")
		block.AppendChild(elementText(atom.A, runButtonLabel,
			html.Attribute{Key: "class", Val: runButtonClass},
			html.Attribute{Key: "href", Val: liveCodesLink(lang, code)},
			html.Attribute{Key: "target", Val: "_blank"},
			html.Attribute{Key: "rel", Val: "noopener noreferrer"},
			html.Attribute{Key: "title", Val: runButtonLabel},
		))
	}
	return nil
}

// liveCodesLink opens code in the playground with the console visible.
func liveCodesLink(lang, code string) string {
	q := url.Values{}
	q.Set(lang, code)
	q.Set("console", "open")
	return liveCodesURL + "?" + q.Encode()
}

func hasRunButton(block *html.Node) bool {
	for c := block.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, atom.A) && hasClass(c, runButtonClass) {
			return true
		}
	}
	return false
}

func firstChildElement(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, a) {
			return c
		}
	}
	return nil
}
