package typst

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// svgRoot is the first <svg> start tag of a document.
type svgRoot struct {
	start int               // byte offset of "<svg" in the markup
	attrs map[string]string // keys are lowercased by the tokenizer
}

// findRoot scans markup up to the first <svg> start tag. Anything before it,
// such as an XML prolog or a doctype, is skipped.
func findRoot(svg string) (svgRoot, error) {
	z := html.NewTokenizer(strings.NewReader(svg))
	offset := 0
	for {
		tt := z.Next()
		size := len(z.Raw())
		switch tt {
		case html.ErrorToken:
			return svgRoot{}, fmt.Errorf("%w: no <svg> element", ErrInvalidSVG)
		case html.StartTagToken, html.SelfClosingTagToken:
			name, more := z.TagName()
			if string(name) != "svg" {
				break
			}
			root := svgRoot{start: offset, attrs: make(map[string]string)}
			for more {
				var key, val []byte
				key, val, more = z.TagAttr()
				root.attrs[string(key)] = string(val)
			}
			return root, nil
		}
		offset += size
	}
}

// size reads the width and height of the root element's viewBox.
func (r svgRoot) size() (width, height float64, err error) {
	box, ok := r.attrs["viewbox"]
	if !ok {
		return 0, 0, fmt.Errorf("%w: root element has no viewBox", ErrInvalidSVG)
	}
	fields := strings.Fields(strings.ReplaceAll(box, ",", " "))
	if len(fields) != 4 {
		return 0, 0, fmt.Errorf("%w: malformed viewBox %q", ErrInvalidSVG, box)
	}
	width, err = strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: viewBox width: %v", ErrInvalidSVG, err)
	}
	height, err = strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: viewBox height: %v", ErrInvalidSVG, err)
	}
	return width, height, nil
}

// svgSize reads the width and height of the root element's viewBox.
func svgSize(svg string) (width, height float64, err error) {
	root, err := findRoot(svg)
	if err != nil {
		return 0, 0, err
	}
	return root.size()
}

// insertAttrs writes attrs right after the "<svg" of a markup starting with
// the root tag.
func insertAttrs(svg, attrs string) string {
	at := len("<svg")
	return svg[:at] + attrs + svg[at:]
}

// normalizeSVG drops anything before the root element and adds
// data-width/data-height to it when they are missing.
func normalizeSVG(svg string) (string, error) {
	root, err := findRoot(svg)
	if err != nil {
		return "", err
	}
	svg = svg[root.start:]

	_, hasWidth := root.attrs["data-width"]
	_, hasHeight := root.attrs["data-height"]
	if hasWidth || hasHeight {
		return svg, nil
	}

	width, height, err := root.size()
	if err != nil {
		return "", err
	}
	attrs := fmt.Sprintf(` data-width="%s" data-height="%s"`, formatNumber(width), formatNumber(height))
	return insertAttrs(svg, attrs), nil
}

// stackPages merges per-page SVGs into one document, pages laid out top to
// bottom, so multi-page sources render as a single graphic.
func stackPages(pages []string) (string, error) {
	switch len(pages) {
	case 0:
		return "", ErrNoPages
	case 1:
		return normalizeSVG(pages[0])
	}

	var (
		body   strings.Builder
		width  float64
		offset float64
	)
	for i, page := range pages {
		root, err := findRoot(page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		w, h, err := root.size()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		body.WriteString(insertAttrs(page[root.start:], fmt.Sprintf(` y="%s"`, formatNumber(offset))))

		if w > width {
			width = w
		}
		offset += h
	}

	w, h := formatNumber(width), formatNumber(offset)
	return fmt.Sprintf(
		`<svg class="typst-doc" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %s %s" width="%spt" height="%spt" data-width="%s" data-height="%s">%s</svg>`,
		w, h, w, h, w, h, body.String(),
	), nil
}

// formatNumber prints the shortest decimal form of v ("11", "0.5").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
