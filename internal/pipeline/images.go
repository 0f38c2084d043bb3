package pipeline

import (
	"context"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	figureClass        = "figure"
	figureCaptionClass = "figure-caption"
	figureStyle        = "display: flex; flex-direction: column"
	captionStyle       = "text-align: center; font-size: small; color: #888888; margin-top: 1em"
)

// ImageFigures makes images load lazily and shows their alt text as a
// caption underneath.
type ImageFigures struct{}

// Compile-time interface check.
var _ TreeTransformer = ImageFigures{}

// Transform implements TreeTransformer.
func (ImageFigures) Transform(ctx context.Context, root *html.Node, _ *File) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	images := findAll(root, func(n *html.Node) bool {
		return isElement(n, atom.Img)
	})
	for _, img := range images {
		if _, ok := getAttr(img, "decoding"); !ok {
			setAttr(img, "decoding", "async")
		}
		if _, ok := getAttr(img, "loading"); !ok {
			setAttr(img, "loading", "lazy")
		}

		alt, _ := getAttr(img, "alt")
		if alt == "" || img.Parent == nil || hasClass(img.Parent, figureClass) {
			continue
		}

		figure := elementText(atom.Span, "",
			html.Attribute{Key: "class", Val: figureClass},
			html.Attribute{Key: "style", Val: figureStyle},
		)
		replaceNode(img, figure)
		figure.AppendChild(img)
		figure.AppendChild(elementText(atom.Span, alt,
			html.Attribute{Key: "class", Val: figureCaptionClass},
			html.Attribute{Key: "style", Val: captionStyle},
		))
	}
	return nil
}
