// Package pipeline turns one Markdown note into one HTML page.
//
// A note goes through these stages:
//   - Preprocess normalizes line endings and splits off YAML front matter
//   - GoldmarkConverter renders Markdown to an HTML fragment; its
//     extensions tag typst formulas, parse ":::" admonitions and
//     alphaTex blocks, and wrap code blocks
//   - ParseHTML builds a tree that TreeTransformer passes rewrite:
//     TypstRenderer, LinkRewriter, ImageFigures, Highlights and
//     PlaygroundLinker
//   - BuildTOC and Layout assemble the final page
//
// Passes report problems as Messages on the File being built instead of
// failing the page.
package pipeline
