package pipeline

import (
	"log/slog"
	"strings"
)

// DefaultErrorColor is the heading color of the fallback block emitted when a
// formula fails to compile.
const DefaultErrorColor = "#cc0000"

// TypstClassNames holds the class names shared by the tagging and render passes.
type TypstClassNames struct {
	TypstInline string
}

// TypstMetaLabels names the two passes in diagnostics.
type TypstMetaLabels struct {
	Remark string
	Rehype string
}

// TypstShared is the configuration both passes must agree on. The render pass
// only recognizes inline formulas through the class the tagging pass sets, so
// both must be built from the same value.
type TypstShared struct {
	Lang       string
	ClassNames TypstClassNames
	MetaLabels TypstMetaLabels
}

// DefaultTypstShared returns the default cross-pass configuration.
func DefaultTypstShared() TypstShared {
	return TypstShared{
		Lang: "typst",
		ClassNames: TypstClassNames{
			TypstInline: "typst-inline",
		},
		MetaLabels: TypstMetaLabels{
			Remark: "remark-typst-ts",
			Rehype: "rehype-typst-ts",
		},
	}
}

// LanguageClass returns the class goldmark gives fenced blocks of the shared
// language ("language-typst").
func (s TypstShared) LanguageClass() string {
	return "language-" + s.Lang
}

// withDefaults fills empty fields from DefaultTypstShared.
func (s TypstShared) withDefaults() TypstShared {
	d := DefaultTypstShared()
	if s.Lang == "" {
		s.Lang = d.Lang
	}
	if s.ClassNames.TypstInline == "" {
		s.ClassNames.TypstInline = d.ClassNames.TypstInline
	}
	if s.MetaLabels.Remark == "" {
		s.MetaLabels.Remark = d.MetaLabels.Remark
	}
	if s.MetaLabels.Rehype == "" {
		s.MetaLabels.Rehype = d.MetaLabels.Rehype
	}
	return s
}

// TagOptions configures the tagging pass.
type TagOptions struct {
	// IsInline reports whether a code span holds an inline formula.
	// Nil means DefaultIsInline.
	IsInline func(text string) bool
	Shared   TypstShared
}

// DefaultIsInline matches spans written as `^expr^`. A lone `^` stays code.
func DefaultIsInline(text string) bool {
	return len(text) >= 2 && strings.HasPrefix(text, "^") && strings.HasSuffix(text, "^")
}

// RenderOptions configures the render pass.
type RenderOptions struct {
	ErrorColor string
	Shared     TypstShared

	// Concurrency bounds in-flight renders per document. Zero or negative
	// means unbounded.
	Concurrency int

	Logger *slog.Logger
}

// DisplayOptions are the boolean switches of a fenced typst block, set from
// its info string ("```typst no-autoSetPage").
type DisplayOptions struct {
	AutoSetPage bool
}

// displayOptionSetters maps option names to their fields.
var displayOptionSetters = map[string]func(*DisplayOptions, bool){
	"autoSetPage": func(o *DisplayOptions, v bool) { o.AutoSetPage = v },
}

// DefaultDisplayOptions returns the options of a block without metastring.
func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{AutoSetPage: true}
}

// ParseDisplayOptions parses a whitespace separated option list. A known name
// sets its option, "no-" followed by a known name clears it, anything else is
// ignored.
func ParseDisplayOptions(meta string) DisplayOptions {
	opts := DefaultDisplayOptions()
	for _, token := range strings.Fields(meta) {
		if set, ok := displayOptionSetters[token]; ok {
			set(&opts, true)
			continue
		}
		if name, ok := strings.CutPrefix(token, "no-"); ok {
			if set, ok := displayOptionSetters[name]; ok {
				set(&opts, false)
			}
		}
	}
	return opts
}
