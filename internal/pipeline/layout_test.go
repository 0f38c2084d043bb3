package pipeline

// Notes:
// - the layout tests parse the embedded page layout so a template change that
//   drops a PageData field fails here rather than at build time
// - BuildTOC works on the parsed page tree, so heading text arrives decoded and
//   must be escaped exactly once

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alnah/go-notesite/internal/assets"
)

// ---------------------------------------------------------------------------
// TestSanitizeCSS - Style element escaping
// ---------------------------------------------------------------------------

func TestSanitizeCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "no escape needed", input: "body { color: red; }", expected: "body { color: red; }"},
		{name: "escapes style close", input: "</style>", expected: `<\/style>`},
		{name: "multiple occurrences", input: "</a></b>", expected: `<\/a><\/b>`},
		{name: "case variation STYLE", input: "</STYLE>", expected: `<\/STYLE>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := sanitizeCSS(tt.input)
			if got != tt.expected {
				t.Errorf("sanitizeCSS(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestLayout - Page rendering
// ---------------------------------------------------------------------------

func TestNewLayout_InvalidTemplate(t *testing.T) {
	t.Parallel()

	_, err := NewLayout("{{.Title")
	if !errors.Is(err, ErrLayoutParse) {
		t.Errorf("NewLayout() error = %v, want ErrLayoutParse", err)
	}
}

func TestLayout_Render(t *testing.T) {
	t.Parallel()

	src, err := assets.LoadLayout(assets.DefaultLayoutName)
	if err != nil {
		t.Fatalf("LoadLayout() unexpected error: %v", err)
	}
	layout, err := NewLayout(src)
	if err != nil {
		t.Fatalf("NewLayout() unexpected error: %v", err)
	}

	data := &PageData{
		Lang:        "en",
		SiteTitle:   "Notes",
		Title:       "Fish & Chips",
		Description: "A page",
		Tags:        []string{"food"},
		Style:       StyleSheet("body { margin: 0 } /* </style> */"),
		TOC:         `<div class="toc-list"></div>`,
		Content:     `<h1 id="x">Body</h1>`,
		LastUpdated: "2024-05-01",
		LiveReload:  "/_livereload",
	}

	got, err := layout.Render(context.Background(), data)
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	assertContains(t, got,
		`<html lang="en">`,
		`Fish &amp; Chips`,
		`<h1 id="x">Body</h1>`,
		`<div class="toc-list"></div>`,
		`<\/style>`,
		`2024-05-01`,
		`_livereload`,
	)
	if strings.Contains(got, "/* </style>") {
		t.Error("Render() left a closing style tag inside the stylesheet")
	}
}

func TestLayout_RenderWithoutLiveReload(t *testing.T) {
	t.Parallel()

	layout, err := NewLayout(`<p>{{.Title}}</p>{{if .LiveReload}}<script></script>{{end}}`)
	if err != nil {
		t.Fatalf("NewLayout() unexpected error: %v", err)
	}
	got, err := layout.Render(context.Background(), &PageData{Title: "T"})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	if got != "<p>T</p>" {
		t.Errorf("Render() = %q, want %q", got, "<p>T</p>")
	}
}

func TestLayout_RenderMissingField(t *testing.T) {
	t.Parallel()

	layout, err := NewLayout(`{{.Nope}}`)
	if err != nil {
		t.Fatalf("NewLayout() unexpected error: %v", err)
	}
	_, err = layout.Render(context.Background(), &PageData{})
	if !errors.Is(err, ErrLayoutRender) {
		t.Errorf("Render() error = %v, want ErrLayoutRender", err)
	}
}

func TestLayout_RenderContextCancellation(t *testing.T) {
	t.Parallel()

	layout, err := NewLayout(`x`)
	if err != nil {
		t.Fatalf("NewLayout() unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = layout.Render(ctx, &PageData{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// TestNumberingState - Hierarchical numbering
// ---------------------------------------------------------------------------

func TestNumberingState_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		levels     []int
		want       []string
		wantDepths []int
	}{
		{
			name:       "sequential h1s",
			levels:     []int{1, 1, 1},
			want:       []string{"1.", "2.", "3."},
			wantDepths: []int{1, 1, 1},
		},
		{
			name:       "h1 h2 h3 nested",
			levels:     []int{1, 2, 3},
			want:       []string{"1.", "1.1.", "1.1.1."},
			wantDepths: []int{1, 2, 3},
		},
		{
			name:       "return to h2 resets h3",
			levels:     []int{1, 2, 3, 2},
			want:       []string{"1.", "1.1.", "1.1.1.", "1.2."},
			wantDepths: []int{1, 2, 3, 2},
		},
		{
			name:       "normalization starts at h2",
			levels:     []int{2, 2, 3},
			want:       []string{"1.", "2.", "2.1."},
			wantDepths: []int{1, 1, 2},
		},
		{
			name:       "gap skipping h1 to h3",
			levels:     []int{1, 3},
			want:       []string{"1.", "1.1."},
			wantDepths: []int{1, 2},
		},
		{
			name:       "complex sequence",
			levels:     []int{1, 2, 2, 3, 2, 1, 2},
			want:       []string{"1.", "1.1.", "1.2.", "1.2.1.", "1.3.", "2.", "2.1."},
			wantDepths: []int{1, 2, 2, 3, 2, 1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			state := newNumberingState()
			for i, level := range tt.levels {
				got, depth := state.next(level)
				if got != tt.want[i] {
					t.Errorf("next(%d) at step %d = %q, want %q", level, i, got, tt.want[i])
				}
				if depth != tt.wantDepths[i] {
					t.Errorf("next(%d) at step %d depth = %d, want %d", level, i, depth, tt.wantDepths[i])
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestBuildTOC - Headings from the page tree
// ---------------------------------------------------------------------------

func TestBuildTOC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		input        string
		opts         TOCOptions
		wantEmpty    bool
		wantContains []string
		wantMissing  []string
	}{
		{
			name:      "no headings",
			input:     `<p>text</p>`,
			opts:      TOCOptions{MinDepth: 1, MaxDepth: 6},
			wantEmpty: true,
		},
		{
			name:  "title and nested entries",
			input: `<h1 id="a">Alpha</h1><h2 id="b">Beta</h2>`,
			opts:  TOCOptions{Title: "Contents", MinDepth: 1, MaxDepth: 6},
			wantContains: []string{
				`<h2 class="toc-title">Contents</h2>`,
				`<div class="toc-item"><a href="#a">1. Alpha</a></div>`,
				`<div class="toc-item" style="padding-left:1.5em"><a href="#b">1.1. Beta</a></div>`,
			},
		},
		{
			name:         "depth filter",
			input:        `<h1 id="a">Alpha</h1><h2 id="b">Beta</h2><h4 id="d">Delta</h4>`,
			opts:         TOCOptions{MinDepth: 2, MaxDepth: 3},
			wantContains: []string{`<a href="#b">1. Beta</a>`},
			wantMissing:  []string{"Alpha", "Delta"},
		},
		{
			name:         "headings without ids are skipped",
			input:        `<h2>Loose</h2><h2 id="kept">Kept</h2>`,
			opts:         TOCOptions{MinDepth: 1, MaxDepth: 6},
			wantContains: []string{`<a href="#kept">1. Kept</a>`},
			wantMissing:  []string{"Loose"},
		},
		{
			name:         "inline markup flattened and escaped once",
			input:        `<h2 id="x">A &amp; <code>B</code>   <em>C</em></h2>`,
			opts:         TOCOptions{MinDepth: 1, MaxDepth: 6},
			wantContains: []string{`1. A &amp; B C`},
			wantMissing:  []string{"&amp;amp;", "<code>"},
		},
		{
			name:         "title is escaped",
			input:        `<h2 id="x">X</h2>`,
			opts:         TOCOptions{Title: "<b>T</b>", MinDepth: 1, MaxDepth: 6},
			wantContains: []string{`&lt;b&gt;T&lt;/b&gt;`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root, _, err := ParseHTML(tt.input)
			if err != nil {
				t.Fatalf("ParseHTML() unexpected error: %v", err)
			}
			got := string(BuildTOC(root, tt.opts))

			if tt.wantEmpty {
				if got != "" {
					t.Errorf("BuildTOC() = %q, want empty", got)
				}
				return
			}
			assertContains(t, got, tt.wantContains...)
			for _, missing := range tt.wantMissing {
				if strings.Contains(got, missing) {
					t.Errorf("BuildTOC() = %q, should not contain %q", got, missing)
				}
			}
		})
	}
}

func TestFirstHeading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "none", input: `<h2>Sub</h2>`, want: ""},
		{name: "first wins", input: `<h1>One <em>big</em></h1><h1>Two</h1>`, want: "One big"},
		{name: "empty heading skipped", input: `<h1> </h1><h1>Real</h1>`, want: "Real"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root, _, err := ParseHTML(tt.input)
			if err != nil {
				t.Fatalf("ParseHTML() unexpected error: %v", err)
			}
			if got := FirstHeading(root); got != tt.want {
				t.Errorf("FirstHeading() = %q, want %q", got, tt.want)
			}
		})
	}
}
