package pipeline

// Notes:
// - converter tests assert on fragments of goldmark output, not whole
//   documents, so chroma markup changes do not break them
// - admonition fences nest by length: an inner ":::" never closes an outer
//   "::::"

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func convert(t *testing.T, src string) string {
	t.Helper()
	got, err := NewGoldmarkConverter(TagOptions{}).ToHTML(context.Background(), src)
	if err != nil {
		t.Fatalf("ToHTML() unexpected error: %v", err)
	}
	return got
}

// ---------------------------------------------------------------------------
// TestGoldmarkConverter_ToHTML - Markdown features
// ---------------------------------------------------------------------------

func TestGoldmarkConverter_ToHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		src          string
		wantContains []string
		wantExcludes []string
	}{
		{
			name:         "heading ids",
			src:          "# Hello World",
			wantContains: []string{`<h1 id="hello-world">Hello World</h1>`},
		},
		{
			name:         "gfm table",
			src:          "| a | b |\n|---|---|\n| 1 | 2 |",
			wantContains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:         "footnote",
			src:          "text[^1]\n\n[^1]: note",
			wantContains: []string{`class="footnotes"`},
		},
		{
			name:         "raw html dropped",
			src:          "a <b>bold</b> c",
			wantContains: []string{"raw HTML omitted"},
			wantExcludes: []string{"<b>"},
		},
		{
			name:         "highlighted code keeps language on wrapper",
			src:          "```go\nfunc main() {}\n```",
			wantContains: []string{`<div class="code-block" data-language="go"><pre`, `class="chroma"`, "</pre></div>"},
		},
		{
			name:         "unknown language falls back to plain code",
			src:          "```nosuchlang\nx\n```",
			wantContains: []string{`<div class="code-block" data-language="nosuchlang">`, "x", "</pre></div>"},
		},
		{
			name:         "code without language",
			src:          "```\nx\n```",
			wantContains: []string{`<div class="code-block"><pre><code>x`},
		},
		{
			name:         "inline typst tagged",
			src:          "a `^x^` b",
			wantContains: []string{`class="typst-inline"`, ">x</code>"},
		},
		{
			name:         "typst block bypasses highlighting",
			src:          "```typst no-autoSetPage\n#x\n```",
			wantContains: []string{`<pre><code class="language-typst" data-metastring="no-autoSetPage"`, "#x"},
			wantExcludes: []string{"code-block"},
		},
		{
			name:         "highlight syntax left for the tree pass",
			src:          "a ==b== c",
			wantContains: []string{"a ==b== c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := convert(t, tt.src)
			assertContains(t, got, tt.wantContains...)
			for _, exclude := range tt.wantExcludes {
				if strings.Contains(got, exclude) {
					t.Errorf("ToHTML() = %q, should not contain %q", got, exclude)
				}
			}
		})
	}
}

func TestGoldmarkConverter_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGoldmarkConverter(TagOptions{}).ToHTML(ctx, "# x")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ToHTML() error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// TestAdmonitions - ":::" containers
// ---------------------------------------------------------------------------

func TestAdmonitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		src          string
		wantContains []string
		wantExcludes []string
	}{
		{
			name: "default title",
			src:  ":::note\ncontent\n:::",
			wantContains: []string{
				`<div class="admonition admonition-note alert alert--note" data-admonition="note"><div class="admonition-heading">Note</div>`,
				"<div class=\"admonition-content\">\n<p>content</p>\n</div>\n</div>",
			},
		},
		{
			name:         "title after keyword",
			src:          ":::warning Mind the gap\ntext\n:::",
			wantContains: []string{`<div class="admonition-heading">Mind the gap</div>`},
		},
		{
			name:         "bracketed title",
			src:          ":::tip[Pro tip]\ntext\n:::",
			wantContains: []string{`<div class="admonition-heading">Pro tip</div>`},
		},
		{
			name:         "custom keyword borrows base style",
			src:          ":::quiz\nq\n:::",
			wantContains: []string{`admonition-secondary alert alert--secondary" data-admonition="quiz"`, "小测验"},
		},
		{
			name:         "keyword is case insensitive",
			src:          ":::NOTE\nx\n:::",
			wantContains: []string{`data-admonition="note"`},
		},
		{
			name: "details renders collapsible",
			src:  ":::details\nhidden\n:::",
			wantContains: []string{
				`<details class="admonition admonition-info alert alert--info" data-admonition="details"><summary>隐藏内容</summary>`,
				"<p>hidden</p>\n</div>\n</details>",
			},
		},
		{
			name: "nested with longer outer fence",
			src:  "::::info\nouter\n:::tip\ninner\n:::\nafter\n::::",
			wantContains: []string{
				`data-admonition="info"`,
				`data-admonition="tip"`,
				"<p>inner</p>\n</div>\n</div>\n<p>after</p>",
			},
		},
		{
			name:         "markdown inside",
			src:          ":::note\n- a\n- b\n:::",
			wantContains: []string{"<ul>", "<li>a</li>"},
		},
		{
			name:         "unknown keyword stays a paragraph",
			src:          ":::unknown\ntext\n:::",
			wantContains: []string{"<p>:::unknown"},
			wantExcludes: []string{"admonition"},
		},
		{
			name:         "title is escaped",
			src:          ":::note <b>x</b>\ny\n:::",
			wantContains: []string{`&lt;b&gt;x&lt;/b&gt;`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := convert(t, tt.src)
			assertContains(t, got, tt.wantContains...)
			for _, exclude := range tt.wantExcludes {
				if strings.Contains(got, exclude) {
					t.Errorf("ToHTML() = %q, should not contain %q", got, exclude)
				}
			}
		})
	}
}

func TestParseAdmonitionOpener(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line        string
		wantFence   int
		wantKeyword string
		wantTitle   string
		wantOK      bool
	}{
		{line: ":::note", wantFence: 3, wantKeyword: "note", wantOK: true},
		{line: "::::Tip  Title here  \n", wantFence: 4, wantKeyword: "tip", wantTitle: "Title here", wantOK: true},
		{line: ":::info[ Bracketed ]", wantFence: 3, wantKeyword: "info", wantTitle: "Bracketed", wantOK: true},
		{line: "::note", wantOK: false},
		{line: ":::", wantOK: false},
		{line: ":::note-x", wantOK: false},
		{line: "::: note", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()

			fence, keyword, title, ok := parseAdmonitionOpener([]byte(tt.line))
			if ok != tt.wantOK {
				t.Fatalf("parseAdmonitionOpener(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if fence != tt.wantFence || keyword != tt.wantKeyword || title != tt.wantTitle {
				t.Errorf("parseAdmonitionOpener(%q) = (%d, %q, %q), want (%d, %q, %q)",
					tt.line, fence, keyword, title, tt.wantFence, tt.wantKeyword, tt.wantTitle)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestAlphaTab - Music notation blocks
// ---------------------------------------------------------------------------

func TestAlphaTab(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		src          string
		wantContains []string
	}{
		{
			name:         "plain block",
			src:          "```alphatex\n:4 c4 d4\n```",
			wantContains: []string{"<div class=\"alphatab\" data-tex=\"true\">:4 c4 d4\n</div>"},
		},
		{
			name:         "meta attributes",
			src:          "```alphatex tracks=\"0,1\" file=song.gp\n\\title x\n```",
			wantContains: []string{`data-tracks="0,1"`, `data-file="song.gp"`, `\title x`},
		},
		{
			name:         "source is escaped",
			src:          "```alphatex\n<x>\n```",
			wantContains: []string{"&lt;x&gt;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := convert(t, tt.src)
			assertContains(t, got, tt.wantContains...)
			if strings.Contains(got, "code-block") {
				t.Errorf("ToHTML() = %q, alphatex should not be highlighted", got)
			}
		})
	}
}

func TestParseMetaPairs(t *testing.T) {
	t.Parallel()

	got := parseMetaPairs(`tracks="0,1" file=a.gp loose =x`)
	want := map[string]string{"tracks": "0,1", "file": "a.gp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseMetaPairs() = %v, want %v", got, want)
	}
}
