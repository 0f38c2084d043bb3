package pipeline

// Notes:
// - Broken-link checks touch the filesystem; each test builds its own notes
//   tree under t.TempDir()
// - isPathUnderDir is tested directly since escaping targets are silently
//   skipped and would otherwise be invisible

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// ---------------------------------------------------------------------------
// TestLinkRewriter - Markdown links
// ---------------------------------------------------------------------------

func TestLinkRewriter_Rewrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "sibling note",
			input: `<a href="intro.md">x</a>`,
			want:  `<a href="intro.html">x</a>`,
		},
		{
			name:  "nested note with fragment",
			input: `<a href="guide/setup.md#install">x</a>`,
			want:  `<a href="guide/setup.html#install">x</a>`,
		},
		{
			name:  "markdown extension and query",
			input: `<a href="../notes.markdown?v=2">x</a>`,
			want:  `<a href="../notes.html?v=2">x</a>`,
		},
		{
			name:  "escaped space survives",
			input: `<a href="my%20note.md">x</a>`,
			want:  `<a href="my%20note.html">x</a>`,
		},
		{
			name:  "external markdown untouched",
			input: `<a href="https://example.com/README.md">x</a>`,
			want:  `<a href="https://example.com/README.md">x</a>`,
		},
		{
			name:  "non markdown untouched",
			input: `<a href="files/report.pdf">x</a>`,
			want:  `<a href="files/report.pdf">x</a>`,
		},
		{
			name:  "anchor untouched",
			input: `<a href="#top">x</a>`,
			want:  `<a href="#top">x</a>`,
		},
		{
			name:  "site absolute untouched",
			input: `<a href="/docs/intro.md">x</a>`,
			want:  `<a href="/docs/intro.md">x</a>`,
		},
		{
			name:  "attributes preserved",
			input: `<a class="ref" href="a.md" title="A">x</a>`,
			want:  `<a class="ref" href="a.html" title="A">x</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, file := runPass(t, &LinkRewriter{}, tt.input)
			if got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
			if len(file.Messages()) != 0 {
				t.Errorf("no Root set, want no diagnostics, got %v", file.Messages())
			}
		})
	}
}

func TestLinkRewriter_BrokenLinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "guide"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	for _, name := range []string{"intro.md", filepath.Join("guide", "setup.md")} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("# x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	tree, isFragment, err := ParseHTML(`<p><a href="setup.md">ok</a> <a href="../intro.md#a">ok</a> <a href="missing.md">bad</a> <a href="../../../etc/x.md">outside</a></p>`)
	if err != nil {
		t.Fatalf("ParseHTML() error = %v", err)
	}
	file := NewFile(filepath.Join("guide", "page.md"))
	if err := (&LinkRewriter{Root: root}).Transform(t.Context(), tree, file); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	msgs := file.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(msgs), msgs)
	}
	m := msgs[0]
	if m.Reason != brokenLinkReason || m.Source != linkSource {
		t.Errorf("message = %+v", m)
	}
	if !errors.Is(m.Cause, ErrBrokenLink) {
		t.Errorf("cause = %v, want ErrBrokenLink", m.Cause)
	}
	if m.File != file.Path {
		t.Errorf("File = %q, want %q", m.File, file.Path)
	}

	out, _ := RenderHTML(tree, isFragment)
	assertContains(t, out, `href="missing.html"`, `href="setup.html"`)
}

// ---------------------------------------------------------------------------
// TestIsRelativePath / TestIsPathUnderDir - Helpers
// ---------------------------------------------------------------------------

func TestIsRelativePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want bool
	}{
		{"./image.png", true},
		{"images/logo.png", true},
		{"../parent.md", true},
		{"", false},
		{"http://example.com/img.png", false},
		{"https://example.com/img.png", false},
		{"file:///abs/path.png", false},
		{"data:image/png;base64,ABC", false},
		{"//cdn.example.com/img.png", false},
		{"mailto:me@example.com", false},
		{"#anchor", false},
		{"/absolute/path.png", false},
	}

	for _, tt := range tests {
		if got := isRelativePath(tt.path); got != tt.want {
			t.Errorf("isRelativePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsPathUnderDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		absPath string
		dir     string
		want    bool
	}{
		{name: "direct child", absPath: "/docs/a.md", dir: "/docs", want: true},
		{name: "nested child", absPath: "/docs/guide/a.md", dir: "/docs", want: true},
		{name: "parent directory", absPath: "/etc/passwd", dir: "/docs", want: false},
		{name: "dir with trailing slash", absPath: "/docs/a.md", dir: "/docs/", want: true},
		{name: "similar prefix", absPath: "/docs-other/a.md", dir: "/docs", want: false},
		{name: "exact match", absPath: "/docs", dir: "/docs", want: true},
	}

	for _, tt := range tests {
		absPath := filepath.FromSlash(tt.absPath)
		dir := filepath.FromSlash(tt.dir)
		if got := isPathUnderDir(absPath, dir); got != tt.want {
			t.Errorf("%s: isPathUnderDir(%q, %q) = %v, want %v", tt.name, absPath, dir, got, tt.want)
		}
	}
}
