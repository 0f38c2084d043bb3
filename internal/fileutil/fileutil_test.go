package fileutil_test

// Notes:
// - WriteFileAtomic: the Write/Close/Chmod error branches are not tested
//   because triggering disk failures is platform-specific. The rename path and
//   directory creation are covered.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alnah/go-notesite/internal/fileutil"
)

// ---------------------------------------------------------------------------
// TestValidateExtension - Extension validation
// ---------------------------------------------------------------------------

func TestValidateExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "simple extension", input: "html"},
		{name: "empty", input: "", wantErr: fileutil.ErrExtensionEmpty},
		{name: "forward slash", input: "../x", wantErr: fileutil.ErrExtensionPathTraversal},
		{name: "backslash", input: `..\x`, wantErr: fileutil.ErrExtensionPathTraversal},
		{name: "null byte", input: "html\x00", wantErr: fileutil.ErrExtensionPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := fileutil.ValidateExtension(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateExtension(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWriteFileAtomic - Atomic page writes
// ---------------------------------------------------------------------------

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a", "b", "page.html")
		if err := fileutil.WriteFileAtomic(path, []byte("<p>hi</p>"), 0o644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading written file: %v", err)
		}
		if string(got) != "<p>hi</p>" {
			t.Errorf("content = %q, want %q", got, "<p>hi</p>")
		}
	})

	t.Run("replaces existing file and leaves no temp files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "page.html")
		if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
			t.Fatalf("seeding file: %v", err)
		}
		if err := fileutil.WriteFileAtomic(path, []byte("new"), 0o644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		got, _ := os.ReadFile(path)
		if string(got) != "new" {
			t.Errorf("content = %q, want %q", got, "new")
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("directory has %d entries, want 1 (temp file leaked?)", len(entries))
		}
	})

	t.Run("fails when parent is a file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		if err := os.WriteFile(blocker, nil, 0o644); err != nil {
			t.Fatalf("seeding file: %v", err)
		}
		if err := fileutil.WriteFileAtomic(filepath.Join(blocker, "page.html"), nil, 0o644); err == nil {
			t.Error("WriteFileAtomic() expected error when parent is a file")
		}
	})
}

// ---------------------------------------------------------------------------
// TestReplaceExtension - Output path derivation
// ---------------------------------------------------------------------------

func TestReplaceExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path, ext, want string
		wantErr         error
	}{
		{path: "docs/intro.md", ext: "html", want: "docs/intro.html"},
		{path: "notes.v2.markdown", ext: "pdf", want: "notes.v2.pdf"},
		{path: "README", ext: "html", want: "README.html"},
		{path: "a.md", ext: "", wantErr: fileutil.ErrExtensionEmpty},
	}

	for _, tt := range tests {
		got, err := fileutil.ReplaceExtension(tt.path, tt.ext)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ReplaceExtension(%q, %q) error = %v, want %v", tt.path, tt.ext, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ReplaceExtension(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestIsMarkdown / TestFileExists / TestIsFilePath / TestIsURL
// ---------------------------------------------------------------------------

func TestIsMarkdown(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"intro.md":        true,
		"notes.MARKDOWN":  true,
		"style.css":       false,
		"md":              false,
		"dir/page.md.bak": false,
	}
	for in, want := range tests {
		if got := fileutil.IsMarkdown(in); got != want {
			t.Errorf("IsMarkdown(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "note.md")
	if err := os.WriteFile(file, []byte("# hi"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	if !fileutil.FileExists(file) {
		t.Errorf("FileExists(%q) = false, want true", file)
	}
	if fileutil.FileExists(dir) {
		t.Errorf("FileExists(dir) = true, want false")
	}
	if fileutil.FileExists(filepath.Join(dir, "missing.md")) {
		t.Errorf("FileExists(missing) = true, want false")
	}
}

func TestIsFilePath(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"notesite":        false,
		"./notesite.yaml": true,
		"conf/site.yaml":  true,
		`conf\site.yaml`:  true,
		"notesite.yaml":   false,
	}
	for in, want := range tests {
		if got := fileutil.IsFilePath(in); got != want {
			t.Errorf("IsFilePath(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"http://example.com":    true,
		"https://example.com":   true,
		"//cdn.example.com/x":   true,
		"mailto:me@example.com": true,
		"data:image/png;base64": true,
		"./intro.md":            false,
		"intro.md#setup":        false,
		"/abs/page.md":          false,
	}
	for in, want := range tests {
		if got := fileutil.IsURL(in); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsCSS(t *testing.T) {
	t.Parallel()

	tests := map[string]bool{
		"default":            false,
		"styles/site.css":    false,
		"body { margin: 0 }": true,
		".a{color:red}":      true,
	}
	for in, want := range tests {
		if got := fileutil.IsCSS(in); got != want {
			t.Errorf("IsCSS(%q) = %v, want %v", in, got, want)
		}
	}
}
