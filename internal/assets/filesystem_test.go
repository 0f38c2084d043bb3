package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewFilesystemLoader(t *testing.T) {
	t.Parallel()

	t.Run("valid directory", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()

		loader, err := NewFilesystemLoader(tmpDir)
		if err != nil {
			t.Fatalf("NewFilesystemLoader() error = %v", err)
		}
		if loader == nil {
			t.Fatal("NewFilesystemLoader() returned nil")
		}
	})

	t.Run("empty path returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewFilesystemLoader("")
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("NewFilesystemLoader(\"\") error = %v, want ErrInvalidBasePath", err)
		}
	})

	t.Run("nonexistent directory returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewFilesystemLoader("/nonexistent/path/abc123xyz")
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("NewFilesystemLoader() error = %v, want ErrInvalidBasePath", err)
		}
	})

	t.Run("file instead of directory returns error", func(t *testing.T) {
		t.Parallel()

		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "file.txt")
		if err := os.WriteFile(filePath, []byte("test"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		_, err := NewFilesystemLoader(filePath)
		if !errors.Is(err, ErrInvalidBasePath) {
			t.Errorf("NewFilesystemLoader() error = %v, want ErrInvalidBasePath", err)
		}
	})
}

// writeAsset creates {base}/{dir}/{name} with content.
func writeAsset(t *testing.T, base, dir, name, content string) {
	t.Helper()
	full := filepath.Join(base, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(full, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestFilesystemLoader_Load(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	writeAsset(t, base, "styles", "custom.css", "body { color: red; }")
	writeAsset(t, base, "templates", "wide.html", "<main>{{.Content}}</main>")

	loader, err := NewFilesystemLoader(base)
	if err != nil {
		t.Fatalf("NewFilesystemLoader() error = %v", err)
	}

	tests := []struct {
		name    string
		load    func(string) (string, error)
		asset   string
		want    string
		wantErr error
	}{
		{name: "style", load: loader.LoadStyle, asset: "custom", want: "body { color: red; }"},
		{name: "layout", load: loader.LoadLayout, asset: "wide", want: "<main>{{.Content}}</main>"},
		{name: "missing style", load: loader.LoadStyle, asset: "nope", wantErr: ErrStyleNotFound},
		{name: "missing layout", load: loader.LoadLayout, asset: "nope", wantErr: ErrLayoutNotFound},
		{name: "layout name is not a style", load: loader.LoadStyle, asset: "wide", wantErr: ErrStyleNotFound},
		{name: "traversal style", load: loader.LoadStyle, asset: "../secret", wantErr: ErrInvalidAssetName},
		{name: "dotted layout", load: loader.LoadLayout, asset: "wide.evil", wantErr: ErrInvalidAssetName},
		{name: "empty layout", load: loader.LoadLayout, asset: "", wantErr: ErrInvalidAssetName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.load(tt.asset)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("load(%q) error = %v, want %v", tt.asset, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("load(%q) unexpected error: %v", tt.asset, err)
			}
			if got != tt.want {
				t.Errorf("load(%q) = %q, want %q", tt.asset, got, tt.want)
			}
		})
	}
}

func TestFilesystemLoader_PathContainment(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	stylesDir := filepath.Join(tmpDir, "styles")
	if err := os.MkdirAll(stylesDir, 0o755); err != nil {
		t.Fatalf("failed to create styles dir: %v", err)
	}

	secretDir := t.TempDir()
	secretFile := filepath.Join(secretDir, "secret.css")
	if err := os.WriteFile(secretFile, []byte("secret content"), 0o644); err != nil {
		t.Fatalf("failed to write secret file: %v", err)
	}

	if err := os.Symlink(secretFile, filepath.Join(stylesDir, "evil.css")); err != nil {
		t.Skipf("symlink creation not supported: %v", err)
	}

	loader, err := NewFilesystemLoader(tmpDir)
	if err != nil {
		t.Fatalf("NewFilesystemLoader() error = %v", err)
	}

	_, err = loader.LoadStyle("evil")
	if !errors.Is(err, ErrPathTraversal) {
		t.Errorf("LoadStyle() with symlink escape error = %v, want ErrPathTraversal", err)
	}
}
