package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// runWatcher starts w and returns the channel of delivered batches.
func runWatcher(t *testing.T, w *Watcher) <-chan []string {
	t.Helper()
	batches := make(chan []string, 16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, func(_ context.Context, paths []string) { batches <- paths })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return batches
}

func nextBatch(t *testing.T, batches <-chan []string) []string {
	t.Helper()
	select {
	case b := <-batches:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
		return nil
	}
}

func TestWatcher_Skip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	out := filepath.Join(root, "build")
	w, err := NewWatcher(root, []string{out}, 0, nil)
	if err != nil {
		t.Fatalf("NewWatcher() unexpected error: %v", err)
	}
	defer w.fsw.Close()

	tests := []struct {
		path string
		want bool
	}{
		{path: root, want: false},
		{path: filepath.Join(root, "a.md"), want: false},
		{path: filepath.Join(root, "guide", "b.md"), want: false},
		{path: out, want: true},
		{path: filepath.Join(out, "a.html"), want: true},
		{path: filepath.Join(root, ".git", "HEAD"), want: true},
		{path: filepath.Join(root, "node_modules", "x.js"), want: true},
		{path: filepath.Join(root, "a.md~"), want: true},
		{path: filepath.Join(root, ".a.md.swp"), want: true},
		{path: filepath.Join(filepath.Dir(root), "other.md"), want: true},
	}
	for _, tt := range tests {
		if got := w.skip(tt.path); got != tt.want {
			t.Errorf("skip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWatcher_DefaultDelay(t *testing.T) {
	t.Parallel()

	w, err := NewWatcher(t.TempDir(), nil, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fsw.Close()
	if w.delay != DefaultDebounce {
		t.Errorf("delay = %v, want %v", w.delay, DefaultDebounce)
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		root func(t *testing.T) string
	}{
		{
			name: "missing directory",
			root: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
		},
		{
			name: "regular file",
			root: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "note.md")
				if err := os.WriteFile(p, []byte("# x"), 0o600); err != nil {
					t.Fatal(err)
				}
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, err := NewWatcher(tt.root(t), nil, 0, nil)
			if err == nil {
				_ = w.fsw.Close()
				t.Fatal("NewWatcher() should fail")
			}
			if !errors.Is(err, ErrWatch) {
				t.Errorf("NewWatcher() error = %v, want ErrWatch", err)
			}
		})
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w, err := NewWatcher(root, nil, 100*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	batches := runWatcher(t, w)

	a := filepath.Join(root, "a.md")
	b := filepath.Join(root, "b.md")
	for i := range 3 {
		if err := os.WriteFile(a, []byte{byte('0' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(b, []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := nextBatch(t, batches)
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("batch = %v, want [%s %s]", got, a, b)
	}
}

func TestWatcher_NewDirectoriesAreWatched(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	w, err := NewWatcher(root, nil, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	batches := runWatcher(t, w)

	dir := filepath.Join(root, "guide")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if got := nextBatch(t, batches); len(got) != 1 || got[0] != dir {
		t.Fatalf("first batch = %v, want [%s]", got, dir)
	}

	note := filepath.Join(dir, "setup.md")
	if err := os.WriteFile(note, []byte("# Setup"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := nextBatch(t, batches); len(got) != 1 || got[0] != note {
		t.Errorf("second batch = %v, want [%s]", got, note)
	}
}

func TestWatcher_IgnoresOutputDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	out := filepath.Join(root, "build")
	if err := os.Mkdir(out, 0o755); err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(root, []string{out}, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	batches := runWatcher(t, w)

	if err := os.WriteFile(filepath.Join(out, "a.html"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	note := filepath.Join(root, "a.md")
	if err := os.WriteFile(note, []byte("# A"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := nextBatch(t, batches); len(got) != 1 || got[0] != note {
		t.Errorf("batch = %v, want only [%s]", got, note)
	}
}
