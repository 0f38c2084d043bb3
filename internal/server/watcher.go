package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 150 * time.Millisecond

// ChangeHandler receives the paths changed during one debounce window,
// sorted and deduplicated.
type ChangeHandler func(ctx context.Context, paths []string)

// Watcher reports file changes under a directory tree. New directories are
// watched as they appear; hidden entries and ignored directories are not.
type Watcher struct {
	fsw    *fsnotify.Watcher
	root   string
	ignore []string
	delay  time.Duration
	log    *slog.Logger
}

// NewWatcher watches root recursively. ignore lists directories (such as the
// output directory) whose changes are dropped.
func NewWatcher(root string, ignore []string, delay time.Duration, log *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatch, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrWatch, abs)
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ignored := make([]string, 0, len(ignore))
	for _, dir := range ignore {
		if d, err := filepath.Abs(dir); err == nil {
			ignored = append(ignored, d)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatch, err)
	}
	w := &Watcher{fsw: fsw, root: abs, ignore: ignored, delay: delay, log: log}
	if err := w.addRecursive(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive watches dir and every directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries can vanish between the event and the walk.
			if p != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.skip(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrWatch, p, err)
		}
		return nil
	})
}

// skip reports whether changes to p are ignored.
func (w *Watcher) skip(p string) bool {
	for _, dir := range w.ignore {
		if p == dir || strings.HasPrefix(p, dir+string(filepath.Separator)) {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
		if part == "node_modules" {
			return true
		}
	}
	// Editor swap and backup files.
	base := filepath.Base(p)
	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp")
}

// Run delivers debounced changes to handle until ctx is done. handle runs
// on the watcher goroutine, so events arriving meanwhile join the next batch.
func (w *Watcher) Run(ctx context.Context, handle ChangeHandler) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.record(event, pending) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.delay)
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			w.log.Debug("files changed", "count", len(paths))
			handle(ctx, paths)
		}
	}
}

// record adds a relevant event to pending and watches new directories.
func (w *Watcher) record(event fsnotify.Event, pending map[string]struct{}) bool {
	if event.Op == fsnotify.Chmod || w.skip(event.Name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Warn("cannot watch new directory", "path", event.Name, "error", err)
			}
		}
	}
	pending[event.Name] = struct{}{}
	return true
}
