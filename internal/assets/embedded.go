package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed styles templates
var builtin embed.FS

// EmbeddedLoader serves the style and layout compiled into the binary.
type EmbeddedLoader struct {
	fsys fs.FS
}

// NewEmbeddedLoader returns a loader over the built-in assets.
func NewEmbeddedLoader() *EmbeddedLoader {
	return &EmbeddedLoader{fsys: builtin}
}

// LoadStyle implements AssetLoader.
func (e *EmbeddedLoader) LoadStyle(name string) (string, error) {
	return e.load(name, styleKind)
}

// LoadLayout implements AssetLoader.
func (e *EmbeddedLoader) LoadLayout(name string) (string, error) {
	return e.load(name, layoutKind)
}

func (e *EmbeddedLoader) load(name string, k kind) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	data, err := fs.ReadFile(e.fsys, k.file(name))
	if err != nil {
		return "", fmt.Errorf("%w: %q", k.notFound, name)
	}
	return string(data), nil
}

// names lists the assets of kind k, sorted, without extension.
func (e *EmbeddedLoader) names(k kind) []string {
	entries, err := fs.ReadDir(e.fsys, k.dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if name, ok := strings.CutSuffix(entry.Name(), k.ext); ok && !entry.IsDir() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

var _ AssetLoader = (*EmbeddedLoader)(nil)
