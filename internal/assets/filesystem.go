package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemLoader reads user assets from an --asset-path directory laid out
// like the built-in ones: styles/<name>.css and templates/<name>.html.
type FilesystemLoader struct {
	root string // absolute, symlinks resolved
}

// NewFilesystemLoader checks that dir is a readable directory.
// Returns ErrInvalidBasePath otherwise.
func NewFilesystemLoader(dir string) (*FilesystemLoader, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidBasePath)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}

	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: directory does not exist: %s", ErrInvalidBasePath, root)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidBasePath, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidBasePath, root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("%w: cannot read directory: %v", ErrInvalidBasePath, err)
	}

	return &FilesystemLoader{root: root}, nil
}

// LoadStyle implements AssetLoader.
func (f *FilesystemLoader) LoadStyle(name string) (string, error) {
	return f.load(name, styleKind)
}

// LoadLayout implements AssetLoader.
func (f *FilesystemLoader) LoadLayout(name string) (string, error) {
	return f.load(name, layoutKind)
}

func (f *FilesystemLoader) load(name string, k kind) (string, error) {
	if err := ValidateAssetName(name); err != nil {
		return "", err
	}
	p := filepath.Join(f.root, filepath.FromSlash(k.file(name)))
	if err := f.contain(p); err != nil {
		return "", err
	}

	data, err := os.ReadFile(p) // #nosec G304 -- contained in root
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("%w: %q", k.notFound, name)
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrAssetRead, err)
	}
	return string(data), nil
}

// contain rejects p when it, or the file a symlink at p points to, lies
// outside the root. A p that does not exist yet is checked as written.
func (f *FilesystemLoader) contain(p string) error {
	if real, err := filepath.EvalSymlinks(p); err == nil {
		p = real
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: path escapes base directory", ErrPathTraversal)
	}
	return nil
}

var _ AssetLoader = (*FilesystemLoader)(nil)
