package assets

import (
	"fmt"
	"strings"
)

const maxAssetNameLength = 64

// ValidateAssetName checks that an asset name is safe for use as a filename.
// Names must be non-empty, short, and free of path separators and dots.
func ValidateAssetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAssetName)
	}
	if len(name) > maxAssetNameLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidAssetName, maxAssetNameLength)
	}
	if strings.ContainsAny(name, "/\\.") {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}
