package assets

// DefaultStyleName is the name of the built-in CSS style.
const DefaultStyleName = "default"

// DefaultLayoutName is the name of the built-in page layout.
const DefaultLayoutName = "page"

// AssetLoader defines the contract for loading CSS styles and page layouts.
type AssetLoader interface {
	// LoadStyle loads a CSS style by name (without .css extension).
	// Returns ErrStyleNotFound if the style doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadStyle(name string) (string, error)

	// LoadLayout loads an html/template page layout by name (without .html extension).
	// Returns ErrLayoutNotFound if the layout doesn't exist.
	// Returns ErrInvalidAssetName if the name contains invalid characters.
	LoadLayout(name string) (string, error)
}

// kind tells where an asset lives and how a miss is reported.
type kind struct {
	dir      string
	ext      string
	notFound error
}

var (
	styleKind  = kind{dir: "styles", ext: ".css", notFound: ErrStyleNotFound}
	layoutKind = kind{dir: "templates", ext: ".html", notFound: ErrLayoutNotFound}
)

// file is the slash-separated path of name relative to an asset root.
func (k kind) file(name string) string {
	return k.dir + "/" + name + k.ext
}
