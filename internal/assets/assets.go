package assets

var defaultLoader = NewEmbeddedLoader()

// LoadStyle returns a built-in style. name has no extension.
func LoadStyle(name string) (string, error) {
	return defaultLoader.LoadStyle(name)
}

// LoadLayout returns a built-in page layout.
func LoadLayout(name string) (string, error) {
	return defaultLoader.LoadLayout(name)
}

// StyleNames lists the built-in styles, sorted.
func StyleNames() []string {
	return defaultLoader.names(styleKind)
}
