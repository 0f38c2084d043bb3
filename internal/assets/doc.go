// Package assets provides the CSS styles and page layouts of a built site.
//
// # Loader Architecture
//
//	AssetLoader (interface)
//	    │
//	    ├── EmbeddedLoader    - loads from go:embed filesystem
//	    ├── FilesystemLoader  - loads from a custom directory on disk
//	    └── AssetResolver     - combines both with custom-first fallback
//
// AssetResolver is what the builder uses: a custom directory may override a
// single style or layout while the rest comes from the embedded defaults.
//
// # Directory Structure
//
//	{basePath}/
//	├── styles/
//	│   └── {name}.css     # CSS styles (e.g., default.css)
//	└── templates/
//	    └── {name}.html    # html/template page layouts (e.g., page.html)
//
// # Security
//
// Asset names are validated to prevent path traversal attacks.
// FilesystemLoader resolves symlinks and verifies paths stay within basePath.
package assets
