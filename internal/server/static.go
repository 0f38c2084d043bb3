package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const indexFile = "index.html"

// staticHandler serves a built site. "/guide/setup" finds setup.html and
// "/guide/" finds guide/index.html.
type staticHandler struct {
	root string
}

func (h staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	upath := path.Clean("/" + r.URL.Path)
	name, redirect := h.resolve(upath, strings.HasSuffix(r.URL.Path, "/"))
	if redirect {
		http.Redirect(w, r, upath+"/", http.StatusMovedPermanently)
		return
	}
	if name == "" {
		http.NotFound(w, r)
		return
	}

	// Pages change on every rebuild.
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, name)
}

// resolve maps a cleaned URL path to a file under root. redirect is true
// for a directory requested without its trailing slash.
func (h staticHandler) resolve(upath string, trailingSlash bool) (name string, redirect bool) {
	name = filepath.Join(h.root, filepath.FromSlash(upath))

	info, err := os.Stat(name)
	switch {
	case err == nil && info.IsDir():
		if upath != "/" && !trailingSlash {
			return "", true
		}
		name = filepath.Join(name, indexFile)
		if !isFile(name) {
			return "", false
		}
		return name, false
	case err == nil:
		return name, false
	case path.Ext(upath) == "" && isFile(name+".html"):
		return name + ".html", false
	default:
		return "", false
	}
}

func isFile(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
