// Package frontend serves the browser tuner, either embedded in the binary
// (build tag embed) or from a directory on disk.
package frontend

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

const indexFile = "index.html"

// SPA serves files from fsys and falls back to index.html for any path
// that does not name a file, so client-side routes resolve.
func SPA(fsys fs.FS) http.Handler {
	files := http.FileServer(http.FS(fsys))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			files.ServeHTTP(w, r)
			return
		}
		if info, err := fs.Stat(fsys, name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}
		if _, err := fs.Stat(fsys, indexFile); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFileFS(w, r, fsys, indexFile)
	})
}

// Dir serves the frontend from a directory, for development.
func Dir(dir string) http.Handler {
	return SPA(os.DirFS(dir))
}
