// Package static embeds the storefront bundle.
//
// The UI build output is copied into static/dist before `go build`. In
// development dist/ only holds a placeholder index.html and the UI dev
// server serves the frontend.
package static

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/khakishop/server/pkg"
)

// FrontendFS holds the dist/ tree. "all:" keeps dotfiles.
//
//go:embed all:dist
var FrontendFS embed.FS

// hashPattern matches bundler content hashes such as "index.CU4W1PlC.js".
var hashPattern = regexp.MustCompile(`\.[a-zA-Z0-9_-]{8,}\.`)

// Handler serves the bundle with an SPA fallback: unknown paths without a
// file extension get index.html so client-side routes such as
// /curtain/linen load the app. Unknown /api/ paths answer a JSON 404.
func Handler() http.Handler {
	dist, err := fs.Sub(FrontendFS, "dist")
	if err != nil {
		panic("static: failed to open dist: " + err.Error())
	}
	return newHandler(dist)
}

func newHandler(dist fs.FS) http.Handler {
	files := http.FileServer(http.FS(dist))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			pkg.ErrorWithMessage(w, http.StatusNotFound, "not found")
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if _, err := fs.Stat(dist, name); err != nil {
			if path.Ext(name) != "" {
				http.NotFound(w, r)
				return
			}
			serveIndex(w, r, dist)
			return
		}

		if hashPattern.MatchString(name) {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}
		files.ServeHTTP(w, r)
	})
}

func serveIndex(w http.ResponseWriter, r *http.Request, dist fs.FS) {
	data, err := fs.ReadFile(dist, "index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}
