// Package web embeds the dashboard page (dist/) and serves it as a
// single-page application. The page holds no state of its own: it renders
// region frames from /ws/dashboard and sends user actions back.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

const indexFile = "index.html"

// SPAHandler serves the embedded dashboard page.
func SPAHandler() http.Handler {
	page, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: dist missing from embed: " + err.Error())
	}
	return pageHandler(page)
}

// pageHandler serves assets from page as files. Every other path, including
// deep links a tab reloads on, gets index.html uncached so a restarted
// dashboard hands out its current script.
func pageHandler(page fs.FS) http.Handler {
	assets := http.FileServerFS(page)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && name != indexFile && isFile(page, name) {
			assets.ServeHTTP(w, r)
			return
		}

		data, err := fs.ReadFile(page, indexFile)
		if err != nil {
			http.Error(w, "dashboard page not built", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	})
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
