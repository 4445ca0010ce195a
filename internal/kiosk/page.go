package kiosk

import (
	_ "embed"
	"net/http"
)

//go:embed page/index.html
var indexHTML []byte

// PageHandler serves the face page on / and, when mediaDir is set, the image
// and video files it references by relative path. Everything else is 404.
func PageHandler(mediaDir string) http.Handler {
	var media http.Handler
	if mediaDir != "" {
		media = http.FileServer(http.Dir(mediaDir))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.URL.Path == "/index.html" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Write(indexHTML)
			return
		}
		if media == nil {
			http.NotFound(w, r)
			return
		}
		media.ServeHTTP(w, r)
	})
}
