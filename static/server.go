package static

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"
)

//go:embed dist
var dist embed.FS

// Handler serves the embedded web client built into dist.
var Handler = sync.OnceValue(func() http.Handler {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		return http.NotFoundHandler()
	}
	return newClient(sub)
})

// client serves files that exist in its file system and answers every other
// path with the single-page app's index, so client-side routes such as
// /join/12345 survive a reload.
type client struct {
	files fs.FS
	index []byte
	http  http.Handler
}

func newClient(files fs.FS) *client {
	index, _ := fs.ReadFile(files, "index.html")
	return &client{files: files, index: index, http: http.FileServer(http.FS(files))}
}

func (c *client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name != "" && name != "index.html" {
		if info, err := fs.Stat(c.files, name); err == nil && !info.IsDir() {
			c.http.ServeHTTP(w, r)
			return
		}
		// a missing build artifact is an error, not a client route
		if strings.HasPrefix(name, "assets/") {
			http.NotFound(w, r)
			return
		}
	}
	if c.index == nil {
		http.Error(w, "web client not built", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader(c.index))
}
