//go:build embed

// Package frontend embeds the coordinator's static operator page, built
// only when the "embed" tag is set so a minimal control-plane-only binary
// doesn't carry it. Deliberately out of scope per spec.md §1 ("the
// static-asset bundler... interfaces only"): the page itself is a plain
// status viewer over the /stats JSON the control API already serves.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var staticFiles embed.FS

// Handler serves the embedded static/ tree at the coordinator's "/" route.
func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
