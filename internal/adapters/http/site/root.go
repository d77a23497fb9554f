// Package site serves the embedded landing page.
package site

import (
	"context"
	"net/http"
)

// Register attaches the landing page to mux at /. Paths not claimed by
// another handler fall through to the embedded file server and 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", http.FileServer(FS()))
}
