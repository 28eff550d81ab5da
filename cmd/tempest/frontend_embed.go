//go:build embed

package main

import (
	"net/http"

	"github.com/tempestgen/tempest/internal/frontend"
)

func frontendHandlerImpl() http.Handler {
	return frontend.Handler()
}
