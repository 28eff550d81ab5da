//go:build !embed

package main

import "net/http"

func frontendHandlerImpl() http.Handler {
	return nil
}
