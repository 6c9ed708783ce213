package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Read/write timeouts stay generous because
// release execution holds the request open while the payment leg runs.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
