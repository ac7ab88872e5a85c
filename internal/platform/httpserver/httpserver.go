package httpserver

import (
	"net/http"
	"time"

	"showcase/internal/platform/config"
)

// New builds an HTTP server with sane defaults for this project. WriteTimeout
// stays unset so long-lived event streams are not cut off.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
