package harvest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StatusServer serves run progress as JSON. Read-only; useful for
// watching a long harvesting run from the side.
type StatusServer struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewStatusServer builds the server for the given progress view.
func NewStatusServer(addr string, p *Progress, logger *slog.Logger) *StatusServer {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.Snapshot())
	})

	return &StatusServer{
		srv:    &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start begins serving in a background goroutine.
func (s *StatusServer) Start() {
	go func() {
		s.logger.Info("harvest: status endpoint listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("harvest: status server", "error", err)
		}
	}()
}

// Shutdown stops the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
