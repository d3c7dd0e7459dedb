package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ntpscope/ntpscope/pkg/api"
)

const shutdownTimeout = 5 * time.Second

// Handler returns the serve-mode HTTP handler:
//
//	/api/v1/...   REST API
//	/ws/stream    WebSocket snapshots
//	/metrics      Prometheus metrics
//	/charts/...   files in the output directory
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", api.New(a.store, a.alerts))
	mux.Handle("/ws/stream", a.hub)
	mux.Handle("/metrics", a.metrics.Handler())
	mux.Handle("/charts/", http.StripPrefix("/charts/", http.HandlerFunc(a.serveChart)))
	return mux
}

// serveChart serves files from the current output directory, which a
// config reload may change.
func (a *App) serveChart(w http.ResponseWriter, r *http.Request) {
	http.FileServer(http.Dir(a.Config().OutputDir)).ServeHTTP(w, r)
}

func (a *App) serve(ctx context.Context) error {
	cfg := a.Config()
	go a.hub.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("app: HTTP server listening", "addr", cfg.Server.Listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		slog.Info("app: HTTP server shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
