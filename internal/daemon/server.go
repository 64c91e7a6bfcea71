package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mithrel/ingestd/internal/ingest"
	"github.com/mithrel/ingestd/internal/logger"
	"github.com/mithrel/ingestd/internal/metrics"
	"github.com/mithrel/ingestd/internal/wire"
)

const shutdownTimeout = 5 * time.Second

// Run starts the ingest socket, and the HTTP endpoint when http_addr is set,
// using the provided, already-wired App. It blocks until ctx is done.
// Failing to bind either endpoint is returned, never fatal.
func Run(ctx context.Context, app *wire.App) error {
	log := logger.Component(app.Log, "daemon")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h, err := ingest.Start(ctx, ingest.Config{
		Address:     app.Cfg.SocketPath,
		Mode:        app.Cfg.SocketMode,
		MaxPayload:  app.Cfg.MaxPayload,
		IdleTimeout: app.Cfg.IdleTimeout,
	}, app.Observer(), ingest.WithLogger(logger.Component(app.Log, "ingest")))
	if err != nil {
		return err
	}
	defer h.Close()

	httpErr := make(chan error, 1)
	if app.Cfg.HTTPAddr != "" {
		l, err := net.Listen("tcp", app.Cfg.HTTPAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", app.Cfg.HTTPAddr, err)
		}
		log.Info("http listening", "addr", l.Addr().String())
		go func() { httpErr <- Start(ctx, l, app.Metrics) }()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		return nil
	case <-h.Done():
		return errors.New("ingest accept loop stopped")
	case err := <-httpErr:
		return err
	}
}

// Start serves /healthz and /metrics on l until ctx is done.
func Start(ctx context.Context, l net.Listener, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "ok")
	})
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
