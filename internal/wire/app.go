package wire

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/mithrel/ingestd/internal/config"
	"github.com/mithrel/ingestd/internal/ingest"
	"github.com/mithrel/ingestd/internal/journal"
	"github.com/mithrel/ingestd/internal/logger"
	"github.com/mithrel/ingestd/internal/metrics"
)

// App aggregates the major services for easy injection.
type App struct {
	Cfg     config.Config
	V       *viper.Viper
	Log     *slog.Logger
	Journal *journal.Journal // nil when journal.enabled is false
	Metrics *metrics.Metrics

	closers []io.Closer
}

// BuildApp wires dependencies from an already loaded Viper instance.
func BuildApp(ctx context.Context, v *viper.Viper) (*App, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	app := &App{Cfg: cfg, V: v, Log: log, Metrics: metrics.NewMetrics(), closers: []io.Closer{logCloser}}
	if cfg.JournalEnabled {
		j, err := journal.Open(ctx, cfg.JournalPath, logger.Component(log, "journal"))
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.Journal = j
		app.closers = append(app.closers, j)
	}
	return app, nil
}

// Observer fans every outcome out to the log, metrics and, when enabled,
// the journal.
func (a *App) Observer() ingest.Observer {
	obs := ingest.Fanout{
		ingest.NewLogObserver(logger.Component(a.Log, "ingest")),
		a.Metrics,
	}
	if a.Journal != nil {
		obs = append(obs, a.Journal)
	}
	return obs
}

// Close releases everything BuildApp opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
