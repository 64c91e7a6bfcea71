package ingest

import "log/slog"

// Observer receives one Outcome per connection. Report is called from the
// connection's own goroutine, so implementations must be safe for
// concurrent use.
type Observer interface {
	Report(Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Outcome)

func (f ObserverFunc) Report(o Outcome) { f(o) }

// Fanout reports each outcome to every observer in order.
type Fanout []Observer

func (f Fanout) Report(o Outcome) {
	for _, ob := range f {
		if ob != nil {
			ob.Report(o)
		}
	}
}

// LogObserver writes outcomes to a structured logger.
type LogObserver struct {
	log *slog.Logger
}

func NewLogObserver(l *slog.Logger) *LogObserver {
	if l == nil {
		l = slog.Default()
	}
	return &LogObserver{log: l}
}

func (o *LogObserver) Report(out Outcome) {
	switch out.Kind {
	case KindDecoded:
		o.log.Info("received message", "conn", out.ConnID, "bytes", out.Size, "value", out.Message.String())
	case KindAcceptFailed:
		o.log.Error("accept failed", "err", out.Err)
	default:
		o.log.Warn("dropped connection", "conn", out.ConnID, "kind", string(out.Kind), "bytes", out.Size, "err", out.Err)
	}
}
