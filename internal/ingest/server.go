package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mithrel/ingestd/internal/ipc/transport"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Config describes one ingest endpoint.
type Config struct {
	// Address is the filesystem path of the Unix socket.
	Address string
	// Mode is applied to the socket file after bind. Zero means 0600.
	Mode os.FileMode
	// MaxPayload caps the bytes read from one connection. Zero means no cap.
	MaxPayload int64
	// IdleTimeout bounds the wait for each read. Zero means wait forever.
	IdleTimeout time.Duration
}

// Option customizes Start.
type Option func(*server)

// WithLogger sets the logger used for server-side diagnostics such as
// stale socket cleanup. Outcomes go to the Observer, not here.
func WithLogger(l *slog.Logger) Option {
	return func(s *server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithListener replaces the Unix socket listener. Stale cleanup is skipped
// because the caller owns the endpoint.
func WithListener(l transport.Listener) Option {
	return func(s *server) { s.listener = l }
}

type server struct {
	cfg      Config
	obs      Observer
	log      *slog.Logger
	listener transport.Listener
}

// Handle is a running accept loop.
type Handle struct {
	addr   string
	ln     net.Listener
	cancel context.CancelFunc
	done   chan struct{}

	once sync.Once
	err  error
}

// Start binds cfg.Address and accepts connections in the background until
// ctx is done or the handle is closed. A socket file left behind by a dead
// process is removed first; one still served by a live listener, ours or
// not, makes Start fail with ErrBind and is left alone. The lock proving ownership of the
// path is released when the accept loop exits.
func Start(ctx context.Context, cfg Config, obs Observer, opts ...Option) (*Handle, error) {
	s := &server{cfg: cfg, obs: obs, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.obs == nil {
		s.obs = ObserverFunc(func(Outcome) {})
	}
	var lock *transport.PathLock
	if s.listener == nil {
		if strings.TrimSpace(cfg.Address) == "" {
			return nil, fmt.Errorf("%w: empty socket path", ErrBind)
		}
		var err error
		lock, err = transport.Lock(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBind, err)
		}
		if err := transport.RemoveStale(cfg.Address); err != nil {
			if errors.Is(err, transport.ErrAddrInUse) {
				_ = lock.Close()
				return nil, fmt.Errorf("%w: %w", ErrBind, err)
			}
			s.log.Warn("stale socket cleanup failed", "path", cfg.Address, "err", err)
		}
		s.listener = transport.UnixListener{Path: cfg.Address, Mode: cfg.Mode}
	}

	ctx, cancel := context.WithCancel(ctx)
	l, err := s.listener.Listen(ctx)
	if err != nil {
		cancel()
		_ = lock.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, cfg.Address, err)
	}
	s.log.Info("listening", "path", cfg.Address)

	h := &Handle{addr: cfg.Address, ln: l, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer lock.Close()
		s.acceptLoop(ctx, l)
	}()
	return h, nil
}

// Addr returns the socket path the handle is bound to.
func (h *Handle) Addr() string { return h.addr }

// Done is closed once the accept loop has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the accept loop has exited.
func (h *Handle) Wait() { <-h.done }

// Close stops accepting and removes the socket file. Connections already
// handed to their goroutines are not waited for.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.cancel()
		if err := h.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			h.err = err
		}
	})
	<-h.done
	return h.err
}

func (s *server) acceptLoop(ctx context.Context, l net.Listener) {
	var delay time.Duration
	for {
		c, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.obs.Report(Outcome{Kind: KindAcceptFailed, Err: fmt.Errorf("%w: %w", ErrAccept, err), At: time.Now()})
			delay = nextDelay(delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0
		go s.serveConn(c)
	}
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptDelay
	}
	d *= 2
	if d > maxAcceptDelay {
		d = maxAcceptDelay
	}
	return d
}

// serveConn drains conn, decodes it and reports exactly one outcome.
// Nothing is ever written back.
func (s *server) serveConn(conn net.Conn) {
	defer conn.Close()
	o := Outcome{ConnID: uuid.NewString()}
	buf, err := s.drain(conn)
	o.Size = len(buf)
	switch {
	case errors.Is(err, ErrTooLarge):
		o.Kind, o.Err = KindTooLarge, err
	case errors.Is(err, ErrTimeout):
		o.Kind, o.Err = KindTimedOut, err
	case err != nil:
		o.Kind, o.Err = KindReadFailed, fmt.Errorf("%w: %w", ErrRead, err)
	default:
		m, err := Decode(buf)
		if err != nil {
			o.Kind, o.Err = KindParseFailed, err
		} else {
			o.Kind, o.Message = KindDecoded, m
		}
	}
	o.At = time.Now()
	s.obs.Report(o)
}

func (s *server) drain(conn net.Conn) ([]byte, error) {
	var r io.Reader = conn
	if s.cfg.IdleTimeout > 0 {
		r = &idleReader{conn: conn, timeout: s.cfg.IdleTimeout}
	}
	limit := s.cfg.MaxPayload
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return buf, fmt.Errorf("%w: nothing received for %s", ErrTimeout, s.cfg.IdleTimeout)
		}
		return buf, err
	}
	if limit > 0 && int64(len(buf)) > limit {
		return buf[:limit], fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return buf, nil
}

// idleReader pushes the read deadline forward before every read, so a peer
// that keeps sending is never cut off but a silent one is.
type idleReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}
