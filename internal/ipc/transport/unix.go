package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"time"
)

// probeTimeout bounds the dial that checks whether a socket file is served.
const probeTimeout = 250 * time.Millisecond

// UnixListener listens on a Unix domain socket path.
type UnixListener struct {
	Path string
	// Mode is applied to the socket file after bind. Zero means 0600.
	Mode os.FileMode
}

// Listen binds Path. It does not clean up stale socket files; call
// RemoveStale first. The listener is closed when ctx is done.
func (u UnixListener) Listen(ctx context.Context) (net.Listener, error) {
	l, err := net.Listen("unix", u.Path)
	if err != nil {
		return nil, err
	}
	mode := u.Mode
	if mode == 0 {
		mode = 0o600
	}
	_ = os.Chmod(u.Path, mode)
	go func() {
		<-ctx.Done()
		_ = l.Close()
	}()
	return l, nil
}

// RemoveStale removes a socket file left behind by a process that exited
// without cleanup. Callers must hold the path's Lock. A socket that still
// accepts a dial belongs to a listener that does not use the lock; it is
// left alone and ErrAddrInUse is returned. Paths that are not sockets are
// never touched; the subsequent bind fails on them instead.
func RemoveStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&fs.ModeSocket == 0 {
		return nil
	}
	if conn, err := net.DialTimeout("unix", path, probeTimeout); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%s: %w", path, ErrAddrInUse)
	}
	return os.Remove(path)
}

// Send writes the whole of r to the socket at path and half-closes the
// connection. End of stream is the only framing the server understands.
func Send(ctx context.Context, path string, r io.Reader) (int64, error) {
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}
	n, err := io.Copy(conn, r)
	if err != nil {
		return n, err
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		return n, uc.CloseWrite()
	}
	return n, nil
}
