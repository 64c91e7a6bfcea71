package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortDir keeps socket paths under the sun_path limit.
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tr")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestRemoveStaleMissingPath(t *testing.T) {
	require.NoError(t, RemoveStale(filepath.Join(shortDir(t), "none.sock")))
}

func TestRemoveStaleDeadSocket(t *testing.T) {
	path := filepath.Join(shortDir(t), "s.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	// Leave the file behind the way a crashed process would.
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, l.Close())
	_, err = os.Lstat(path)
	require.NoError(t, err)

	require.NoError(t, RemoveStale(path))
	_, err = os.Lstat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRemoveStaleKeepsLiveSocket(t *testing.T) {
	path := filepath.Join(shortDir(t), "live.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer l.Close()

	err = RemoveStale(path)
	require.ErrorIs(t, err, ErrAddrInUse)
	_, err = os.Lstat(path)
	require.NoError(t, err)
}

func TestLockCloseRemovesLockFile(t *testing.T) {
	path := filepath.Join(shortDir(t), "r.sock")
	l, err := Lock(path)
	require.NoError(t, err)
	_, err = os.Stat(path + LockSuffix)
	require.NoError(t, err)

	require.NoError(t, l.Close())
	_, err = os.Stat(path + LockSuffix)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLockRetriesWhenFileReplaced(t *testing.T) {
	path := filepath.Join(shortDir(t), "x.sock")
	first, err := Lock(path)
	require.NoError(t, err)
	// A cleaner removed the file under the holder; a new owner locks a fresh one.
	require.NoError(t, os.Remove(path+LockSuffix))

	second, err := Lock(path)
	require.NoError(t, err)
	assert.True(t, sameFile(second.file, path+LockSuffix))
	assert.False(t, sameFile(first.file, path+LockSuffix))
	require.NoError(t, first.Close())
	_, err = os.Stat(path + LockSuffix)
	require.NoError(t, err, "closing the old holder must not remove the new lock file")
	require.NoError(t, second.Close())
}

func TestLockIsExclusive(t *testing.T) {
	path := filepath.Join(shortDir(t), "l.sock")

	first, err := Lock(path)
	require.NoError(t, err)

	_, err = Lock(path)
	require.ErrorIs(t, err, ErrAddrInUse)

	require.NoError(t, first.Close())
	again, err := Lock(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestLockCloseIsIdempotent(t *testing.T) {
	l, err := Lock(filepath.Join(shortDir(t), "i.sock"))
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	var nilLock *PathLock
	require.NoError(t, nilLock.Close())
}

func TestRemoveStaleKeepsRegularFile(t *testing.T) {
	path := filepath.Join(shortDir(t), "plain")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	require.NoError(t, RemoveStale(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x", string(b))
}

func TestListenAppliesMode(t *testing.T) {
	path := filepath.Join(shortDir(t), "m.sock")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := UnixListener{Path: path}.Listen(ctx)
	require.NoError(t, err)
	defer l.Close()

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestListenClosesOnCancel(t *testing.T) {
	path := filepath.Join(shortDir(t), "c.sock")
	ctx, cancel := context.WithCancel(context.Background())

	l, err := UnixListener{Path: path}.Listen(ctx)
	require.NoError(t, err)
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("listener not closed after cancel")
	}
}

func TestSendHalfCloses(t *testing.T) {
	path := filepath.Join(shortDir(t), "send.sock")
	l, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer l.Close()

	got := make(chan []byte, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		b, _ := io.ReadAll(c)
		got <- b
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := Send(ctx, path, bytes.NewBufferString(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	select {
	case b := <-got:
		assert.Equal(t, `{"a":1}`, string(b))
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw end of stream")
	}
}
