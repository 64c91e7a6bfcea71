package transport

import (
	"errors"
	"fmt"
	"os"
)

// ErrAddrInUse means another live listener owns the socket path.
var ErrAddrInUse = errors.New("socket address already in use")

var errLockBusy = errors.New("lock busy")

// LockSuffix is appended to a socket path to name its lock file.
const LockSuffix = ".lock"

// PathLock is an exclusive advisory lock tied to a socket path. Holding it
// is what makes a listener the single live owner of that path.
type PathLock struct {
	path string
	file *os.File
}

// lockAttempts bounds retries when the lock file is replaced underneath us.
const lockAttempts = 5

// Lock takes the non-blocking exclusive lock for socketPath. It fails with
// ErrAddrInUse when another listener, in this process or another, holds it.
func Lock(socketPath string) (*PathLock, error) {
	lockPath := socketPath + LockSuffix
	for i := 0; i < lockAttempts; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return nil, err
		}
		if err := lockFile(f); err != nil {
			_ = f.Close()
			if errors.Is(err, errLockBusy) {
				return nil, fmt.Errorf("%s: %w", socketPath, ErrAddrInUse)
			}
			return nil, err
		}
		// The previous owner unlinks the file before unlocking. A lock taken
		// on an unlinked file proves nothing, so start over on the new one.
		if sameFile(f, lockPath) {
			return &PathLock{path: lockPath, file: f}, nil
		}
		_ = unlockFile(f)
		_ = f.Close()
	}
	return nil, fmt.Errorf("%s: lock file keeps changing", socketPath)
}

func sameFile(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	cur, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, cur)
}

// Close removes the lock file, unless it was already replaced by another
// owner's, and releases the lock.
func (l *PathLock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	var rerr error
	if sameFile(l.file, l.path) {
		rerr = os.Remove(l.path)
	}
	err := unlockFile(l.file)
	cerr := l.file.Close()
	l.file = nil
	return errors.Join(rerr, err, cerr)
}
