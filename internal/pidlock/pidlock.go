// Package pidlock implements a PID lock file preventing a second daemon
// instance from starting, grounded on the source's daemonize() in
// vndd_vpnd.cc: open-create the lock file, lockf(F_TLOCK), write the PID.
// Go's idiomatic equivalent of lockf is golang.org/x/sys/unix.Flock with
// LOCK_EX|LOCK_NB.
package pidlock

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrAlreadyLocked is returned by Acquire when another live process
// already holds the lock file.
var ErrAlreadyLocked = errors.New("pidlock: already locked by another instance")

// DefaultPath matches the source's working-directory pid file convention
// (daemonize() chdir's to /tmp before creating it).
const DefaultPath = "vnddvpnd.pid"

// Lock represents an acquired PID lock file. Release unlocks and removes
// the file.
type Lock struct {
	file *os.File
	path string
}

// Acquire opens (creating if needed) the lock file at path, takes a
// non-blocking exclusive flock, and writes the caller's PID into it. If
// another process already holds the lock, ErrAlreadyLocked is returned
// and the file is left untouched.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		path = DefaultPath
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0640)
	if err != nil {
		return nil, fmt.Errorf("pidlock: open %q: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyLocked
		}
		return nil, fmt.Errorf("pidlock: flock %q: %w", path, err)
	}

	if err := f.Truncate(0); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("pidlock: truncate %q: %w", path, err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("pidlock: write pid to %q: %w", path, err)
	}

	return &Lock{file: f, path: path}, nil
}

// Release unlocks and closes the lock file, then removes it. Safe to call
// once; a second call returns an error from the now-closed file.
func (l *Lock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("pidlock: unlock %q: %w", l.path, err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("pidlock: close %q: %w", l.path, err)
	}
	return os.Remove(l.path)
}
