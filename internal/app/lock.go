package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/dpedu/b2mirror/internal/utils"
	"github.com/gofrs/flock"
)

var ErrIndexLocked = errors.New("index locked by another process")

type indexLock struct {
	flock *flock.Flock
}

func newIndexLock(indexPath string) *indexLock {
	return &indexLock{flock: flock.New(indexPath + ".lock")}
}

func (l *indexLock) Path() string {
	return l.flock.Path()
}

func (l *indexLock) Lock() error {
	if err := utils.EnsureParent(l.flock.Path()); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", l.flock.Path(), err)
	}

	locked, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock index: %w", err)
	}
	if !locked {
		return ErrIndexLocked
	}
	return nil
}

func (l *indexLock) Unlock() error {
	// if this process hasn't locked the index, then don't delete the lock file
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock index: %w", err)
	}

	return os.Remove(l.flock.Path())
}
