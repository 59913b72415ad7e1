package filestore

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/hylla/kanfile/internal/app"
)

// Lock takes the store-wide advisory lock without blocking. A lock held by
// any other process, or by another Store in this process, reports app.ErrLockBusy.
func (s *Store) Lock(ctx context.Context) (app.LockGuard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fl := flock.New(s.LockPath())
	ok, err := fl.TryLock()
	if err != nil {
		return nil, ioError("acquire store lock", err)
	}
	if !ok {
		return nil, app.ErrLockBusy
	}
	return &lockGuard{fl: fl}, nil
}

// LockPath returns the lock file path.
func (s *Store) LockPath() string {
	return filepath.Join(s.root, lockFile)
}

// lockGuard releases one acquired lock exactly once.
type lockGuard struct {
	fl   *flock.Flock
	once sync.Once
	err  error
}

// Release unlocks and closes the lock file.
func (g *lockGuard) Release() error {
	g.once.Do(func() {
		if err := g.fl.Unlock(); err != nil {
			g.err = ioError("release store lock", err)
		}
	})
	return g.err
}
