// Package advisorylock serializes work across processes with named locks held on a backend that
// outlives any single process: Postgres session advisory locks or Redis keys.
package advisorylock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/payment_ledger/internal/middleware"
	"github.com/cespare/xxhash/v2"
)

// ErrUnsupported is returned by backends that cannot take the requested lock mode.
var ErrUnsupported = errors.New("lock mode not supported by backend")

// Mode is the lock mode. Shared holders exclude exclusive holders but not each other.
type Mode int

const (
	Exclusive Mode = iota
	Shared
)

func (m Mode) String() string {
	if m == Shared {
		return "shared"
	}
	return "exclusive"
}

// Lease is a held lock. Release must be called exactly once.
type Lease interface {
	Release(ctx context.Context) error
}

// Backend takes locks keyed by a 64-bit integer.
type Backend interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context, key int64, mode Mode) (Lease, error)
	// TryAcquire returns a nil lease and false when the lock is held elsewhere.
	TryAcquire(ctx context.Context, key int64, mode Mode) (Lease, bool, error)
}

// Key hashes a lock name to the 64-bit key backends lock on.
func Key(name string) int64 {
	return int64(xxhash.Sum64String(name))
}

type options struct {
	key  *int64
	mode Mode
}

// Option adjusts a single lock call.
type Option func(*options)

// WithKey locks on key instead of the hash of the name.
func WithKey(key int64) Option {
	return func(o *options) { o.key = &key }
}

// WithMode selects the lock mode. The default is Exclusive.
func WithMode(mode Mode) Option {
	return func(o *options) { o.mode = mode }
}

// Locker runs functions while holding a named lock.
type Locker struct {
	backend Backend
}

func NewLocker(backend Backend) *Locker {
	return &Locker{backend: backend}
}

func resolve(name string, opts []Option) (int64, Mode) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.key != nil {
		return *o.key, o.mode
	}
	return Key(name), o.mode
}

// WithLock waits for the lock and runs fn while holding it.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...Option) error {
	key, mode := resolve(name, opts)
	lease, err := l.backend.Acquire(ctx, key, mode)
	if err != nil {
		return fmt.Errorf("failed to acquire %s lock %q: %w", mode, name, err)
	}
	return l.run(ctx, name, lease, fn)
}

// TryWithLock runs fn only if the lock is free right now. acquired reports whether fn ran.
func (l *Locker) TryWithLock(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...Option) (acquired bool, err error) {
	key, mode := resolve(name, opts)
	lease, ok, err := l.backend.TryAcquire(ctx, key, mode)
	if err != nil {
		return false, fmt.Errorf("failed to try %s lock %q: %w", mode, name, err)
	}
	if !ok {
		return false, nil
	}
	return true, l.run(ctx, name, lease, fn)
}

func (l *Locker) run(ctx context.Context, name string, lease Lease, fn func(ctx context.Context) error) (err error) {
	defer func() {
		// release even when ctx was canceled while fn ran
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil {
			logger(ctx).Error("Failed to release advisory lock", slog.String("lock", name), slog.String("error", relErr.Error()))
			if err == nil {
				err = fmt.Errorf("failed to release lock %q: %w", name, relErr)
			}
		}
	}()
	return fn(ctx)
}

func logger(ctx context.Context) *slog.Logger {
	if l := middleware.GetLoggerFromCtx(ctx); l != nil {
		return l
	}
	return slog.Default()
}
