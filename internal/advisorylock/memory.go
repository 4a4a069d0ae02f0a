package advisorylock

import (
	"context"
	"sync"
)

// Memory is an in-process backend for tests and single-process runs.
type Memory struct {
	mu    sync.Mutex
	locks map[int64]*memLock
}

type memLock struct {
	exclusive bool
	shared    int
	changed   chan struct{}
}

func NewMemory() *Memory {
	return &Memory{locks: map[int64]*memLock{}}
}

// take grabs the lock if free. Otherwise it returns a channel closed on the next release.
func (m *Memory) take(key int64, mode Mode) (bool, <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &memLock{changed: make(chan struct{})}
		m.locks[key] = l
	}
	switch {
	case l.exclusive:
		return false, l.changed
	case mode == Shared:
		l.shared++
		return true, nil
	case l.shared > 0:
		return false, l.changed
	}
	l.exclusive = true
	return true, nil
}

func (m *Memory) release(key int64, mode Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[key]
	if mode == Shared {
		l.shared--
	} else {
		l.exclusive = false
	}
	close(l.changed)
	l.changed = make(chan struct{})
	if !l.exclusive && l.shared == 0 {
		delete(m.locks, key)
	}
}

func (m *Memory) Acquire(ctx context.Context, key int64, mode Mode) (Lease, error) {
	for {
		ok, wait := m.take(key, mode)
		if ok {
			return &memLease{m: m, key: key, mode: mode}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (m *Memory) TryAcquire(_ context.Context, key int64, mode Mode) (Lease, bool, error) {
	if ok, _ := m.take(key, mode); !ok {
		return nil, false, nil
	}
	return &memLease{m: m, key: key, mode: mode}, true, nil
}

type memLease struct {
	m    *Memory
	key  int64
	mode Mode
	once sync.Once
}

func (l *memLease) Release(context.Context) error {
	l.once.Do(func() { l.m.release(l.key, l.mode) })
	return nil
}
