package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nimburion/recordbench/pkg/observability/logger"
)

// ErrSharedClosed is returned by Acquire after the shared handle was closed.
var ErrSharedClosed = errors.New("shared mongodb handle is closed")

// DialFunc opens a new Adapter. Connect is the default.
type DialFunc func(ctx context.Context, cfg Config, log logger.Logger) (*Adapter, error)

// SharedOption customizes a Shared handle.
type SharedOption func(*Shared)

// WithDialer replaces the function used to open the adapter.
func WithDialer(dial DialFunc) SharedOption {
	return func(s *Shared) {
		if dial != nil {
			s.dial = dial
		}
	}
}

// Shared hands out one Adapter to many workers. The adapter is opened by the
// first Acquire and closed by the Release that drops the lease count to zero.
type Shared struct {
	cfg  Config
	log  logger.Logger
	dial DialFunc

	mu          sync.Mutex
	adapter     *Adapter
	refs        int
	connections int
	closed      bool
}

// NewShared creates a handle; nothing is dialed until the first Acquire.
func NewShared(cfg Config, log logger.Logger, opts ...SharedOption) *Shared {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Shared{
		cfg:  cfg,
		log:  log,
		dial: Connect,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Acquire returns a lease on the shared adapter, dialing it if needed.
// Check-and-dial runs under one lock, so concurrent first callers share a single adapter.
func (s *Shared) Acquire(ctx context.Context) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSharedClosed
	}
	if s.adapter == nil {
		adapter, err := s.dial(ctx, s.cfg, s.log)
		if err != nil {
			s.log.Error("could not initialize mongodb connection pool", "error", err)
			return nil, err
		}
		s.adapter = adapter
		s.connections++
	}
	s.refs++
	return &Lease{shared: s, adapter: s.adapter}, nil
}

// Use runs fn with a leased adapter and releases the lease on every exit path.
func (s *Shared) Use(ctx context.Context, fn func(*Adapter) error) (err error) {
	lease, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lease.Release(ctx); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()
	return fn(lease.Adapter())
}

func (s *Shared) release(adapter *Adapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The adapter was already torn down by Close or replaced after a full release.
	if s.adapter != adapter {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.refs = 0
	s.adapter = nil
	if err := adapter.Close(); err != nil {
		s.log.Error("could not close mongodb connection pool", "error", err)
		return err
	}
	return nil
}

// Close tears the adapter down regardless of outstanding leases. Later
// Acquire calls fail with ErrSharedClosed and outstanding leases release as no-ops.
func (s *Shared) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	adapter := s.adapter
	s.adapter = nil
	if s.refs > 0 {
		s.log.Warn("closing mongodb connection pool with outstanding leases", "leases", s.refs)
	}
	s.refs = 0
	if adapter == nil {
		return nil
	}
	if err := adapter.Close(); err != nil {
		return fmt.Errorf("close shared mongodb handle: %w", err)
	}
	return nil
}

// HealthCheck pings the server through a short-lived lease.
func (s *Shared) HealthCheck(ctx context.Context) error {
	return s.Use(ctx, func(a *Adapter) error {
		return a.HealthCheck(ctx)
	})
}

// Refs reports the number of live leases.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Connections reports how many adapters were dialed over the handle's life.
func (s *Shared) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Lease is one holder's claim on the shared adapter.
type Lease struct {
	shared  *Shared
	adapter *Adapter
	once    sync.Once
}

// Adapter returns the leased adapter.
func (l *Lease) Adapter() *Adapter {
	return l.adapter
}

// Release gives the lease back. Only the first call counts.
func (l *Lease) Release(_ context.Context) error {
	var err error
	l.once.Do(func() {
		err = l.shared.release(l.adapter)
	})
	return err
}
