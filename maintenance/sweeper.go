// Package maintenance provides background services for the console.
//
// This package includes:
//   - Sweeper: periodically removes expired browser sessions
package maintenance

import (
	"context"
	"sync/atomic"
	"time"
)

// Default sweeper configuration values
const (
	DefaultSweepInterval = 5 * time.Minute
)

// Sweepable is a store that can drop its expired entries.
type Sweepable interface {
	Sweep(ctx context.Context) (int64, error)
}

// SweeperConfig holds configuration for the sweeper service.
type SweeperConfig struct {
	// Interval is how often to sweep.
	// Default: 5 minutes
	Interval time.Duration

	// OnSweep is called after every sweep that removed something.
	OnSweep func(removed int64)

	// OnError is called when a sweep fails.
	// If nil, errors are silently ignored.
	OnError func(err error)
}

// DefaultSweeperConfig returns the default sweeper configuration.
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval: DefaultSweepInterval,
	}
}

// Sweeper removes expired sessions on an interval.
type Sweeper struct {
	store  Sweepable
	config *SweeperConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewSweeper creates a new sweeper service.
func NewSweeper(store Sweepable, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, config: config}
}

// Start begins sweeping.
// It returns immediately and runs the loop in a goroutine.
func (s *Sweeper) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.done = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)

	return nil
}

// Stop stops sweeping and waits for the loop to exit.
func (s *Sweeper) Stop() error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	s.cancel()
	<-s.done

	s.started.Store(false)
	return nil
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	n, err := s.store.Sweep(ctx)
	if err != nil {
		if s.config.OnError != nil {
			s.config.OnError(err)
		}
		return
	}
	if n > 0 && s.config.OnSweep != nil {
		s.config.OnSweep(n)
	}
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	return s.started.Load()
}
