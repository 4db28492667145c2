package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockStore struct {
	calls   atomic.Int32
	removed int64
	err     error
}

func (m *mockStore) Sweep(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.removed, m.err
}

func TestSweeper_StartStop(t *testing.T) {
	store := &mockStore{}
	sw := NewSweeper(store, &SweeperConfig{Interval: 20 * time.Millisecond})

	ctx := context.Background()

	if err := sw.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !sw.IsRunning() {
		t.Error("Expected sweeper to be running")
	}
	if err := sw.Start(ctx); err != ErrAlreadyStarted {
		t.Fatalf("Start() error = %v, want %v", err, ErrAlreadyStarted)
	}

	time.Sleep(100 * time.Millisecond)

	if err := sw.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if sw.IsRunning() {
		t.Error("Expected sweeper to not be running")
	}
	if count := store.calls.Load(); count < 2 {
		t.Errorf("Sweep count = %d, want >= 2", count)
	}

	// Restart after stop works.
	if err := sw.Start(ctx); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if err := sw.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}

func TestSweeper_StopNotStarted(t *testing.T) {
	sw := NewSweeper(&mockStore{}, nil)
	if err := sw.Stop(); err != ErrNotStarted {
		t.Fatalf("Stop() error = %v, want %v", err, ErrNotStarted)
	}
}

func TestSweeper_Callbacks(t *testing.T) {
	var removed int64
	var gotErr error
	store := &mockStore{removed: 3}
	sw := NewSweeper(store, &SweeperConfig{
		OnSweep: func(n int64) { removed = n },
		OnError: func(err error) { gotErr = err },
	})

	sw.SweepOnce(context.Background())
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	store.err = errors.New("db down")
	sw.SweepOnce(context.Background())
	if gotErr == nil || gotErr.Error() != "db down" {
		t.Errorf("OnError got %v", gotErr)
	}
}
