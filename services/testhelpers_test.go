package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"order-display/models"
)

// recorder is a Subscriber that keeps every event it receives.
type recorder struct {
	id string

	mu     sync.Mutex
	events []models.Event

	// block, when set, stalls Receive until it is closed or the context ends.
	block  chan struct{}
	fail   atomic.Bool
	panics atomic.Bool
	closed atomic.Bool
}

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) ID() string { return r.id }

func (r *recorder) Receive(ctx context.Context, ev models.Event) error {
	if r.panics.Load() {
		panic("display exploded")
	}
	if r.fail.Load() {
		return errors.New("write: broken pipe")
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) waitFor(t *testing.T, n int) []models.Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.Events()) >= n }, 2*time.Second, 5*time.Millisecond,
		"subscriber %s expected %d events", r.id, n)
	return r.Events()
}

func names(evs []models.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Name
	}
	return out
}

// failingHistory rejects every archive.
type failingHistory struct {
	*MemoryHistory
}

func (failingHistory) Archive(context.Context, *models.Order) error {
	return errors.New("connection refused")
}
