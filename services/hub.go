package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"order-display/models"
)

const (
	DefaultSubscriberBuffer = 64
	DefaultSendTimeout      = 2 * time.Second

	// closeWait bounds how long Close waits for queues to drain.
	closeWait = 5 * time.Second
)

// Subscriber is one connected display or downstream sink.
// Payloads are shared between subscribers and must be treated as read-only.
type Subscriber interface {
	ID() string
	Receive(ctx context.Context, ev models.Event) error
}

type HubConfig struct {
	BufferSize int
	// SendTimeout bounds one delivery and how long Publish waits for room
	// in a full queue.
	SendTimeout time.Duration
}

type HubStats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Failed      uint64 `json:"failed"`
	Dropped     uint64 `json:"dropped"`
	Skipped     uint64 `json:"skipped"`
}

// Hub fans events out to registered subscribers. Each subscriber has its own
// bounded queue drained by one goroutine, so it sees publishes in issue order.
// A stalled display holds the publisher for at most one SendTimeout and is
// then dropped; its peers are unaffected.
type Hub struct {
	cfg HubConfig
	log *zap.Logger

	// pubMu orders publishes and registrations against each other.
	pubMu sync.Mutex

	mu   sync.RWMutex
	subs map[string]*subscription
	wg   sync.WaitGroup

	published atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	skipped   atomic.Uint64
}

type subscription struct {
	sub Subscriber
	// sink subscribers are never dropped: overflow and delivery errors skip the event.
	sink  bool
	queue chan models.Event
	done  chan struct{}
	once  sync.Once
	// closeSub is written once, before done is closed.
	closeSub bool
	// lagging is set when a sink overflowed and cleared once its queue drains.
	lagging atomic.Bool
}

// stop reports whether this call was the one that stopped s. When closeSub
// is set, s is closed after its last delivery.
func (s *subscription) stop(closeSub bool) bool {
	first := false
	s.once.Do(func() {
		s.closeSub = closeSub
		close(s.done)
		first = true
	})
	return first
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func NewHub(cfg HubConfig, log *zap.Logger) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultSubscriberBuffer
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		cfg:  cfg,
		log:  log.Named("hub"),
		subs: make(map[string]*subscription),
	}
}

// Subscribe registers sub. The initial events are queued before any publish
// that follows, which is how late joiners catch up. A subscriber registered
// under the same id is replaced.
func (h *Hub) Subscribe(sub Subscriber, initial ...models.Event) error {
	return h.add(sub, false, initial)
}

// SubscribeSink registers an in-process sink. A sink that falls behind or
// fails a delivery loses that event but stays registered.
func (h *Hub) SubscribeSink(sub Subscriber) error {
	return h.add(sub, true, nil)
}

func (h *Hub) add(sub Subscriber, sink bool, initial []models.Event) error {
	id := sub.ID()
	if id == "" {
		return NewValidationError(ErrMsgSubscriberIDEmpty)
	}
	s := &subscription{
		sub:   sub,
		sink:  sink,
		queue: make(chan models.Event, h.cfg.BufferSize+len(initial)),
		done:  make(chan struct{}),
	}
	for _, ev := range initial {
		s.queue <- ev
	}

	h.pubMu.Lock()
	h.mu.Lock()
	old := h.subs[id]
	h.subs[id] = s
	n := len(h.subs)
	h.wg.Add(1)
	h.mu.Unlock()
	h.pubMu.Unlock()

	if old != nil {
		old.stop(false)
	}
	go h.run(s)
	h.log.Info("subscriber registered",
		zap.String("subscriber", id),
		zap.Bool("sink", sink),
		zap.Int("subscribers", n))
	return nil
}

// Unsubscribe removes the subscriber with id. Unknown ids are ignored.
// Events already queued are still delivered.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if !ok {
		return
	}
	s.stop(false)
	h.log.Info("subscriber removed", zap.String("subscriber", id), zap.Int("subscribers", n))
}

// Publish queues ev for every registered subscriber and returns how many
// accepted it. A full queue is waited on for at most SendTimeout.
func (h *Hub) Publish(ev models.Event) int {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()
	h.published.Add(1)

	h.mu.RLock()
	targets := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	accepted := 0
	for _, s := range targets {
		if s.stopped() {
			continue
		}
		if h.enqueue(s, ev) {
			accepted++
			continue
		}
		if s.stopped() {
			continue
		}
		if s.sink {
			s.lagging.Store(true)
			h.skipped.Add(1)
			h.log.Warn("event skipped",
				zap.String("subscriber", s.sub.ID()),
				zap.String("event", ev.Name),
				zap.String("order_id", ev.OrderID()))
			continue
		}
		h.drop(s, "queue full")
	}
	h.log.Debug("event published",
		zap.String("event", ev.Name),
		zap.String("order_id", ev.OrderID()),
		zap.Int("subscribers", accepted))
	return accepted
}

// enqueue waits up to SendTimeout for room in s's queue. A lagging sink is
// not waited on.
func (h *Hub) enqueue(s *subscription, ev models.Event) bool {
	select {
	case s.queue <- ev:
		return true
	default:
	}
	if s.lagging.Load() {
		return false
	}
	t := time.NewTimer(h.cfg.SendTimeout)
	defer t.Stop()
	select {
	case s.queue <- ev:
		return true
	case <-s.done:
		return false
	case <-t.C:
		return false
	}
}

// run delivers s's queue in order. Once s is stopped it drains what is
// already queued before exiting.
func (h *Hub) run(s *subscription) {
	defer h.wg.Done()
	defer h.release(s)
	for {
		select {
		case ev := <-s.queue:
			if !h.handle(s, ev) {
				return
			}
			continue
		default:
		}
		select {
		case ev := <-s.queue:
			if !h.handle(s, ev) {
				return
			}
		case <-s.done:
			return
		}
	}
}

// handle delivers ev and reports whether s keeps running.
func (h *Hub) handle(s *subscription, ev models.Event) bool {
	err := h.deliver(s, ev)
	if len(s.queue) == 0 {
		s.lagging.Store(false)
	}
	if err == nil {
		h.delivered.Add(1)
		return true
	}
	h.failed.Add(1)
	h.log.Warn("delivery failed",
		zap.String("subscriber", s.sub.ID()),
		zap.String("event", ev.Name),
		zap.Error(err))
	if s.sink {
		return !s.stopped()
	}
	h.drop(s, "delivery failed")
	return false
}

func (h *Hub) deliver(s *subscription, ev models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SendTimeout)
	defer cancel()
	return s.sub.Receive(ctx, ev)
}

// release closes s after its last delivery when the hub owns the close.
func (h *Hub) release(s *subscription) {
	if !s.stopped() || !s.closeSub {
		return
	}
	c, ok := s.sub.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		h.log.Debug("close subscriber", zap.String("subscriber", s.sub.ID()), zap.Error(err))
	}
}

// drop unregisters s (if still current) and stops it; closers are closed
// once its goroutine exits.
func (h *Hub) drop(s *subscription, reason string) {
	id := s.sub.ID()
	h.mu.Lock()
	if cur, ok := h.subs[id]; ok && cur == s {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if !s.stop(true) {
		return
	}
	h.dropped.Add(1)
	h.log.Warn("subscriber dropped", zap.String("subscriber", id), zap.String("reason", reason))
}

// Close stops every subscriber, waits for queued events to be delivered
// and closes the subscribers that own a connection.
func (h *Hub) Close() {
	h.mu.Lock()
	all := make([]*subscription, 0, len(h.subs))
	for id, s := range h.subs {
		all = append(all, s)
		delete(h.subs, id)
	}
	h.mu.Unlock()
	for _, s := range all {
		s.stop(true)
	}

	drained := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(closeWait):
		h.log.Warn("hub closed before queues drained")
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		Subscribers: h.Len(),
		Published:   h.published.Load(),
		Delivered:   h.delivered.Load(),
		Failed:      h.failed.Load(),
		Dropped:     h.dropped.Load(),
		Skipped:     h.skipped.Load(),
	}
}
