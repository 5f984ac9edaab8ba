package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"order-display/models"
)

func ev(name string, n int) models.Event {
	return models.Event{Name: name, Payload: n}
}

func TestHub_SubscribeSendsInitialFirst(t *testing.T) {
	h := NewHub(HubConfig{}, zaptest.NewLogger(t))
	defer h.Close()

	r := newRecorder("display-1")
	require.NoError(t, h.Subscribe(r, ev("hello", 0), ev("snapshot", 0)))
	h.Publish(ev("later", 1))

	got := r.waitFor(t, 3)
	assert.Equal(t, []string{"hello", "snapshot", "later"}, names(got))
	assert.Equal(t, 1, h.Len())
}

func TestHub_SubscribeRequiresID(t *testing.T) {
	h := NewHub(HubConfig{}, nil)
	err := h.Subscribe(newRecorder(""))
	require.Error(t, err)
	assert.Equal(t, ErrMsgSubscriberIDEmpty, err.Error())
}

func TestHub_PerSubscriberOrder(t *testing.T) {
	h := NewHub(HubConfig{BufferSize: 512}, zaptest.NewLogger(t))
	defer h.Close()

	subs := []*recorder{newRecorder("a"), newRecorder("b"), newRecorder("c")}
	for _, s := range subs {
		require.NoError(t, h.Subscribe(s))
	}
	const n = 200
	for i := 0; i < n; i++ {
		h.Publish(ev("tick", i))
	}
	for _, s := range subs {
		got := s.waitFor(t, n)
		for i, e := range got {
			assert.Equal(t, i, e.Payload, "subscriber %s saw events out of order", s.id)
		}
	}
}

func TestHub_ConcurrentPublishersKeepOneOrderPerSubscriber(t *testing.T) {
	h := NewHub(HubConfig{BufferSize: 1024}, nil)
	defer h.Close()
	a, b := newRecorder("a"), newRecorder("b")
	require.NoError(t, h.Subscribe(a))
	require.NoError(t, h.Subscribe(b))

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Publish(models.Event{Name: "tick", Payload: fmt.Sprintf("%d-%d", p, i)})
			}
		}(p)
	}
	wg.Wait()

	ga, gb := a.waitFor(t, 200), b.waitFor(t, 200)
	assert.Equal(t, ga, gb, "every subscriber observes the same publish order")
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h := NewHub(HubConfig{}, nil)
	r := newRecorder("a")
	require.NoError(t, h.Subscribe(r))
	h.Unsubscribe("a")
	h.Unsubscribe("a")
	h.Unsubscribe("never-registered")
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, h.Publish(ev("x", 1)))
	assert.False(t, r.closed.Load(), "unsubscribe leaves the connection to its owner")
}

func TestHub_FailingSubscriberIsolated(t *testing.T) {
	h := NewHub(HubConfig{}, zaptest.NewLogger(t))
	defer h.Close()

	good, bad, crashy := newRecorder("good"), newRecorder("bad"), newRecorder("crashy")
	bad.fail.Store(true)
	crashy.panics.Store(true)
	for _, s := range []*recorder{good, bad, crashy} {
		require.NoError(t, h.Subscribe(s))
	}

	h.Publish(ev("one", 1))
	h.Publish(ev("two", 2))

	assert.Equal(t, []string{"one", "two"}, names(good.waitFor(t, 2)))
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return bad.closed.Load() && crashy.closed.Load() }, time.Second, 5*time.Millisecond)

	st := h.Stats()
	assert.Equal(t, uint64(2), st.Failed)
	assert.Equal(t, uint64(2), st.Dropped)
	assert.Equal(t, uint64(2), st.Published)
}

func TestHub_StalledSubscriberDroppedHealthyKept(t *testing.T) {
	h := NewHub(HubConfig{BufferSize: 2, SendTimeout: 100 * time.Millisecond}, zaptest.NewLogger(t))
	defer h.Close()

	slow := newRecorder("slow")
	slow.block = make(chan struct{})
	defer close(slow.block)
	fast := newRecorder("fast")
	require.NoError(t, h.Subscribe(slow))
	require.NoError(t, h.Subscribe(fast))

	start := time.Now()
	for i := 0; i < 10; i++ {
		h.Publish(ev("tick", i))
	}
	assert.Less(t, time.Since(start), 2*time.Second, "a stalled subscriber holds the publisher for one timeout at most")

	got := fast.waitFor(t, 10)
	for i, e := range got {
		assert.Equal(t, i, e.Payload)
	}
	require.Eventually(t, slow.closed.Load, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, uint64(1), h.Stats().Dropped)
	assert.False(t, fast.closed.Load())
}

func TestHub_BurstLargerThanBufferKeepsSubscriber(t *testing.T) {
	h := NewHub(HubConfig{}, zaptest.NewLogger(t))
	defer h.Close()
	r := newRecorder("display")
	require.NoError(t, h.Subscribe(r, ev("hello", -2), ev("snapshot", -1)))

	const n = 10 * DefaultSubscriberBuffer
	for i := 0; i < n; i++ {
		h.Publish(ev("tick", i))
	}

	got := r.waitFor(t, n+2)
	assert.Equal(t, []string{"hello", "snapshot"}, names(got[:2]))
	for i, e := range got[2:] {
		assert.Equal(t, i, e.Payload)
	}
	st := h.Stats()
	assert.Equal(t, 1, st.Subscribers)
	assert.Zero(t, st.Dropped)
}

// stalledSink blocks every delivery until release is closed, whatever the deadline.
type stalledSink struct {
	*recorder
	release chan struct{}
}

func (s *stalledSink) Receive(ctx context.Context, ev models.Event) error {
	<-s.release
	return s.recorder.Receive(ctx, ev)
}

func TestHub_SinkSkipsEventsInsteadOfBeingDropped(t *testing.T) {
	h := NewHub(HubConfig{BufferSize: 1, SendTimeout: 20 * time.Millisecond}, zaptest.NewLogger(t))
	defer h.Close()
	sink := &stalledSink{recorder: newRecorder("kafka:orders"), release: make(chan struct{})}
	require.NoError(t, h.SubscribeSink(sink))

	start := time.Now()
	for i := 0; i < 10; i++ {
		h.Publish(ev("tick", i))
	}
	assert.Less(t, time.Since(start), time.Second, "a lagging sink is not waited on for every publish")
	assert.Equal(t, 1, h.Len())
	assert.Greater(t, h.Stats().Skipped, uint64(0))

	close(sink.release)
	require.Eventually(t, func() bool {
		h.Publish(ev("after", 0))
		evs := sink.Events()
		return len(evs) > 0 && evs[len(evs)-1].Name == "after"
	}, 2*time.Second, 20*time.Millisecond)

	sink.fail.Store(true)
	before := h.Stats().Failed
	h.Publish(ev("lost", 0))
	require.Eventually(t, func() bool { return h.Stats().Failed > before }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.Len(), "failed deliveries do not unregister a sink")
	assert.Zero(t, h.Stats().Dropped)
	assert.False(t, sink.closed.Load())
}

func TestHub_CloseDeliversQueuedEventsFirst(t *testing.T) {
	h := NewHub(HubConfig{}, nil)
	r := newRecorder("display")
	require.NoError(t, h.Subscribe(r, ev("hello", 0), ev("snapshot", 0)))
	h.Publish(ev("one", 1))
	h.Publish(ev("two", 2))
	h.Close()

	assert.Equal(t, []string{"hello", "snapshot", "one", "two"}, names(r.Events()))
	assert.True(t, r.closed.Load(), "closed after its last delivery")
}

func TestHub_DeliveryTimeoutDrops(t *testing.T) {
	h := NewHub(HubConfig{SendTimeout: 20 * time.Millisecond}, nil)
	defer h.Close()
	stuck := newRecorder("stuck")
	stuck.block = make(chan struct{})
	defer close(stuck.block)
	require.NoError(t, h.Subscribe(stuck))

	h.Publish(ev("tick", 1))
	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), h.Stats().Failed)
}

func TestHub_ResubscribeReplaces(t *testing.T) {
	h := NewHub(HubConfig{}, nil)
	defer h.Close()
	first, second := newRecorder("same"), newRecorder("same")
	require.NoError(t, h.Subscribe(first))
	require.NoError(t, h.Subscribe(second))
	assert.Equal(t, 1, h.Len())

	h.Publish(ev("tick", 1))
	second.waitFor(t, 1)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, first.Events())
}

func TestHub_Close(t *testing.T) {
	h := NewHub(HubConfig{}, nil)
	a, b := newRecorder("a"), newRecorder("b")
	require.NoError(t, h.Subscribe(a))
	require.NoError(t, h.Subscribe(b))
	h.Close()
	assert.Equal(t, 0, h.Len())
	require.Eventually(t, func() bool { return a.closed.Load() && b.closed.Load() }, time.Second, 5*time.Millisecond)
}
