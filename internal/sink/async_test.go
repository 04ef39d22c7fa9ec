package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/quote-stream/pkg/logger"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	block  chan struct{}
	closed bool
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Publish(ctx context.Context, e Event) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestAsync_PublishesInOrderAndDrainsOnStop(t *testing.T) {
	pub := &fakePublisher{}
	a := NewAsync(pub, 16, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for _, m := range []string{"a", "b", "c"} {
		a.Emit(Event{Message: m})
	}
	require.Eventually(t, func() bool { return pub.count() == 3 }, time.Second, 5*time.Millisecond)

	a.Emit(Event{Message: "d"})
	cancel()
	require.NoError(t, <-done)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.True(t, pub.closed)
	assert.Equal(t, "a", pub.events[0].Message)
	assert.Equal(t, "c", pub.events[2].Message)
	assert.Len(t, pub.events, 4)
}

func TestAsync_EmitDropsWhenFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	a := NewAsync(pub, 1, logger.NewNop())

	start := time.Now()
	for i := 0; i < 50; i++ {
		a.Emit(Event{Message: "x"})
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Len(t, a.queue, 1)
	close(pub.block)
}

func TestAsync_PublishErrorsDoNotStopWorker(t *testing.T) {
	pub := &fakePublisher{fail: true}
	a := NewAsync(pub, 4, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	a.Emit(Event{Message: "lost"})
	require.Eventually(t, func() bool { return len(a.queue) == 0 }, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	pub.fail = false
	pub.mu.Unlock()
	a.Emit(Event{Message: "kept"})
	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		n := len(pub.events)
		return n > 0 && pub.events[n-1].Message == "kept"
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
