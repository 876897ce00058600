package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

type failingFetcher struct {
	calls atomic.Int32
}

func (f *failingFetcher) Fetch(int, ...nats.PullOpt) ([]*nats.Msg, error) {
	f.calls.Add(1)
	return nil, nats.ErrConnectionClosed
}

func runConsume(c *LinkEventConsumer, sub messageFetcher) (context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	c.done = make(chan struct{})
	go c.consume(ctx, sub)
	return cancel, c.done
}

func TestLinkEventConsumer_BacksOffAfterFetchError(t *testing.T) {
	c := NewLinkEventConsumer(nil, nil, nil)
	c.retryWait = 50 * time.Millisecond
	sub := &failingFetcher{}

	cancel, done := runConsume(c, sub)
	time.Sleep(180 * time.Millisecond)
	cancel()
	<-done

	calls := sub.calls.Load()
	if calls < 1 || calls > 5 {
		t.Fatalf("expected a handful of fetches with backoff, got %d", calls)
	}
}

func TestLinkEventConsumer_StopsDuringBackoff(t *testing.T) {
	c := NewLinkEventConsumer(nil, nil, nil)
	c.retryWait = time.Hour
	sub := &failingFetcher{}

	cancel, done := runConsume(c, sub)
	for sub.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop while waiting to retry")
	}
}
