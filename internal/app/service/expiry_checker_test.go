package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExpiryChecker_MarkExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var before time.Time
	repo := &mockLinkRepository{
		markExpiredFn: func(ctx context.Context, b time.Time) (int64, error) {
			before = b
			return 3, nil
		},
	}
	c := NewExpiryChecker(nil, repo, 0)
	c.now = func() time.Time { return now }

	if n := c.markExpired(context.Background()); n != 3 {
		t.Fatalf("expected 3 links marked, got %d", n)
	}
	if !before.Equal(now) {
		t.Fatalf("expected cutoff %v, got %v", now, before)
	}
	if c.interval != defaultExpiryInterval {
		t.Fatalf("expected default interval, got %v", c.interval)
	}
}

func TestExpiryChecker_RepositoryError(t *testing.T) {
	repo := &mockLinkRepository{
		markExpiredFn: func(ctx context.Context, b time.Time) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	if n := NewExpiryChecker(nil, repo, time.Minute).markExpired(context.Background()); n != 0 {
		t.Fatalf("expected 0 on error, got %d", n)
	}
}

func TestExpiryChecker_StartStop(t *testing.T) {
	ticks := make(chan struct{}, 8)
	repo := &mockLinkRepository{
		markExpiredFn: func(ctx context.Context, b time.Time) (int64, error) {
			select {
			case ticks <- struct{}{}:
			default:
			}
			return 0, nil
		},
	}
	c := NewExpiryChecker(nil, repo, 5*time.Millisecond)
	c.Start()
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("expected at least one check")
	}
	c.Stop()
}
