package service

import (
	"context"
	"time"

	apprepository "github.com/sifan077/PowerInvite/internal/app/repository"
	"go.uber.org/zap"
)

const defaultExpiryInterval = 30 * time.Second

// ExpiryChecker periodically flags links whose expiry date has passed.
type ExpiryChecker struct {
	logger   *zap.Logger
	repo     apprepository.LinkRepository
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
}

// NewExpiryChecker creates a new expiry checker. A non-positive interval means every 30 seconds.
func NewExpiryChecker(logger *zap.Logger, repo apprepository.LinkRepository, interval time.Duration) *ExpiryChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultExpiryInterval
	}
	return &ExpiryChecker{
		logger:   logger,
		repo:     repo,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic check.
func (c *ExpiryChecker) Start() {
	go c.run()
}

// Stop stops the periodic check.
func (c *ExpiryChecker) Stop() {
	close(c.stopChan)
}

func (c *ExpiryChecker) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.markExpired(context.Background())
		case <-c.stopChan:
			c.logger.Info("expiry checker stopped")
			return
		}
	}
}

func (c *ExpiryChecker) markExpired(ctx context.Context) int64 {
	now := c.now()
	affected, err := c.repo.MarkExpired(ctx, now)
	if err != nil {
		c.logger.Error("failed to mark expired links", zap.Error(err))
		return 0
	}

	if affected > 0 {
		c.logger.Info("marked links as expired",
			zap.Int64("count", affected),
			zap.Time("expired_before", now),
		)
	}
	return affected
}
