package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerInvite/internal/app/model"
	apprepository "github.com/sifan077/PowerInvite/internal/app/repository"
	"go.uber.org/zap"
)

const (
	eventBatchSize = 10
	eventFetchWait = 5 * time.Second
	eventRetryWait = time.Second
)

// messageFetcher is the part of a pull subscription the consumer uses.
type messageFetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// LinkEventConsumer consumes link events from NATS JetStream and stores them
type LinkEventConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.LinkEventRepository
	cancel context.CancelFunc
	done   chan struct{}
	// retryWait is the pause after a failed fetch.
	retryWait time.Duration
}

// NewLinkEventConsumer creates a new link event consumer
func NewLinkEventConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.LinkEventRepository) *LinkEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkEventConsumer{js: js, logger: logger, repo: repo, retryWait: eventRetryWait}
}

// EnsureStream creates the link stream and its durable consumer if they do not exist yet.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.LinkStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     model.LinkStreamName,
			Subjects: []string{model.LinkStreamSubject},
			MaxBytes: model.LinkStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.LinkStreamName, model.LinkConsumerName); err != nil {
		_, err = js.AddConsumer(model.LinkStreamName, &nats.ConsumerConfig{
			Durable:   model.LinkConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}
	return nil
}

// Start begins consuming link events
func (c *LinkEventConsumer) Start() error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	sub, err := c.js.PullSubscribe(model.LinkStreamSubject, model.LinkConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(ctx, sub)
	return nil
}

// Stop ends consumption after the batch in progress.
func (c *LinkEventConsumer) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

func (c *LinkEventConsumer) consume(ctx context.Context, sub messageFetcher) {
	defer close(c.done)
	for {
		msgs, err := sub.Fetch(eventBatchSize, nats.MaxWait(eventFetchWait))
		if ctx.Err() != nil {
			c.logger.Info("link event consumer stopped")
			return
		}
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
				c.logger.Info("link event consumer stopped")
				return
			case <-time.After(c.retryWait):
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

func (c *LinkEventConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.LinkEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error("failed to unmarshal link event", zap.Error(err))
		// A malformed event will never decode, redelivering it is pointless.
		_ = msg.Term()
		return
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		c.logger.Error("failed to store link event",
			zap.String("id", event.ID),
			zap.String("link_id", event.LinkID),
			zap.Error(err))
		_ = msg.Nak()
		return
	}

	c.logger.Debug("link event stored",
		zap.String("id", event.ID),
		zap.String("type", event.Type),
		zap.String("link_id", event.LinkID),
		zap.Time("timestamp", event.Timestamp),
	)
	_ = msg.Ack()
}
