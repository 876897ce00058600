package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerInvite/internal/app/model"
)

// LinkEventPublisher publishes link events to NATS JetStream
type LinkEventPublisher struct {
	js nats.JetStreamContext
}

// NewLinkEventPublisher creates a new link event publisher
func NewLinkEventPublisher(js nats.JetStreamContext) *LinkEventPublisher {
	return &LinkEventPublisher{js: js}
}

// Publish publishes a link event to the stream. The event id doubles as the JetStream message id.
func (p *LinkEventPublisher) Publish(ctx context.Context, event model.LinkEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.LinkStreamSubject, data, nats.Context(ctx), nats.MsgId(event.ID))
	return err
}
