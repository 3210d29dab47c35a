package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// streamPublisher is the slice of jetstream.JetStream the Publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher pushes notifications to per-user channels on JetStream.
type Publisher struct {
	js  streamPublisher
	now func() time.Time
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return newPublisher(js)
}

func newPublisher(js streamPublisher) *Publisher {
	return &Publisher{js: js, now: time.Now}
}

// Notify publishes event with payload on the given channel.
func (p *Publisher) Notify(ctx context.Context, channel, event string, payload any) error {
	if channel == "" || strings.ContainsAny(channel, ".*> ") {
		return fmt.Errorf("invalid notification channel %q", channel)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", event, err)
	}

	return p.publish(ctx, SubjectUserPrefix+"."+channel, Notification{
		Channel: channel,
		Event:   event,
		Payload: body,
		SentAt:  p.now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
