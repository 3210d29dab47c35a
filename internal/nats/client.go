package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/aiox-platform/governor/internal/config"
)

// ErrDisconnected is reported by HealthCheck while the connection is down.
var ErrDisconnected = errors.New("nats disconnected")

// Client owns the broker connection used for member notifications.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewClient connects to NATS and declares the notification stream.
func NewClient(ctx context.Context, cfg config.NATSConfig) (*Client, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("governor"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected, notifications will fail until reconnect", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats: reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	stream := notificationStream(cfg.NotificationMaxAge)
	if _, err := js.CreateOrUpdateStream(ctx, stream); err != nil {
		nc.Close()
		return nil, fmt.Errorf("declaring stream %s: %w", stream.Name, err)
	}

	slog.Info("connected to NATS", "url", cfg.URL, "stream", stream.Name)
	return &Client{conn: nc, js: js}, nil
}

// notificationStream captures every per-user channel. Old notifications are
// discarded once they exceed maxAge.
func notificationStream(maxAge time.Duration) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamNotifications,
		Description: "Per-user notifications emitted after conversation deletions",
		Subjects:    []string{SubjectUserPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		Discard:     jetstream.DiscardOld,
		MaxAge:      maxAge,
	}
}

// Publisher returns a Publisher bound to this connection.
func (c *Client) Publisher() *Publisher {
	return NewPublisher(c.js)
}

// HealthCheck reports ErrDisconnected while the connection is not usable.
func (c *Client) HealthCheck(context.Context) error {
	if !c.conn.IsConnected() {
		return ErrDisconnected
	}
	return nil
}

// Close flushes pending publishes and closes the connection.
func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		slog.Warn("nats: draining connection", "error", err)
	}
}
