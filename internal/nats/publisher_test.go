package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	subject string
	payload []byte
	err     error
}

func (f *fakeStream) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject = subject
	f.payload = payload
	return &jetstream.PubAck{Stream: StreamNotifications}, nil
}

func TestPublisher_NotifyWrapsEnvelope(t *testing.T) {
	fs := &fakeStream{}
	p := newPublisher(fs)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	err := p.Notify(context.Background(), "c3f1a8e2-0000-4000-8000-000000000001", "conversation:auto-delete",
		map[string]string{"conversationId": "abc", "reason": "retention"})
	require.NoError(t, err)

	assert.Equal(t, "governor.users.c3f1a8e2-0000-4000-8000-000000000001", fs.subject)

	var n Notification
	require.NoError(t, json.Unmarshal(fs.payload, &n))
	assert.Equal(t, "conversation:auto-delete", n.Event)
	assert.True(t, fixed.Equal(n.SentAt))

	var payload map[string]string
	require.NoError(t, json.Unmarshal(n.Payload, &payload))
	assert.Equal(t, "abc", payload["conversationId"])
}

func TestPublisher_RejectsWildcardChannel(t *testing.T) {
	fs := &fakeStream{}
	p := newPublisher(fs)

	for _, ch := range []string{"", "a.b", "*", ">", "a b"} {
		err := p.Notify(context.Background(), ch, "x", nil)
		assert.Error(t, err, "channel %q", ch)
	}
	assert.Empty(t, fs.subject)
}

func TestPublisher_PropagatesPublishError(t *testing.T) {
	p := newPublisher(&fakeStream{err: errors.New("no responders")})

	err := p.Notify(context.Background(), "user", "x", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "governor.users.user")
}
