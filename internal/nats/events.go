package nats

import (
	"encoding/json"
	"time"
)

// StreamNotifications holds per-user notification subjects.
const StreamNotifications = "GOVERNOR_NOTIFICATIONS"

// SubjectUserPrefix is followed by a channel name: governor.users.{channel}
const SubjectUserPrefix = "governor.users"

// Notification is the envelope published on a user's channel.
type Notification struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}
