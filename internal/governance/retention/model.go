// Package retention deletes conversations that have been idle longer than a
// user's auto-delete policy allows.
package retention

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	// EventAutoDelete is pushed to every member of a removed conversation.
	EventAutoDelete = "conversation:auto-delete"

	// NotEnabledMessage is the only error on a run for a user without auto-delete.
	NotEnabledMessage = "Auto-delete is not enabled for this account."

	deleteReason = "auto-delete"
)

// Candidate is a conversation eligible for deletion. It is computed per
// query and never stored.
type Candidate struct {
	ID                   uuid.UUID   `json:"id"`
	Name                 string      `json:"name"`
	IsAI                 bool        `json:"is_ai"`
	LastMessageAt        time.Time   `json:"last_message_at"`
	MessageCount         int64       `json:"message_count"`
	IsArchivedByUser     bool        `json:"is_archived_by_user"`
	Tags                 []uuid.UUID `json:"tags"`
	DaysSinceLastMessage int         `json:"days_since_last_message"`
}

// Result summarizes one user's run. Per-conversation failures are reported
// in Errors and never abort the run.
type Result struct {
	DeletedCount           int         `json:"deleted_count"`
	DeletedConversationIDs []uuid.UUID `json:"deleted_conversation_ids"`
	Errors                 []string    `json:"errors"`
}

// NotEnabled reports whether the run was skipped because the policy is off.
func (r Result) NotEnabled() bool {
	return r.DeletedCount == 0 && slices.Contains(r.Errors, NotEnabledMessage)
}

// BatchResult summarizes a run over every opted-in user.
type BatchResult struct {
	ProcessedUsers int      `json:"processed_users"`
	TotalDeleted   int      `json:"total_deleted"`
	Errors         []string `json:"errors"`
}

// Deletion describes a committed conversation removal.
type Deletion struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Members        []uuid.UUID
}

// daysSince counts started days, so anything idle past the cutoff reports
// strictly more days than the policy allows.
func daysSince(now, t time.Time) int {
	const day = 24 * time.Hour
	d := now.Sub(t)
	if d <= 0 {
		return 0
	}
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}
