package users

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// RetentionPeriods are the only accepted auto-delete windows, in days.
var RetentionPeriods = []int{7, 14, 30, 60, 90, 180, 365}

// ErrUserNotFound is returned when no user has the requested id.
var ErrUserNotFound = errors.New("user not found")

// Policy is the retention configuration stored on a user record.
type Policy struct {
	UserID                  uuid.UUID   `json:"user_id"`
	AutoDeleteEnabled       bool        `json:"auto_delete_enabled"`
	AutoDeleteAfterDays     int         `json:"auto_delete_after_days"`
	AutoDeleteArchived      bool        `json:"auto_delete_archived"`
	AutoDeleteExcludeTagIDs []uuid.UUID `json:"auto_delete_exclude_tag_ids"`
	LastAutoDeleteRun       *time.Time  `json:"last_auto_delete_run,omitempty"`
}

// Excludes reports whether tagID is on the exclusion list.
func (p *Policy) Excludes(tagID uuid.UUID) bool {
	return slices.Contains(p.AutoDeleteExcludeTagIDs, tagID)
}

type UpdatePolicyRequest struct {
	AutoDeleteEnabled       bool        `json:"auto_delete_enabled"`
	AutoDeleteAfterDays     int         `json:"auto_delete_after_days" validate:"oneof=7 14 30 60 90 180 365"`
	AutoDeleteArchived      bool        `json:"auto_delete_archived"`
	AutoDeleteExcludeTagIDs []uuid.UUID `json:"auto_delete_exclude_tag_ids" validate:"max=100"`
}
