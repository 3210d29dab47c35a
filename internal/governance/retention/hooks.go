package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aiox-platform/governor/internal/metrics"
)

// PostCommitHook runs after a conversation deletion has committed. Hook
// errors are logged and never change the outcome of the run.
type PostCommitHook func(ctx context.Context, d Deletion) error

// Notifier pushes an event onto a per-user channel.
type Notifier interface {
	Notify(ctx context.Context, channel, event string, payload any) error
}

type autoDeletePayload struct {
	ConversationID string `json:"conversationId"`
	Reason         string `json:"reason"`
}

// NotifyMembers tells every member snapshotted before the delete that the
// conversation is gone. A failure for one member does not skip the rest.
func NotifyMembers(n Notifier) PostCommitHook {
	return func(ctx context.Context, d Deletion) error {
		payload := autoDeletePayload{ConversationID: d.ConversationID.String(), Reason: deleteReason}

		var errs []error
		for _, member := range d.Members {
			if err := n.Notify(ctx, member.String(), EventAutoDelete, payload); err != nil {
				errs = append(errs, fmt.Errorf("notifying %s: %w", member, err))
			}
		}
		return errors.Join(errs...)
	}
}

// CountDeletions feeds the deleted-conversations counter.
func CountDeletions() PostCommitHook {
	return func(_ context.Context, _ Deletion) error {
		metrics.ConversationsDeletedTotal.Inc()
		return nil
	}
}

func runHooks(ctx context.Context, hooks []PostCommitHook, d Deletion) {
	for _, hook := range hooks {
		runHook(ctx, hook, d)
	}
}

func runHook(ctx context.Context, hook PostCommitHook, d Deletion) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RetentionNotifyFailuresTotal.Inc()
			slog.Error("retention: post-commit hook panicked",
				"conversation_id", d.ConversationID, "panic", rec)
		}
	}()

	if err := hook(ctx, d); err != nil {
		metrics.RetentionNotifyFailuresTotal.Inc()
		slog.Warn("retention: post-commit hook failed",
			"conversation_id", d.ConversationID, "user_id", d.UserID, "error", err)
	}
}
