package retention

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/governor/internal/metrics"
	"github.com/aiox-platform/governor/internal/users"
)

// PolicyStore reads retention policies and records runs.
type PolicyStore interface {
	GetPolicy(ctx context.Context, id uuid.UUID) (*users.Policy, error)
	StampLastAutoDeleteRun(ctx context.Context, id uuid.UUID, at time.Time) error
	ListAutoDeleteEnabled(ctx context.Context) ([]uuid.UUID, error)
}

// ConversationStore finds and removes conversations.
type ConversationStore interface {
	FindIdle(ctx context.Context, userID uuid.UUID, policy *users.Policy, cutoff time.Time) ([]Candidate, error)
	ListMembers(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	DeleteConversation(ctx context.Context, conversationID uuid.UUID) error
}

// Service applies auto-delete policies. It keeps no per-user state, so
// overlapping runs for the same user must be prevented by the caller.
type Service struct {
	policies      PolicyStore
	conversations ConversationStore
	hooks         []PostCommitHook
	workers       int
	now           func() time.Time
}

// NewService creates a retention Service. workers bounds how many users a
// batch run processes at once; 1 processes them sequentially.
func NewService(policies PolicyStore, conversations ConversationStore, workers int, hooks ...PostCommitHook) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		policies:      policies,
		conversations: conversations,
		hooks:         hooks,
		workers:       workers,
		now:           time.Now,
	}
}

// GetConversationsToDelete lists the conversations the policy makes eligible,
// oldest first. A nil policy is loaded from the store. A disabled policy
// returns an empty list without querying conversations.
func (s *Service) GetConversationsToDelete(ctx context.Context, userID uuid.UUID, policy *users.Policy) ([]Candidate, error) {
	if policy == nil {
		p, err := s.policies.GetPolicy(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("loading retention policy: %w", err)
		}
		policy = p
	}
	if !policy.AutoDeleteEnabled {
		return []Candidate{}, nil
	}

	now := s.now()
	cutoff := now.Add(-time.Duration(policy.AutoDeleteAfterDays) * 24 * time.Hour)

	found, err := s.conversations.FindIdle(ctx, userID, policy, cutoff)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(found))
	for _, c := range found {
		c.DaysSinceLastMessage = daysSince(now, c.LastMessageAt)
		if !eligible(policy, cutoff, c) {
			slog.Warn("retention: store returned ineligible conversation, skipping",
				"user_id", userID, "conversation_id", c.ID)
			continue
		}
		candidates = append(candidates, c)
	}
	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return a.LastMessageAt.Compare(b.LastMessageAt)
	})
	return candidates, nil
}

func eligible(p *users.Policy, cutoff time.Time, c Candidate) bool {
	if !c.LastMessageAt.Before(cutoff) || c.DaysSinceLastMessage <= p.AutoDeleteAfterDays {
		return false
	}
	if c.IsArchivedByUser && !p.AutoDeleteArchived {
		return false
	}
	for _, tag := range c.Tags {
		if p.Excludes(tag) {
			return false
		}
	}
	return true
}

// sweep accumulates the outcome of deleting candidates one at a time.
type sweep struct {
	deleted []uuid.UUID
	errors  []string
}

func (sw *sweep) succeeded(id uuid.UUID) {
	sw.deleted = append(sw.deleted, id)
}

func (sw *sweep) failed(id uuid.UUID, err error) {
	sw.errors = append(sw.errors, fmt.Sprintf("Failed to delete conversation %s: %v", id, err))
}

func (sw *sweep) result() Result {
	deleted := sw.deleted
	if deleted == nil {
		deleted = []uuid.UUID{}
	}
	errs := sw.errors
	if errs == nil {
		errs = []string{}
	}
	return Result{DeletedCount: len(deleted), DeletedConversationIDs: deleted, Errors: errs}
}

// DeleteOldConversations deletes every eligible conversation for the user.
// The returned error is non-nil only when the policy or the candidate list
// cannot be read; per-conversation failures land in Result.Errors. The last
// run is stamped whenever the policy is enabled, even if nothing was eligible.
func (s *Service) DeleteOldConversations(ctx context.Context, userID uuid.UUID) (Result, error) {
	policy, err := s.policies.GetPolicy(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("loading retention policy: %w", err)
	}
	if !policy.AutoDeleteEnabled {
		return Result{DeletedConversationIDs: []uuid.UUID{}, Errors: []string{NotEnabledMessage}}, nil
	}

	candidates, err := s.GetConversationsToDelete(ctx, userID, policy)
	if err != nil {
		return Result{}, fmt.Errorf("finding conversations to delete: %w", err)
	}

	var sw sweep
	for _, c := range candidates {
		s.deleteOne(ctx, userID, c, &sw)
	}

	if err := s.policies.StampLastAutoDeleteRun(ctx, userID, s.now()); err != nil {
		slog.Warn("retention: stamping last run failed", "user_id", userID, "error", err)
		sw.errors = append(sw.errors, fmt.Sprintf("Failed to record last auto-delete run: %v", err))
	}

	res := sw.result()
	if res.DeletedCount > 0 || len(res.Errors) > 0 {
		slog.Info("retention: run finished", "user_id", userID,
			"deleted", res.DeletedCount, "errors", len(res.Errors))
	}
	return res, nil
}

func (s *Service) deleteOne(ctx context.Context, userID uuid.UUID, c Candidate, sw *sweep) {
	members, err := s.conversations.ListMembers(ctx, c.ID)
	if err != nil {
		metrics.RetentionItemFailuresTotal.Inc()
		slog.Warn("retention: listing conversation members failed",
			"user_id", userID, "conversation_id", c.ID, "error", err)
		sw.failed(c.ID, err)
		return
	}

	if err := s.conversations.DeleteConversation(ctx, c.ID); err != nil {
		metrics.RetentionItemFailuresTotal.Inc()
		slog.Warn("retention: deleting conversation failed",
			"user_id", userID, "conversation_id", c.ID, "error", err)
		sw.failed(c.ID, err)
		return
	}
	sw.succeeded(c.ID)

	runHooks(ctx, s.hooks, Deletion{ConversationID: c.ID, UserID: userID, Members: members})
}

// RunAutoDeleteForAllUsers runs DeleteOldConversations for every opted-in
// user. A failure or panic for one user is recorded and the rest still run.
// Cancelling ctx stops users that have not started yet.
func (s *Service) RunAutoDeleteForAllUsers(ctx context.Context) (BatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.RetentionSweepDuration.Observe(time.Since(start).Seconds())
	}()

	userIDs, err := s.policies.ListAutoDeleteEnabled(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("listing opted-in users: %w", err)
	}

	var (
		mu    sync.Mutex
		batch = BatchResult{Errors: []string{}}
	)

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := s.runUser(ctx, userID)

			mu.Lock()
			defer mu.Unlock()
			batch.ProcessedUsers++
			if err != nil {
				batch.Errors = append(batch.Errors, fmt.Sprintf("user %s: %v", userID, err))
				return nil
			}
			batch.TotalDeleted += res.DeletedCount
			for _, e := range res.Errors {
				batch.Errors = append(batch.Errors, fmt.Sprintf("user %s: %s", userID, e))
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("retention: sweep finished",
		"users", batch.ProcessedUsers, "deleted", batch.TotalDeleted, "errors", len(batch.Errors),
		"duration", time.Since(start))

	if err := ctx.Err(); err != nil {
		return batch, fmt.Errorf("sweep interrupted: %w", err)
	}
	return batch, nil
}

func (s *Service) runUser(ctx context.Context, userID uuid.UUID) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("retention: user run panicked", "user_id", userID, "panic", rec)
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return s.DeleteOldConversations(ctx, userID)
}
