package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aiox-platform/governor/internal/users"
)

// ErrConversationGone is returned when a conversation disappeared before it
// could be deleted.
var ErrConversationGone = errors.New("conversation no longer exists")

// Repository reads and deletes conversations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new retention Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindIdle returns the user's conversations whose last message is older than
// cutoff and which the policy does not exempt, oldest first.
func (r *Repository) FindIdle(ctx context.Context, userID uuid.UUID, policy *users.Policy, cutoff time.Time) ([]Candidate, error) {
	excluded := policy.AutoDeleteExcludeTagIDs
	if excluded == nil {
		excluded = []uuid.UUID{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id,
		       COALESCE(c.name, ''),
		       c.is_ai,
		       c.last_message_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
		       $1 = ANY(c.archived_by),
		       COALESCE((SELECT array_agg(t.tag_id) FROM conversation_tags t WHERE t.conversation_id = c.id), '{}'::uuid[])
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id AND cm.user_id = $1
		WHERE c.last_message_at < $2
		  AND ($3 OR NOT ($1 = ANY(c.archived_by)))
		  AND (cardinality($4::uuid[]) = 0 OR NOT EXISTS (
		        SELECT 1 FROM conversation_tags t
		        WHERE t.conversation_id = c.id AND t.tag_id = ANY($4::uuid[])))
		ORDER BY c.last_message_at ASC, c.id ASC`,
		userID, cutoff, policy.AutoDeleteArchived, excluded,
	)
	if err != nil {
		return nil, fmt.Errorf("querying idle conversations: %w", err)
	}

	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Candidate, error) {
		var c Candidate
		err := row.Scan(&c.ID, &c.Name, &c.IsAI, &c.LastMessageAt, &c.MessageCount, &c.IsArchivedByUser, &c.Tags)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning idle conversations: %w", err)
	}
	return candidates, nil
}

// ListMembers returns the ids of every member of a conversation.
func (r *Repository) ListMembers(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM conversation_members WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying conversation members: %w", err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scanning conversation members: %w", err)
	}
	return members, nil
}

// DeleteConversation removes a conversation's messages and then the
// conversation itself in one transaction.
func (r *Repository) DeleteConversation(ctx context.Context, conversationID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationGone
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing deletion: %w", err)
	}
	return nil
}
