package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository aggregates the usage_events ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new usage Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountSince counts the user's events of the given types created at or after since.
func (r *Repository) CountSince(ctx context.Context, userID uuid.UUID, types []RequestType, since time.Time) (int64, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM usage_events
		 WHERE user_id = $1 AND request_type = ANY($2) AND created_at >= $3`,
		userID, names, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting usage events: %w", err)
	}
	return n, nil
}

// TotalsSince sums tokens and cost across every request type.
func (r *Repository) TotalsSince(ctx context.Context, userID uuid.UUID, since time.Time) (tokens, costCents int64, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0)::BIGINT, COALESCE(SUM(total_cost_cents), 0)::BIGINT
		 FROM usage_events
		 WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&tokens, &costCents)
	if err != nil {
		return 0, 0, fmt.Errorf("summing usage events: %w", err)
	}
	return tokens, costCents, nil
}

// Record appends a usage event. Called by request handlers after a metered
// call completes; access checks never write.
func (r *Repository) Record(ctx context.Context, e *Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.TotalTokens < 0 || e.TotalCostCents < 0 {
		return fmt.Errorf("recording usage event: negative totals")
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO usage_events (id, user_id, request_type, total_tokens, total_cost_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, string(e.RequestType), e.TotalTokens, e.TotalCostCents, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("recording usage event: %w", err)
	}
	return nil
}
