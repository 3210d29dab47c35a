// Package billing reports a user's subscription tier.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tier is a subscription state.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// IsPro reports whether the tier is a paid one.
func (t Tier) IsPro() bool { return t == TierPro }

// ErrUserNotFound is returned when the account does not exist.
var ErrUserNotFound = errors.New("user not found")

// Repository resolves tiers from the subscriptions table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new billing Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SubscriptionTier returns TierPro when the user holds an active or trialing
// subscription whose period has not ended.
func (r *Repository) SubscriptionTier(ctx context.Context, userID uuid.UUID) (Tier, error) {
	var exists, pro bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1),
		        EXISTS(SELECT 1 FROM subscriptions
		               WHERE user_id = $1
		                 AND status IN ('active', 'trialing')
		                 AND (current_period_end IS NULL OR current_period_end > NOW()))`,
		userID,
	).Scan(&exists, &pro)
	if err != nil {
		return "", fmt.Errorf("querying subscription tier: %w", err)
	}
	if !exists {
		return "", ErrUserNotFound
	}
	if pro {
		return TierPro, nil
	}
	return TierFree, nil
}
