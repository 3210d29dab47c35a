package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	GetPolicy(ctx context.Context, id uuid.UUID) (*Policy, error)
	UpdatePolicy(ctx context.Context, id uuid.UUID, req *UpdatePolicyRequest) (*Policy, error)
	StampLastAutoDeleteRun(ctx context.Context, id uuid.UUID, at time.Time) error
	ListAutoDeleteEnabled(ctx context.Context) ([]uuid.UUID, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

const policyColumns = `id, auto_delete_enabled, auto_delete_after_days, auto_delete_archived,
	auto_delete_exclude_tag_ids, last_auto_delete_run`

func scanPolicy(row pgx.Row) (*Policy, error) {
	p := &Policy{}
	err := row.Scan(&p.UserID, &p.AutoDeleteEnabled, &p.AutoDeleteAfterDays, &p.AutoDeleteArchived,
		&p.AutoDeleteExcludeTagIDs, &p.LastAutoDeleteRun)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepository) GetPolicy(ctx context.Context, id uuid.UUID) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM users WHERE id = $1`

	p, err := scanPolicy(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying retention policy: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) UpdatePolicy(ctx context.Context, id uuid.UUID, req *UpdatePolicyRequest) (*Policy, error) {
	query := `
		UPDATE users
		SET auto_delete_enabled = $2,
		    auto_delete_after_days = $3,
		    auto_delete_archived = $4,
		    auto_delete_exclude_tag_ids = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + policyColumns

	tags := req.AutoDeleteExcludeTagIDs
	if tags == nil {
		tags = []uuid.UUID{}
	}

	p, err := scanPolicy(r.pool.QueryRow(ctx, query,
		id, req.AutoDeleteEnabled, req.AutoDeleteAfterDays, req.AutoDeleteArchived, tags))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("updating retention policy: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) StampLastAutoDeleteRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET last_auto_delete_run = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("stamping last auto-delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *postgresRepository) ListAutoDeleteEnabled(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM users WHERE auto_delete_enabled ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing auto-delete users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scanning auto-delete users: %w", err)
	}
	return ids, nil
}
