package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aiox-platform/governor/internal/billing"
	"github.com/aiox-platform/governor/internal/config"
	"github.com/aiox-platform/governor/internal/database"
	"github.com/aiox-platform/governor/internal/governance/access"
	"github.com/aiox-platform/governor/internal/governance/retention"
	inats "github.com/aiox-platform/governor/internal/nats"
	"github.com/aiox-platform/governor/internal/users"
)

type dependencies struct {
	pool *pgxpool.Pool
}

func connect(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &dependencies{pool: pool}, nil
}

func (d *dependencies) Close() {
	d.pool.Close()
}

type services struct {
	users     *users.Service
	access    *access.Service
	retention *retention.Service
}

// buildServices wires the domain services. natsClient may be nil, in which
// case deletions are not announced to members.
func buildServices(pool *pgxpool.Pool, cfg *config.Config, natsClient *inats.Client) *services {
	userSvc := users.NewService(users.NewRepository(pool))

	tiers := billing.NewCachedResolver(billing.NewRepository(pool), cfg.Billing.CacheSize, cfg.Billing.CacheTTL)
	accessSvc := access.NewService(tiers, access.NewRepository(pool), cfg.Governance)

	hooks := []retention.PostCommitHook{retention.CountDeletions()}
	if natsClient != nil {
		hooks = append(hooks, retention.NotifyMembers(natsClient.Publisher()))
	}
	retentionSvc := retention.NewService(userSvc, retention.NewRepository(pool), cfg.Retention.Workers, hooks...)

	return &services{users: userSvc, access: accessSvc, retention: retentionSvc}
}
