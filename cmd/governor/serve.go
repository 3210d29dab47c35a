package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aiox-platform/governor/internal/api"
	"github.com/aiox-platform/governor/internal/auth"
	"github.com/aiox-platform/governor/internal/database"
	"github.com/aiox-platform/governor/internal/governance"
	"github.com/aiox-platform/governor/internal/governance/retention"
	"github.com/aiox-platform/governor/internal/middleware"
	inats "github.com/aiox-platform/governor/internal/nats"
	iredis "github.com/aiox-platform/governor/internal/redis"
	"github.com/aiox-platform/governor/internal/server"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the retention scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveMigrate {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			return err
		}
	}

	deps, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Notifications are best-effort, so a missing broker only disables them.
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Warn("nats unavailable, retention notifications disabled", "error", err)
		natsClient = nil
	} else {
		defer natsClient.Close()
	}

	svcs := buildServices(deps.pool, cfg, natsClient)

	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret)
	handler := governance.NewHandler(svcs.access, svcs.retention, svcs.users)
	runLimiter := middleware.NewRateLimiter(redisClient, "retention:run",
		cfg.Retention.ManualMaxRequests, cfg.Retention.ManualWindow, auth.RateLimitKey)

	readiness := []api.ReadinessCheck{
		{Name: "database", Check: func(ctx context.Context) error { return database.HealthCheck(ctx, deps.pool) }},
		{Name: "redis", Check: func(ctx context.Context) error { return iredis.HealthCheck(ctx, redisClient) }},
		{Name: "nats"},
	}
	if natsClient != nil {
		readiness[2].Check = natsClient.HealthCheck
	}

	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins:  cfg.CORS.AllowedOrigins,
		Readiness:           readiness,
		RetentionRunLimiter: runLimiter.Middleware,
	}, api.HandlerSet{
		CheckAccess:             handler.CheckAccess,
		GetRetentionSettings:    handler.GetSettings,
		UpdateRetentionSettings: handler.UpdateSettings,
		PreviewRetention:        handler.Preview,
		RunRetention:            handler.RunRetention,
		AuthMiddleware:          auth.Middleware(jwtManager),
	})

	srv := server.New(cfg.Server, router)
	if !cfg.Retention.SchedulerEnabled {
		return srv.Run(ctx)
	}
	return runAlongside(ctx, retention.NewScheduler(svcs.retention, cfg.Retention.Interval).Start, srv.Run)
}

// runAlongside runs fn while a background task started with start is alive.
// However fn returns, the task is cancelled and waited for before returning.
func runAlongside(ctx context.Context, start func(context.Context) <-chan struct{}, fn func(context.Context) error) error {
	bgCtx, cancel := context.WithCancel(ctx)
	done := start(bgCtx)
	defer func() {
		cancel()
		<-done
	}()
	return fn(ctx)
}
