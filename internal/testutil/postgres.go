//go:build integration

// Package testutil starts throwaway infrastructure for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aiox-platform/governor/internal/database"
)

// NewPostgres starts a PostgreSQL container, applies the migrations and
// returns a pool that is closed when the test ends.
func NewPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "governor_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/governor_test?sslmode=disable", host, port.Port())
	if err := database.RunMigrations(dsn, migrationsPath(t)); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func migrationsPath(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations")
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("migrations directory not found")
		}
		dir = parent
	}
}

// InsertUser creates a user row and returns its id.
func InsertUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email) VALUES ($1, $2)`, id, id.String()+"@test.local")
	if err != nil {
		t.Fatalf("inserting user: %v", err)
	}
	return id
}

// InsertConversation creates a conversation with the given members, tags and
// message count.
func InsertConversation(t *testing.T, pool *pgxpool.Pool, lastMessageAt time.Time, members []uuid.UUID, tags []uuid.UUID, messages int) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()

	if _, err := pool.Exec(ctx,
		`INSERT INTO conversations (id, name, last_message_at) VALUES ($1, $2, $3)`,
		id, "conversation "+id.String()[:8], lastMessageAt); err != nil {
		t.Fatalf("inserting conversation: %v", err)
	}
	for _, m := range members {
		if _, err := pool.Exec(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`, id, m); err != nil {
			t.Fatalf("inserting member: %v", err)
		}
	}
	for _, tag := range tags {
		if _, err := pool.Exec(ctx,
			`INSERT INTO conversation_tags (conversation_id, tag_id) VALUES ($1, $2)`, id, tag); err != nil {
			t.Fatalf("inserting tag: %v", err)
		}
	}
	for i := 0; i < messages; i++ {
		if _, err := pool.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, body) VALUES ($1, $2, $3)`,
			uuid.New(), id, fmt.Sprintf("message %d", i)); err != nil {
			t.Fatalf("inserting message: %v", err)
		}
	}
	return id
}
