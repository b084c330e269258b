// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 730730

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table through the down migrations, newest first,
// and forgets applied migrations so RunMigrations starts from scratch.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	downs, err := fs.Glob(migrations.FS, "*.down.sql")
	if err != nil {
		return fmt.Errorf("glob down migrations: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))

	for _, name := range downs {
		sql, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user with a unique id and email and a zero balance.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	id := uuid.NewString()
	return &model.User{
		ID:           id,
		Email:        UniqueEmail("user"),
		PasswordHash: "test-hash",
		Name:         "Anna",
		Surname:      "Nowak",
		Phone:        "+48 600 000 000",
		Address:      "ul. Marszalkowska 1, Warszawa",
		Nickname:     "Anna",
		CreatedAt:    time.Now().UTC(),
	}
}

// UniqueEmail generates a unique lower-case email for tests.
func UniqueEmail(prefix string) string {
	return strings.ToLower(fmt.Sprintf("%s-%d@example.com", prefix, time.Now().UnixNano()))
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
