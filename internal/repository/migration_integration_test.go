//go:build integration

package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/colloil/colloil/internal/testutil"
	"github.com/colloil/colloil/migrations"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)

	for _, table := range []string{"users", "coupons", "courier_requests", "notifications", "schema_migrations"} {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, repo.Pool(), table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_UsersTableSchema(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)

	expectedColumns := []string{
		"id",
		"email",
		"password_hash",
		"name",
		"surname",
		"phone",
		"address",
		"nickname",
		"total_oil_liters",
		"created_at",
	}

	for _, col := range expectedColumns {
		t.Run(col, func(t *testing.T) {
			exists, err := columnExists(ctx, repo.Pool(), "users", col)
			if err != nil {
				t.Fatalf("columnExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Column %q should exist in users table", col)
			}
		})
	}
}

func TestIntegrationMigration_BalanceCannotGoNegative(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)

	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	_, err := repo.Pool().Exec(ctx, `UPDATE users SET total_oil_liters = -1 WHERE id = $1`, user.ID)
	if err == nil {
		t.Fatal("expected check constraint violation for negative balance")
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, repo := newIntegrationRepo(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := repo.RunMigrations(ctx, migrations.FS, logger); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	var applied int
	if err := repo.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 4 {
		t.Errorf("applied migrations = %d, want 4", applied)
	}
}

// ============================================================================
// Helpers
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// newIntegrationRepo connects to DATABASE_URL, resets the schema and
// applies every migration. Tests sharing the database are serialized.
func newIntegrationRepo(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := repo.RunMigrations(ctx, migrations.FS, logger); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return ctx, repo
}
