package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationsTable tracks applied migration files. Owned by the grading
// engine; nothing else writes to this database.
const migrationsTable = "grading_migrations"

// RunMigrations applies every pending .sql file from migrationsDir in
// lexical order. Each file runs in its own transaction together with the
// row that marks it applied, so a failed migration leaves no partial state.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrationsDir string) error {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedMigrations(ctx, pool)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	names, err := listMigrations(migrationsDir)
	if err != nil {
		return err
	}

	var pending []string
	for _, name := range names {
		if !applied[name] {
			pending = append(pending, name)
		}
	}

	if len(pending) == 0 {
		slog.Info("migrations up to date", "dir", migrationsDir, "applied", len(applied))
		return nil
	}

	slog.Info("applying migrations", "dir", migrationsDir, "pending", len(pending))

	for _, name := range pending {
		if err := applyMigration(ctx, pool, migrationsDir, name); err != nil {
			return err
		}
		slog.Info("migration applied", "migration", name)
	}

	return nil
}

// MigrateFromDSN runs migrations over a short-lived connection pool,
// used at startup before the repository pool exists.
func MigrateFromDSN(ctx context.Context, dsn, migrationsDir string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	return RunMigrations(ctx, pool, migrationsDir)
}

// listMigrations returns the .sql file names in the directory, sorted so
// the numeric prefix convention (001_..., 002_...) orders them.
func listMigrations(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations directory: %w", err)
	}
	if matches == nil {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("failed to read migrations directory: %w", err)
		}
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names, nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, dir, name string) error {
	content, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", name, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for %s: %w", name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO `+migrationsTable+` (name) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", name, err)
	}
	return nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
			name VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	_, err := pool.Exec(ctx, query)
	return err
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, `SELECT name FROM `+migrationsTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}

	return applied, rows.Err()
}
