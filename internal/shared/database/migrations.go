package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"empires-server/internal/shared/config"
)

// RunMigrations applies every pending .sql file from the migrations
// directory, in filename order, each inside its own transaction. Applied
// versions are recorded in schema_migrations.
func (db *DB) RunMigrations() error {
	logger := slog.With("component", "migrations")

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	files, err := migrationFiles(config.GlobalConfig.Database.MigrationsPath)
	if err != nil {
		return err
	}
	logger.Info("Found migration files", "count", len(files))

	applied := 0
	for _, file := range files {
		ran, err := db.applyMigration(file, logger)
		if err != nil {
			return fmt.Errorf("failed to run migration %s: %w", file, err)
		}
		if ran {
			applied++
		}
	}

	logger.Info("Migrations up to date", "applied_now", applied)
	return nil
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}

func (db *DB) applyMigration(file string, logger *slog.Logger) (bool, error) {
	version := filepath.Base(file)

	var exists bool
	if err := db.QueryRow(
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	if exists {
		return false, nil
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return false, fmt.Errorf("failed to read migration file: %w", err)
	}

	logger.Info("Applying migration", "version", version)

	tx, err := db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return false, err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	return true, nil
}
