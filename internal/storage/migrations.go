package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: daily KPI rows and baseline windows",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS daily_kpi (
					day TEXT PRIMARY KEY,
					orders_count INTEGER NOT NULL DEFAULT 0,
					cancellations INTEGER NOT NULL DEFAULT 0,
					revenue TEXT NOT NULL DEFAULT '0',
					aov TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS baseline_windows (
					kpi TEXT NOT NULL,
					seq INTEGER NOT NULL,
					day TEXT NOT NULL,
					value REAL NOT NULL,
					PRIMARY KEY (kpi, seq)
				)`,
				`CREATE UNIQUE INDEX idx_baseline_windows_kpi_day ON baseline_windows(kpi, day)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add verdicts and run journal",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS verdicts (
					day TEXT NOT NULL,
					kpi TEXT NOT NULL,
					observed REAL NOT NULL,
					baseline_mean REAL NOT NULL,
					baseline_stdev REAL NOT NULL,
					score REAL NOT NULL,
					severity TEXT NOT NULL,
					reason TEXT NOT NULL,
					PRIMARY KEY (day, kpi)
				)`,

				`CREATE TABLE IF NOT EXISTS runs (
					day TEXT PRIMARY KEY,
					started_at DATETIME NOT NULL,
					finished_at DATETIME NOT NULL,
					status TEXT NOT NULL,
					excluded INTEGER NOT NULL DEFAULT 0,
					duplicates INTEGER NOT NULL DEFAULT 0,
					emitted INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX idx_verdicts_severity ON verdicts(severity)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add audit revenue columns to daily KPI rows",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE daily_kpi ADD COLUMN revenue_items TEXT NOT NULL DEFAULT '0'`,
				`ALTER TABLE daily_kpi ADD COLUMN revenue_payments TEXT NOT NULL DEFAULT '0'`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
