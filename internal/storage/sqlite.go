// Package storage provides the SQLite-backed historical store for daily KPI
// rows, baseline window state, verdicts, and the run journal.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kirenlabs/opspulse/internal/model"
	"github.com/kirenlabs/opspulse/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Tx, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTx{tx: tx, storage: s}, nil
}

// sqliteTx wraps sql.Tx to implement service.Tx.
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) SaveKPIRow(ctx context.Context, row model.DailyKPIRow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateKPIRow(&row); err != nil {
		return err
	}
	return saveKPIRowTx(ctx, t.tx, row)
}

func (t *sqliteTx) AppendWindowValue(ctx context.Context, kpi model.KPI, day time.Time, value float64, capacity int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return appendWindowValueTx(ctx, t.tx, kpi, day, value, capacity)
}

func (t *sqliteTx) LastWindowDay(ctx context.Context, kpi model.KPI) (time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, err
	}
	return lastWindowDayTx(ctx, t.tx, kpi)
}

func (t *sqliteTx) SaveVerdicts(ctx context.Context, verdicts []model.AnomalyVerdict) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveVerdictsTx(ctx, t.tx, verdicts)
}

func (t *sqliteTx) SaveRun(ctx context.Context, run model.RunRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveRunTx(ctx, t.tx, run)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const dayLayout = "2006-01-02"
