// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/kirenlabs/opspulse/internal/model"
)

// Storage defines the contract for the historical store: daily KPI rows,
// baseline window state, verdicts, and the run journal.
type Storage interface {
	// KPI row operations
	SaveKPIRow(ctx context.Context, row model.DailyKPIRow) error
	GetKPIRow(ctx context.Context, day time.Time) (*model.DailyKPIRow, error)
	GetKPIRows(ctx context.Context, start, end time.Time) ([]model.DailyKPIRow, error)

	// Baseline window operations. Windows are keyed by KPI; values are
	// ordered by recording sequence, and reads return at most capacity of
	// the most recently recorded values.
	GetWindow(ctx context.Context, kpi model.KPI, capacity int) (model.BaselineWindow, error)
	LastWindowDay(ctx context.Context, kpi model.KPI) (time.Time, error)
	AppendWindowValue(ctx context.Context, kpi model.KPI, day time.Time, value float64, capacity int) error

	// Verdict operations
	SaveVerdicts(ctx context.Context, verdicts []model.AnomalyVerdict) error
	GetVerdicts(ctx context.Context, day time.Time) ([]model.AnomalyVerdict, error)

	// Run journal
	GetRun(ctx context.Context, day time.Time) (*model.RunRecord, error)
	SaveRun(ctx context.Context, run model.RunRecord) error
	MarkRunEmitted(ctx context.Context, day time.Time) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Tx, error)
	Close() error
}

// Tx is a storage transaction. A daily run applies its KPI row, window
// appends, verdicts, and journal entry through one Tx so the commit is
// all-or-nothing.
type Tx interface {
	Commit() error
	Rollback() error

	SaveKPIRow(ctx context.Context, row model.DailyKPIRow) error
	AppendWindowValue(ctx context.Context, kpi model.KPI, day time.Time, value float64, capacity int) error
	LastWindowDay(ctx context.Context, kpi model.KPI) (time.Time, error)
	SaveVerdicts(ctx context.Context, verdicts []model.AnomalyVerdict) error
	SaveRun(ctx context.Context, run model.RunRecord) error
}

// RecordSource is the input feed: raw order/item/payment records for a day.
type RecordSource interface {
	FetchDay(ctx context.Context, day time.Time) (model.RawBatch, error)
}

// ReportSink receives one wide row per day: the KPI values plus the per-KPI
// verdicts. Delivery mechanics are the sink's business.
type ReportSink interface {
	WriteDaily(ctx context.Context, row model.DailyKPIRow, verdicts []model.AnomalyVerdict) error
}

// RetryOptions configures retry behavior for sink operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
