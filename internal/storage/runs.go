package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/model"
)

// GetRun fetches the journal entry for a day's run. Returns
// common.ErrNotFound when the day has never been run.
func (s *SQLiteStorage) GetRun(ctx context.Context, day time.Time) (*model.RunRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		run        model.RunRecord
		dayStr     string
		status     string
		emittedInt int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT day, started_at, finished_at, status, excluded, duplicates, emitted
		FROM runs WHERE day = ?
	`, day.Format(dayLayout)).Scan(&dayStr, &run.StartedAt, &run.FinishedAt,
		&status, &run.Excluded, &run.Duplicates, &emittedInt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run for %s: %w", day.Format(dayLayout), common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read run for %s: %w", day.Format(dayLayout), err)
	}

	parsed, err := time.Parse(dayLayout, dayStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored day %q: %w", dayStr, err)
	}
	run.Day = parsed
	run.Status = model.RunStatus(status)
	run.Emitted = emittedInt != 0
	return &run, nil
}

// SaveRun writes the journal entry for a day, replacing any prior entry.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run model.RunRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveRunTx(ctx, s.db, run)
}

func saveRunTx(ctx context.Context, q querier, run model.RunRecord) error {
	emitted := 0
	if run.Emitted {
		emitted = 1
	}

	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			day, started_at, finished_at, status, excluded, duplicates, emitted
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.Day.Format(dayLayout),
		run.StartedAt,
		run.FinishedAt,
		string(run.Status),
		run.Excluded,
		run.Duplicates,
		emitted,
	)
	if err != nil {
		return fmt.Errorf("failed to save run for %s: %w", run.Day.Format(dayLayout), err)
	}
	return nil
}

// MarkRunEmitted flags a committed run as delivered to the report sink.
func (s *SQLiteStorage) MarkRunEmitted(ctx context.Context, day time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET emitted = 1 WHERE day = ?
	`, day.Format(dayLayout))
	if err != nil {
		return fmt.Errorf("failed to mark run emitted for %s: %w", day.Format(dayLayout), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check emitted update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run for %s: %w", day.Format(dayLayout), common.ErrNotFound)
	}
	return nil
}
