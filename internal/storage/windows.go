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

// GetWindow returns the most recent capacity values recorded for a KPI, in
// recording order (oldest first). An unrecorded KPI yields an empty window,
// not an error.
func (s *SQLiteStorage) GetWindow(ctx context.Context, kpi model.KPI, capacity int) (model.BaselineWindow, error) {
	if err := validateContext(ctx); err != nil {
		return model.BaselineWindow{}, err
	}
	if capacity <= 0 {
		return model.BaselineWindow{}, fmt.Errorf("%w: capacity %d", ErrInvalidCapacity, capacity)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT value FROM (
			SELECT seq, value FROM baseline_windows
			WHERE kpi = ?
			ORDER BY seq DESC
			LIMIT ?
		) ORDER BY seq ASC
	`, string(kpi), capacity)
	if err != nil {
		return model.BaselineWindow{}, fmt.Errorf("failed to query window for %s: %w", kpi, err)
	}
	defer func() { _ = rows.Close() }()

	window := model.BaselineWindow{Capacity: capacity}
	for rows.Next() {
		var v float64
		if scanErr := rows.Scan(&v); scanErr != nil {
			return model.BaselineWindow{}, fmt.Errorf("failed to scan window value: %w", scanErr)
		}
		window.Values = append(window.Values, v)
	}
	if err := rows.Err(); err != nil {
		return model.BaselineWindow{}, fmt.Errorf("failed to iterate window values: %w", err)
	}
	return window, nil
}

// LastWindowDay returns the day of the most recently recorded value for a
// KPI, or common.ErrNotFound for an empty window.
func (s *SQLiteStorage) LastWindowDay(ctx context.Context, kpi model.KPI) (time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return time.Time{}, err
	}
	return lastWindowDayTx(ctx, s.db, kpi)
}

func lastWindowDayTx(ctx context.Context, q querier, kpi model.KPI) (time.Time, error) {
	var dayStr string
	err := q.QueryRowContext(ctx, `
		SELECT day FROM baseline_windows
		WHERE kpi = ?
		ORDER BY seq DESC
		LIMIT 1
	`, string(kpi)).Scan(&dayStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, fmt.Errorf("window for %s: %w", kpi, common.ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("failed to read last window day for %s: %w", kpi, err)
	}

	day, err := time.Parse(dayLayout, dayStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored day %q: %w", dayStr, err)
	}
	return day, nil
}

// AppendWindowValue appends one value to a KPI's window and evicts the
// oldest entries beyond capacity. Callers needing atomicity with other
// writes go through a transaction's AppendWindowValue instead.
func (s *SQLiteStorage) AppendWindowValue(ctx context.Context, kpi model.KPI, day time.Time, value float64, capacity int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return appendWindowValueTx(ctx, s.db, kpi, day, value, capacity)
}

func appendWindowValueTx(ctx context.Context, q querier, kpi model.KPI, day time.Time, value float64, capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidCapacity, capacity)
	}

	var nextSeq int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM baseline_windows WHERE kpi = ?
	`, string(kpi)).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("failed to compute next window sequence for %s: %w", kpi, err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO baseline_windows (kpi, seq, day, value) VALUES (?, ?, ?, ?)
	`, string(kpi), nextSeq, day.Format(dayLayout), value)
	if err != nil {
		return fmt.Errorf("failed to append window value for %s: %w", kpi, err)
	}

	// FIFO eviction: drop everything older than the newest capacity entries.
	_, err = q.ExecContext(ctx, `
		DELETE FROM baseline_windows
		WHERE kpi = ? AND seq <= ? - ?
	`, string(kpi), nextSeq, capacity)
	if err != nil {
		return fmt.Errorf("failed to evict window values for %s: %w", kpi, err)
	}

	return nil
}
