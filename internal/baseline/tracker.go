// Package baseline maintains the per-KPI rolling windows used as anomaly
// baselines.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/model"
	"github.com/kirenlabs/opspulse/internal/service"
)

// Tracker owns the per-KPI baseline windows. State lives in the historical
// store, never in package-level variables, so concurrent processes can never
// diverge on window contents. The caller passes the tracker into each run.
type Tracker struct {
	storage  service.Storage
	capacity int
}

// NewTracker creates a tracker over the given store with a fixed window
// capacity.
func NewTracker(storage service.Storage, capacity int) *Tracker {
	return &Tracker{storage: storage, capacity: capacity}
}

// Current returns the window snapshot for a KPI, excluding the evaluation
// day (values are only recorded after classification, so the snapshot can
// never contain today).
func (t *Tracker) Current(ctx context.Context, kpi model.KPI) (model.BaselineWindow, error) {
	window, err := t.storage.GetWindow(ctx, kpi, t.capacity)
	if err != nil {
		return model.BaselineWindow{}, fmt.Errorf("failed to read baseline window for %s: %w", kpi, err)
	}
	return window, nil
}

// Record appends a day's value to a KPI's window within the run's storage
// transaction, evicting the oldest value beyond capacity. Appends must be
// strictly chronological per KPI; an append for a day at or before the last
// recorded day is rejected, since the window's FIFO order must match
// calendar order.
func (t *Tracker) Record(ctx context.Context, tx service.Tx, kpi model.KPI, day time.Time, value float64) error {
	last, err := tx.LastWindowDay(ctx, kpi)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to read last recorded day for %s: %w", kpi, err)
	}
	if err == nil && !day.After(last) {
		return fmt.Errorf("%w: %s at %s, last recorded %s",
			common.ErrOutOfOrderAppend, kpi,
			day.Format("2006-01-02"), last.Format("2006-01-02"))
	}

	if err := tx.AppendWindowValue(ctx, kpi, day, value, t.capacity); err != nil {
		return fmt.Errorf("failed to append %s window value: %w", kpi, err)
	}
	return nil
}

// Seed initializes empty windows from historical KPI rows up to the window
// capacity, most recent rows last. Windows that already hold values are left
// alone. Called once on first use against a store migrated from an existing
// metrics history.
func (t *Tracker) Seed(ctx context.Context, before time.Time) error {
	start := before.AddDate(0, 0, -t.capacity)
	rows, err := t.storage.GetKPIRows(ctx, start, before.AddDate(0, 0, -1))
	if err != nil {
		return fmt.Errorf("failed to load historical rows for seeding: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	for _, kpi := range model.AllKPIs() {
		window, err := t.storage.GetWindow(ctx, kpi, t.capacity)
		if err != nil {
			return fmt.Errorf("failed to read window for %s: %w", kpi, err)
		}
		if window.Size() > 0 {
			continue
		}

		for _, row := range rows {
			if err := t.storage.AppendWindowValue(ctx, kpi, row.Day, row.Value(kpi), t.capacity); err != nil {
				return fmt.Errorf("failed to seed %s window: %w", kpi, err)
			}
		}
		slog.Info("seeded baseline window from history", "kpi", kpi, "days", len(rows))
	}

	return nil
}
