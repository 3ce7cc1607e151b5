package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirenlabs/opspulse/internal/common"
)

// BackfillResult summarizes a backfill over a date range.
type BackfillResult struct {
	DaysRun     int
	DaysSkipped int
}

// Backfill runs the pipeline for every day in [from, to], oldest first.
// Days already committed are skipped. Days must be processed in strict
// chronological order because each day's baseline append has to land before
// the next day's classification reads the window; the loop is the
// serialization point the window's FIFO semantics depend on.
//
// progress, if non-nil, is called after each day with the day just handled.
func (r *Runner) Backfill(ctx context.Context, from, to time.Time, progress func(day time.Time)) (*BackfillResult, error) {
	from = r.midnight(from)
	to = r.midnight(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: backfill range %s..%s", common.ErrInvalidConfig,
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	result := &BackfillResult{}

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := r.RunDaily(ctx, day, false)
		if err != nil {
			if errors.Is(err, common.ErrDayAlreadyRun) {
				slog.Debug("skipping committed day", "day", day.Format("2006-01-02"))
				result.DaysSkipped++
				if progress != nil {
					progress(day)
				}
				continue
			}
			return result, fmt.Errorf("backfill stopped at %s: %w", day.Format("2006-01-02"), err)
		}

		result.DaysRun++
		if progress != nil {
			progress(day)
		}
	}

	return result, nil
}
