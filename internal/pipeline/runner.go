package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirenlabs/opspulse/internal/aggregate"
	"github.com/kirenlabs/opspulse/internal/anomaly"
	"github.com/kirenlabs/opspulse/internal/baseline"
	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/model"
	"github.com/kirenlabs/opspulse/internal/normalize"
	"github.com/kirenlabs/opspulse/internal/service"
)

// Runner executes daily pipeline runs. The external scheduler must guarantee
// at most one in-flight run against the same store; the runner serializes
// baseline appends per KPI but does not lock across processes.
type Runner struct {
	storage    service.Storage
	source     service.RecordSource
	sink       service.ReportSink
	tracker    *baseline.Tracker
	normalizer *normalize.Normalizer
	classifier *anomaly.Classifier
	cfg        Config
}

// NewRunner validates the configuration and wires the pipeline stages.
func NewRunner(cfg Config, storage service.Storage, source service.RecordSource, sink service.ReportSink) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	thresholds := anomaly.Thresholds{Watch: cfg.WatchThreshold, Anomaly: cfg.AnomalyThreshold}

	return &Runner{
		storage:    storage,
		source:     source,
		sink:       sink,
		tracker:    baseline.NewTracker(storage, cfg.WindowSize),
		normalizer: normalize.New(cfg.Location()),
		classifier: anomaly.New(thresholds, cfg.MinWindow),
		cfg:        cfg,
	}, nil
}

// RunResult summarizes one committed daily run.
type RunResult struct {
	Row        model.DailyKPIRow
	Verdicts   []model.AnomalyVerdict
	Excluded   int
	Duplicates int
	Emitted    bool
	Skipped    bool
}

// RunDaily executes the pipeline for one target day: fetch raw records,
// normalize, aggregate, classify against the prior-day baseline, then commit
// the KPI row, window appends, verdicts, and journal entry in a single
// storage transaction. The day's state becomes visible all at once or not at
// all.
//
// A day already journaled as committed returns common.ErrDayAlreadyRun
// unless force is set; a forced re-run recomputes the row and verdicts but
// leaves the already-recorded baseline windows untouched.
func (r *Runner) RunDaily(ctx context.Context, day time.Time, force bool) (*RunResult, error) {
	day = r.midnight(day)

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	startedAt := time.Now().UTC()
	slog.Info("starting daily run", "day", day.Format("2006-01-02"))

	alreadyRun, err := r.dayCommitted(ctx, day)
	if err != nil {
		return nil, err
	}
	if alreadyRun && !force {
		return nil, fmt.Errorf("%s: %w", day.Format("2006-01-02"), common.ErrDayAlreadyRun)
	}

	if err := r.tracker.Seed(ctx, day); err != nil {
		return nil, err
	}

	batch, err := r.source.FetchDay(ctx, day)
	if err != nil {
		if !errors.Is(err, common.ErrNoRecords) {
			return nil, fmt.Errorf("failed to fetch raw records for %s: %w", day.Format("2006-01-02"), err)
		}
		// A day with no feed records still gets a zero row so the calendar
		// spine stays contiguous and quiet days feed the baseline.
		slog.Info("no raw records for day, committing zero row", "day", day.Format("2006-01-02"))
		batch = model.RawBatch{}
	}

	normalized := r.normalizer.Normalize(batch)
	row := aggregate.BuildRow(day, normalized.Facts)

	windows, err := r.currentWindows(ctx)
	if err != nil {
		return nil, err
	}
	verdicts := r.classifier.ClassifyRow(row, windows)

	result := &RunResult{
		Row:        row,
		Verdicts:   verdicts,
		Excluded:   normalized.Excluded,
		Duplicates: normalized.Duplicates,
	}

	run := model.RunRecord{
		Day:        day,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Status:     model.RunCommitted,
		Excluded:   normalized.Excluded,
		Duplicates: normalized.Duplicates,
	}

	if err := r.commit(ctx, row, verdicts, run, alreadyRun); err != nil {
		return nil, err
	}

	logRunSummary(result)

	if err := r.emit(ctx, row, verdicts); err != nil {
		// State is committed; the day can be re-emitted without re-running.
		return result, fmt.Errorf("run committed but report emission failed: %w", err)
	}
	result.Emitted = true

	return result, nil
}

// commit applies the day's writes through one transaction.
func (r *Runner) commit(ctx context.Context, row model.DailyKPIRow, verdicts []model.AnomalyVerdict, run model.RunRecord, skipAppends bool) error {
	tx, err := r.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin run transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.SaveKPIRow(ctx, row); err != nil {
		return err
	}

	if skipAppends {
		slog.Warn("forced re-run: baseline windows keep their originally recorded values",
			"day", row.Day.Format("2006-01-02"))
	} else {
		// Appends are chronological per KPI; the tracker rejects anything
		// at or before the last recorded day.
		for _, kpi := range model.AllKPIs() {
			if err := r.tracker.Record(ctx, tx, kpi, row.Day, row.Value(kpi)); err != nil {
				return err
			}
		}
	}

	if err := tx.SaveVerdicts(ctx, verdicts); err != nil {
		return err
	}
	if err := tx.SaveRun(ctx, run); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run for %s: %w", row.Day.Format("2006-01-02"), err)
	}
	return nil
}

// emit delivers the wide row to the report sink with retry, then flags the
// run as emitted.
func (r *Runner) emit(ctx context.Context, row model.DailyKPIRow, verdicts []model.AnomalyVerdict) error {
	if r.sink == nil {
		return nil
	}

	err := common.WithRetry(ctx, func() error {
		return r.sink.WriteDaily(ctx, row, verdicts)
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return err
	}

	if err := r.storage.MarkRunEmitted(ctx, row.Day); err != nil {
		return err
	}
	return nil
}

func (r *Runner) currentWindows(ctx context.Context) (map[model.KPI]model.BaselineWindow, error) {
	windows := make(map[model.KPI]model.BaselineWindow, len(model.AllKPIs()))
	for _, kpi := range model.AllKPIs() {
		window, err := r.tracker.Current(ctx, kpi)
		if err != nil {
			return nil, err
		}
		windows[kpi] = window
	}
	return windows, nil
}

func (r *Runner) dayCommitted(ctx context.Context, day time.Time) (bool, error) {
	run, err := r.storage.GetRun(ctx, day)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return run.Status == model.RunCommitted, nil
}

func (r *Runner) midnight(day time.Time) time.Time {
	loc := r.cfg.Location()
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func logRunSummary(result *RunResult) {
	anomalies := 0
	for _, v := range result.Verdicts {
		if v.Severity == model.SeverityAnomaly || v.Severity == model.SeverityWatch {
			anomalies++
		}
	}
	slog.Info("daily run committed",
		"day", result.Row.Day.Format("2006-01-02"),
		"orders", result.Row.OrdersCount,
		"revenue", result.Row.Revenue.String(),
		"cancellations", result.Row.Cancellations,
		"excluded_records", result.Excluded,
		"duplicate_records", result.Duplicates,
		"flagged_kpis", anomalies)
}
