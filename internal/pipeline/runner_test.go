package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/model"
	"github.com/kirenlabs/opspulse/internal/service"
	"github.com/kirenlabs/opspulse/internal/sheets"
	"github.com/kirenlabs/opspulse/internal/testutil"
)

// fakeSource serves canned raw batches keyed by day.
type fakeSource struct {
	batches map[string]model.RawBatch
	err     error
}

func (f *fakeSource) FetchDay(_ context.Context, day time.Time) (model.RawBatch, error) {
	if f.err != nil {
		return model.RawBatch{}, f.err
	}
	batch, ok := f.batches[day.Format("2006-01-02")]
	if !ok {
		return model.RawBatch{}, fmt.Errorf("%s: %w", day.Format("2006-01-02"), common.ErrNoRecords)
	}
	return batch, nil
}

func day(offset int) time.Time {
	return time.Date(2017, time.September, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

// batchFor builds a day of orders: count completed orders paying unitValue
// each, plus one cancelled order.
func batchFor(d time.Time, count int, unitValue string) model.RawBatch {
	ts := d.Format("2006-01-02") + " 10:30:00"
	batch := model.RawBatch{}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("order-%s-%d", d.Format("20060102"), i)
		batch.Orders = append(batch.Orders, model.RawOrder{OrderID: id, Status: "delivered", Timestamp: ts})
		batch.Payments = append(batch.Payments, model.RawPayment{OrderID: id, Value: unitValue})
	}
	cancelled := fmt.Sprintf("order-%s-c", d.Format("20060102"))
	batch.Orders = append(batch.Orders, model.RawOrder{OrderID: cancelled, Status: "canceled", Timestamp: ts})
	return batch
}

func newTestRunner(t *testing.T, source service.RecordSource, sink service.ReportSink) (*Runner, service.Storage) {
	t.Helper()

	store := testutil.SetupTestDB(t)
	cfg := DefaultConfig()
	cfg.RunTimeout = 0

	runner, err := NewRunner(cfg, store, source, sink)
	require.NoError(t, err)
	return runner, store
}

func TestNewRunner_RejectsInvalidConfig(t *testing.T) {
	store := testutil.SetupTestDB(t)
	cfg := DefaultConfig()
	cfg.WindowSize = 0

	_, err := NewRunner(cfg, store, &fakeSource{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestRunDaily_CommitsAndEmits(t *testing.T) {
	source := &fakeSource{batches: map[string]model.RawBatch{
		day(0).Format("2006-01-02"): batchFor(day(0), 4, "25.00"),
	}}
	sink := sheets.NewMockSink()
	runner, store := newTestRunner(t, source, sink)
	ctx := context.Background()

	result, err := runner.RunDaily(ctx, day(0), false)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Row.OrdersCount)
	assert.Equal(t, 1, result.Row.Cancellations)
	assert.Equal(t, "100", result.Row.Revenue.String())
	assert.True(t, result.Emitted)
	assert.Len(t, result.Verdicts, 4)
	for _, v := range result.Verdicts {
		assert.Equal(t, model.SeverityInsufficientData, v.Severity,
			"first day has no baseline for %s", v.KPI)
	}

	// Committed state is visible after the run.
	row, err := store.GetKPIRow(ctx, day(0))
	require.NoError(t, err)
	assert.Equal(t, 5, row.OrdersCount)

	verdicts, err := store.GetVerdicts(ctx, day(0))
	require.NoError(t, err)
	assert.Len(t, verdicts, 4)

	run, err := store.GetRun(ctx, day(0))
	require.NoError(t, err)
	assert.Equal(t, model.RunCommitted, run.Status)
	assert.True(t, run.Emitted)

	for _, kpi := range model.AllKPIs() {
		window, wErr := store.GetWindow(ctx, kpi, 7)
		require.NoError(t, wErr)
		assert.Equal(t, 1, window.Size(), "one value recorded for %s", kpi)
	}

	require.Equal(t, 1, sink.WriteCallCount)
	assert.Equal(t, 5, sink.WriteCalls[0].Row.OrdersCount)
}

func TestRunDaily_SecondRunIsRejected(t *testing.T) {
	source := &fakeSource{batches: map[string]model.RawBatch{
		day(0).Format("2006-01-02"): batchFor(day(0), 2, "10.00"),
	}}
	runner, _ := newTestRunner(t, source, nil)
	ctx := context.Background()

	_, err := runner.RunDaily(ctx, day(0), false)
	require.NoError(t, err)

	_, err = runner.RunDaily(ctx, day(0), false)
	assert.ErrorIs(t, err, common.ErrDayAlreadyRun)
}

func TestRunDaily_ForceRecomputesWithoutTouchingWindows(t *testing.T) {
	source := &fakeSource{batches: map[string]model.RawBatch{
		day(0).Format("2006-01-02"): batchFor(day(0), 2, "10.00"),
	}}
	runner, store := newTestRunner(t, source, nil)
	ctx := context.Background()

	_, err := runner.RunDaily(ctx, day(0), false)
	require.NoError(t, err)

	// Corrected feed for the same day.
	source.batches[day(0).Format("2006-01-02")] = batchFor(day(0), 6, "10.00")

	result, err := runner.RunDaily(ctx, day(0), true)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Row.OrdersCount)

	row, err := store.GetKPIRow(ctx, day(0))
	require.NoError(t, err)
	assert.Equal(t, 7, row.OrdersCount)

	// Baseline windows keep the originally recorded values.
	window, err := store.GetWindow(ctx, model.KPIOrdersCount, 7)
	require.NoError(t, err)
	require.Equal(t, 1, window.Size())
	assert.Equal(t, 3.0, window.Values[0])
}

func TestRunDaily_BaselineBuildsAcrossDays(t *testing.T) {
	batches := make(map[string]model.RawBatch)
	for i := 0; i < 4; i++ {
		batches[day(i).Format("2006-01-02")] = batchFor(day(i), 4, "25.00")
	}
	// Day 5 collapses to a single order.
	batches[day(4).Format("2006-01-02")] = batchFor(day(4), 1, "25.00")

	source := &fakeSource{batches: batches}
	runner, _ := newTestRunner(t, source, nil)
	ctx := context.Background()

	var last *RunResult
	for i := 0; i < 5; i++ {
		result, err := runner.RunDaily(ctx, day(i), false)
		require.NoError(t, err)
		last = result
	}

	byKPI := make(map[model.KPI]model.AnomalyVerdict)
	for _, v := range last.Verdicts {
		byKPI[v.KPI] = v
	}

	// Four identical days make a zero-variance baseline; the collapsed day
	// deviates and must be flagged.
	orders := byKPI[model.KPIOrdersCount]
	assert.Equal(t, model.SeverityAnomaly, orders.Severity)
	assert.Contains(t, orders.Reason, "drop")
	assert.Equal(t, model.SeverityAnomaly, byKPI[model.KPIRevenue].Severity)
	assert.Equal(t, model.SeverityNormal, byKPI[model.KPICancellations].Severity)
}

func TestRunDaily_InsufficientUntilMinWindow(t *testing.T) {
	batches := make(map[string]model.RawBatch)
	for i := 0; i < 4; i++ {
		batches[day(i).Format("2006-01-02")] = batchFor(day(i), 3, "20.00")
	}
	source := &fakeSource{batches: batches}
	runner, _ := newTestRunner(t, source, nil)
	ctx := context.Background()

	severities := make([]model.Severity, 0, 4)
	for i := 0; i < 4; i++ {
		result, err := runner.RunDaily(ctx, day(i), false)
		require.NoError(t, err)
		severities = append(severities, result.Verdicts[0].Severity)
	}

	// Windows hold 0, 1, 2, then 3 prior days; verdicts start at the
	// three-day minimum.
	assert.Equal(t, []model.Severity{
		model.SeverityInsufficientData,
		model.SeverityInsufficientData,
		model.SeverityInsufficientData,
		model.SeverityNormal,
	}, severities)
}

func TestRunDaily_WesternTimezoneCommitsRequestedDay(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	target := time.Date(2017, time.September, 2, 0, 0, 0, 0, saoPaulo)

	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "o1", Status: "delivered", Timestamp: "2017-09-02 10:00:00"},
		},
		Payments: []model.RawPayment{{OrderID: "o1", Value: "40.00"}},
	}
	source := &fakeSource{batches: map[string]model.RawBatch{
		"2017-09-02": batch,
	}}

	store := testutil.SetupTestDB(t)
	cfg := DefaultConfig()
	cfg.Timezone = "America/Sao_Paulo"
	cfg.RunTimeout = 0
	runner, err := NewRunner(cfg, store, source, nil)
	require.NoError(t, err)

	ctx := context.Background()
	result, err := runner.RunDaily(ctx, target, false)
	require.NoError(t, err)

	// The committed day is the requested calendar day, not its UTC-midnight
	// instant re-bucketed onto the previous local day.
	assert.Equal(t, "2017-09-02", result.Row.Day.Format("2006-01-02"))
	assert.Equal(t, 1, result.Row.OrdersCount)

	row, err := store.GetKPIRow(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "2017-09-02", row.Day.Format("2006-01-02"))

	_, err = store.GetKPIRow(ctx, target.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRunDaily_QuietDayCommitsZeroRow(t *testing.T) {
	source := &fakeSource{batches: map[string]model.RawBatch{}}
	runner, store := newTestRunner(t, source, nil)
	ctx := context.Background()

	result, err := runner.RunDaily(ctx, day(0), false)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Row.OrdersCount)
	assert.True(t, result.Row.Revenue.IsZero())
	assert.False(t, result.Row.AOV.Valid)

	// The zero day still feeds the baseline.
	window, err := store.GetWindow(ctx, model.KPIOrdersCount, 7)
	require.NoError(t, err)
	require.Equal(t, 1, window.Size())
	assert.Equal(t, 0.0, window.Values[0])
}

func TestRunDaily_FetchFailureLeavesNoState(t *testing.T) {
	source := &fakeSource{err: errors.New("feed unreachable")}
	runner, store := newTestRunner(t, source, nil)
	ctx := context.Background()

	_, err := runner.RunDaily(ctx, day(0), false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNoRecords)

	_, err = store.GetKPIRow(ctx, day(0))
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.GetRun(ctx, day(0))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRunDaily_SinkFailureLeavesRunCommitted(t *testing.T) {
	source := &fakeSource{batches: map[string]model.RawBatch{
		day(0).Format("2006-01-02"): batchFor(day(0), 2, "10.00"),
	}}
	sink := sheets.NewMockSink()
	sink.SetWriteError(errors.New("spreadsheet API unavailable"))
	runner, store := newTestRunner(t, source, sink)
	ctx := context.Background()

	result, err := runner.RunDaily(ctx, day(0), false)
	require.Error(t, err)
	require.NotNil(t, result, "committed state must be reported even when emission fails")
	assert.False(t, result.Emitted)

	run, err := store.GetRun(ctx, day(0))
	require.NoError(t, err)
	assert.Equal(t, model.RunCommitted, run.Status)
	assert.False(t, run.Emitted, "failed emission must not mark the run emitted")

	// Delivery is retried before giving up.
	assert.Equal(t, 3, sink.WriteCallCount)
}

func TestBackfill_RunsRangeInOrderAndSkipsCommitted(t *testing.T) {
	batches := make(map[string]model.RawBatch)
	for i := 0; i < 5; i++ {
		batches[day(i).Format("2006-01-02")] = batchFor(day(i), 3, "20.00")
	}
	source := &fakeSource{batches: batches}
	runner, store := newTestRunner(t, source, nil)
	ctx := context.Background()

	// The first day was already run on its own.
	_, err := runner.RunDaily(ctx, day(0), false)
	require.NoError(t, err)

	var visited []string
	result, err := runner.Backfill(ctx, day(0), day(4), func(d time.Time) {
		visited = append(visited, d.Format("2006-01-02"))
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.DaysRun)
	assert.Equal(t, 1, result.DaysSkipped)
	assert.Len(t, visited, 5)
	for i := 1; i < len(visited); i++ {
		assert.Less(t, visited[i-1], visited[i], "backfill must be chronological")
	}

	rows, err := store.GetKPIRows(ctx, day(0), day(4))
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestBackfill_RejectsInvertedRange(t *testing.T) {
	runner, _ := newTestRunner(t, &fakeSource{}, nil)

	_, err := runner.Backfill(context.Background(), day(3), day(0), nil)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
