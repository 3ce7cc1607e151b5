// Package anomaly scores a day's KPI values against their rolling baselines
// and assigns severity labels.
package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/kirenlabs/opspulse/internal/model"
)

// Thresholds is the z-score threshold table. Severity is a total function of
// the deviation score over this table; there are no per-KPI or per-direction
// thresholds in the base algorithm.
type Thresholds struct {
	// Watch is the |z| at which a value leaves NORMAL.
	Watch float64
	// Anomaly is the |z| at which a value becomes an outright anomaly.
	Anomaly float64
}

// DefaultThresholds returns the standard 1.5/3.0 threshold table.
func DefaultThresholds() Thresholds {
	return Thresholds{Watch: 1.5, Anomaly: 3.0}
}

// Severity maps an absolute deviation score to a severity label.
func (t Thresholds) Severity(score float64) model.Severity {
	abs := math.Abs(score)
	switch {
	case abs >= t.Anomaly:
		return model.SeverityAnomaly
	case abs >= t.Watch:
		return model.SeverityWatch
	default:
		return model.SeverityNormal
	}
}

// Classifier compares observed KPI values to their baselines.
type Classifier struct {
	thresholds Thresholds
	minWindow  int
}

// New creates a classifier with the given threshold table and minimum
// baseline size.
func New(thresholds Thresholds, minWindow int) *Classifier {
	return &Classifier{thresholds: thresholds, minWindow: minWindow}
}

// Classify produces the verdict for one KPI on one day given the baseline
// window excluding that day.
//
// A window below the minimum size yields INSUFFICIENT_DATA, never a silent
// NORMAL. A zero-variance baseline admits no degrees of deviation, so
// classification is binary: equal to the mean is NORMAL, anything else is
// ANOMALY.
func (c *Classifier) Classify(day time.Time, kpi model.KPI, observed float64, window model.BaselineWindow) model.AnomalyVerdict {
	verdict := model.AnomalyVerdict{
		Day:      day,
		KPI:      kpi,
		Observed: observed,
	}

	if window.Size() < c.minWindow {
		verdict.Severity = model.SeverityInsufficientData
		verdict.Reason = fmt.Sprintf("only %d prior day(s) recorded, need %d for a baseline",
			window.Size(), c.minWindow)
		return verdict
	}

	mean := window.Mean()
	stdev := window.StdDev()
	verdict.BaselineMean = mean
	verdict.BaselineStdev = stdev

	if stdev == 0 {
		if observed == mean {
			verdict.Severity = model.SeverityNormal
			verdict.Reason = fmt.Sprintf("%s matches a constant baseline of %.2f", kpi, mean)
		} else {
			verdict.Severity = model.SeverityAnomaly
			verdict.Reason = fmt.Sprintf("%s %s: observed %.2f against a constant baseline of %.2f",
				kpi, direction(kpi, observed-mean), observed, mean)
		}
		return verdict
	}

	score := (observed - mean) / stdev
	verdict.Score = score
	verdict.Severity = c.thresholds.Severity(score)

	if verdict.Severity == model.SeverityNormal {
		verdict.Reason = fmt.Sprintf("%s within %.1f standard deviations of the %d-day baseline",
			kpi, math.Abs(score), window.Size())
	} else {
		verdict.Reason = fmt.Sprintf("%s %s: observed %.2f vs %d-day mean %.2f (z=%.1f)",
			kpi, direction(kpi, observed-mean), observed, window.Size(), mean, score)
	}

	return verdict
}

// ClassifyRow produces one verdict per KPI for the day's row. Windows are
// keyed by KPI and must exclude the row's own day.
func (c *Classifier) ClassifyRow(row model.DailyKPIRow, windows map[model.KPI]model.BaselineWindow) []model.AnomalyVerdict {
	verdicts := make([]model.AnomalyVerdict, 0, len(model.AllKPIs()))
	for _, kpi := range model.AllKPIs() {
		verdicts = append(verdicts, c.Classify(row.Day, kpi, row.Value(kpi), windows[kpi]))
	}
	return verdicts
}

// direction phrases the deviation for humans. Severity is symmetric in
// magnitude; only the reason text carries direction. A cancellation spike is
// the operationally concerning direction for that KPI, a drop for the rest.
func direction(kpi model.KPI, delta float64) string {
	if delta < 0 {
		return "drop"
	}
	if kpi == model.KPICancellations {
		return "spike (concerning direction)"
	}
	return "spike"
}
