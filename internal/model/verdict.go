package model

import "time"

// Severity classifies a day's KPI value relative to its baseline.
type Severity string

// Severity levels. InsufficientData is a distinct outcome, never a synonym
// for Normal.
const (
	SeverityNormal           Severity = "NORMAL"
	SeverityWatch            Severity = "WATCH"
	SeverityAnomaly          Severity = "ANOMALY"
	SeverityInsufficientData Severity = "INSUFFICIENT_DATA"
)

// AnomalyVerdict is the per-KPI classification for one day. Immutable;
// consumed by the report sink.
type AnomalyVerdict struct {
	Day           time.Time
	KPI           KPI
	Observed      float64
	BaselineMean  float64
	BaselineStdev float64

	// Score is the z-score of the observed value against the baseline.
	// Zero when the baseline has no variance or too little data.
	Score float64

	Severity Severity
	Reason   string
}
