package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kirenlabs/opspulse/internal/model"
)

// SaveVerdicts persists the day's per-KPI verdicts, replacing any previous
// verdicts for the same (day, kpi).
func (s *SQLiteStorage) SaveVerdicts(ctx context.Context, verdicts []model.AnomalyVerdict) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveVerdictsTx(ctx, s.db, verdicts)
}

func saveVerdictsTx(ctx context.Context, q querier, verdicts []model.AnomalyVerdict) error {
	for _, v := range verdicts {
		if err := validateVerdict(&v); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `
			INSERT OR REPLACE INTO verdicts (
				day, kpi, observed, baseline_mean, baseline_stdev,
				score, severity, reason
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			v.Day.Format(dayLayout),
			string(v.KPI),
			v.Observed,
			v.BaselineMean,
			v.BaselineStdev,
			v.Score,
			string(v.Severity),
			v.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to save verdict for %s/%s: %w",
				v.Day.Format(dayLayout), v.KPI, err)
		}
	}
	return nil
}

// GetVerdicts returns the verdicts recorded for one day, in KPI order.
func (s *SQLiteStorage) GetVerdicts(ctx context.Context, day time.Time) ([]model.AnomalyVerdict, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, kpi, observed, baseline_mean, baseline_stdev,
		       score, severity, reason
		FROM verdicts WHERE day = ?
		ORDER BY kpi
	`, day.Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var verdicts []model.AnomalyVerdict
	for rows.Next() {
		var (
			v        model.AnomalyVerdict
			dayStr   string
			kpi      string
			severity string
		)
		if scanErr := rows.Scan(&dayStr, &kpi, &v.Observed, &v.BaselineMean,
			&v.BaselineStdev, &v.Score, &severity, &v.Reason); scanErr != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", scanErr)
		}

		parsed, parseErr := time.Parse(dayLayout, dayStr)
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse stored day %q: %w", dayStr, parseErr)
		}
		v.Day = parsed
		v.KPI = model.KPI(kpi)
		v.Severity = model.Severity(severity)
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verdicts: %w", err)
	}
	return verdicts, nil
}
