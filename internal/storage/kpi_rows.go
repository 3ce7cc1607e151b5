package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/model"
)

// SaveKPIRow persists a daily KPI row, replacing any existing row for the
// same day. Retried runs re-produce identical rows, so replacement is safe.
func (s *SQLiteStorage) SaveKPIRow(ctx context.Context, row model.DailyKPIRow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateKPIRow(&row); err != nil {
		return err
	}
	return saveKPIRowTx(ctx, s.db, row)
}

func saveKPIRowTx(ctx context.Context, q querier, row model.DailyKPIRow) error {
	var aov any
	if row.AOV.Valid {
		aov = row.AOV.Decimal.String()
	}

	_, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_kpi (
			day, orders_count, cancellations, revenue, aov,
			revenue_items, revenue_payments
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		row.Day.Format(dayLayout),
		row.OrdersCount,
		row.Cancellations,
		row.Revenue.String(),
		aov,
		row.RevenueItems.String(),
		row.RevenuePayments.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save KPI row for %s: %w", row.Day.Format(dayLayout), err)
	}
	return nil
}

// GetKPIRow fetches the row for one day. Returns common.ErrNotFound when the
// day has never been aggregated.
func (s *SQLiteStorage) GetKPIRow(ctx context.Context, day time.Time) (*model.DailyKPIRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT day, orders_count, cancellations, revenue, aov,
		       revenue_items, revenue_payments
		FROM daily_kpi WHERE day = ?
	`, day.Format(dayLayout))

	result, err := scanKPIRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("KPI row for %s: %w", day.Format(dayLayout), common.ErrNotFound)
		}
		return nil, err
	}
	return result, nil
}

// GetKPIRows returns all rows with start <= day <= end in day order.
func (s *SQLiteStorage) GetKPIRows(ctx context.Context, start, end time.Time) ([]model.DailyKPIRow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, orders_count, cancellations, revenue, aov,
		       revenue_items, revenue_payments
		FROM daily_kpi
		WHERE day >= ? AND day <= ?
		ORDER BY day
	`, start.Format(dayLayout), end.Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query KPI rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []model.DailyKPIRow
	for rows.Next() {
		r, scanErr := scanKPIRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate KPI rows: %w", err)
	}
	return results, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKPIRow(sc rowScanner) (*model.DailyKPIRow, error) {
	var (
		dayStr        string
		revenueStr    string
		aovStr        sql.NullString
		itemsStr      string
		paymentsStr   string
		ordersCount   int
		cancellations int
	)

	if err := sc.Scan(&dayStr, &ordersCount, &cancellations, &revenueStr, &aovStr, &itemsStr, &paymentsStr); err != nil {
		return nil, err
	}

	day, err := time.Parse(dayLayout, dayStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored day %q: %w", dayStr, err)
	}

	revenue, err := decimal.NewFromString(revenueStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored revenue %q: %w", revenueStr, err)
	}
	items, err := decimal.NewFromString(itemsStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored items revenue %q: %w", itemsStr, err)
	}
	payments, err := decimal.NewFromString(paymentsStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored payments revenue %q: %w", paymentsStr, err)
	}

	result := model.DailyKPIRow{
		Day:             day,
		OrdersCount:     ordersCount,
		Cancellations:   cancellations,
		Revenue:         revenue,
		RevenueItems:    items,
		RevenuePayments: payments,
	}

	if aovStr.Valid {
		aov, aovErr := decimal.NewFromString(aovStr.String)
		if aovErr != nil {
			return nil, fmt.Errorf("failed to parse stored AOV %q: %w", aovStr.String, aovErr)
		}
		result.AOV = decimal.NullDecimal{Decimal: aov, Valid: true}
	}

	return &result, nil
}
