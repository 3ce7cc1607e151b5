// Package aggregate groups canonical order facts by calendar day and
// computes the daily KPI row.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirenlabs/opspulse/internal/model"
)

// BuildRow computes the DailyKPIRow for a target day from a fact set.
//
// It is a pure, deterministic function of its input: facts are folded in
// sorted order-id order so re-running on the same fact set yields identical
// results, which keeps retried daily jobs idempotent. Facts bucketed to
// other days are ignored.
func BuildRow(day time.Time, facts map[string]model.OrderFact) model.DailyKPIRow {
	ids := make([]string, 0, len(facts))
	for id, fact := range facts {
		if fact.Day.Equal(day) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	row := model.DailyKPIRow{
		Day:             day,
		Revenue:         decimal.Zero,
		RevenueItems:    decimal.Zero,
		RevenuePayments: decimal.Zero,
	}

	for _, id := range ids {
		fact := facts[id]

		// orders_count measures demand: every order attempted that day
		// counts, whatever its final status.
		row.OrdersCount++

		switch fact.Status {
		case model.StatusCompleted:
			row.Revenue = row.Revenue.Add(fact.Revenue)
		case model.StatusCancelled:
			row.Cancellations++
		}

		row.RevenueItems = row.RevenueItems.Add(fact.ItemsTotal)
		row.RevenuePayments = row.RevenuePayments.Add(fact.PaymentsTotal)
	}

	if row.OrdersCount > 0 {
		aov := row.Revenue.Div(decimal.NewFromInt(int64(row.OrdersCount))).Round(2)
		row.AOV = decimal.NullDecimal{Decimal: aov, Valid: true}
	}

	return row
}

// ZeroRow returns the row for a day with no orders: all counts zero and a
// null AOV. Backfills emit these for quiet days so the calendar spine stays
// contiguous and baselines see the quiet days.
func ZeroRow(day time.Time) model.DailyKPIRow {
	return BuildRow(day, nil)
}
