package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPI identifies one of the tracked daily metrics.
type KPI string

// Tracked KPIs.
const (
	KPIOrdersCount   KPI = "orders_count"
	KPIRevenue       KPI = "revenue"
	KPICancellations KPI = "cancellations"
	KPIAOV           KPI = "aov"
)

// AllKPIs lists every tracked KPI in reporting order.
func AllKPIs() []KPI {
	return []KPI{KPIOrdersCount, KPIRevenue, KPICancellations, KPIAOV}
}

// DailyKPIRow is the aggregate produced once per calendar day.
// OrdersCount counts every non-excluded order placed that day regardless of
// final status; Cancellations is the subset with status cancelled and does
// not subtract from OrdersCount.
type DailyKPIRow struct {
	Day           time.Time
	OrdersCount   int
	Cancellations int
	Revenue       decimal.Decimal

	// AOV is Revenue/OrdersCount rounded to two places. Invalid (null) when
	// OrdersCount is zero.
	AOV decimal.NullDecimal

	// Audit columns: both revenue definitions, regardless of which one was
	// chosen as official.
	RevenueItems    decimal.Decimal
	RevenuePayments decimal.Decimal
}

// Value returns the row's value for a KPI as a float for baseline math.
// A null AOV reports as 0; quiet days legitimately contribute zeros to the
// baseline.
func (r DailyKPIRow) Value(kpi KPI) float64 {
	switch kpi {
	case KPIOrdersCount:
		return float64(r.OrdersCount)
	case KPIRevenue:
		return r.Revenue.InexactFloat64()
	case KPICancellations:
		return float64(r.Cancellations)
	case KPIAOV:
		if !r.AOV.Valid {
			return 0
		}
		return r.AOV.Decimal.InexactFloat64()
	default:
		return 0
	}
}
