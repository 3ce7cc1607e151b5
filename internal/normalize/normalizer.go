// Package normalize validates raw feed records and reshapes them into
// canonical per-order facts. All schema flexibility in the raw feed stops at
// this boundary.
package normalize

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/model"
)

// Timestamp layouts accepted from the feed, tried in order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Normalizer turns raw order/item/payment records into OrderFacts. It is a
// pure transformation: no side effects beyond logging data-quality warnings.
type Normalizer struct {
	// Location is the fixed reporting timezone used to bucket order
	// timestamps into calendar days.
	Location *time.Location
}

// New creates a normalizer for the given reporting timezone.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{Location: loc}
}

// Result holds the canonical facts for a batch plus data-quality counters.
type Result struct {
	Facts      map[string]model.OrderFact
	Excluded   int
	Duplicates int
}

// Normalize validates a raw batch and produces one OrderFact per order.
// Malformed records (missing identifier, unparseable timestamp, unknown
// status) are excluded and counted, never fatal. Duplicate order ids resolve
// last-write-wins with a warning.
func (n *Normalizer) Normalize(batch model.RawBatch) Result {
	itemTotals := n.sumItems(batch.Items)
	paymentTotals := n.sumPayments(batch.Payments)

	facts := make(map[string]model.OrderFact, len(batch.Orders))
	result := Result{}

	for _, raw := range batch.Orders {
		fact, err := n.normalizeOrder(raw, itemTotals, paymentTotals)
		if err != nil {
			slog.Debug("excluding raw order", "order_id", raw.OrderID, "error", err)
			result.Excluded++
			continue
		}

		if _, exists := facts[fact.OrderID]; exists {
			slog.Warn("duplicate order id in batch, keeping last occurrence",
				"order_id", fact.OrderID)
			result.Duplicates++
		}
		facts[fact.OrderID] = fact
	}

	result.Facts = facts
	return result
}

func (n *Normalizer) normalizeOrder(raw model.RawOrder, items, payments map[string]decimal.Decimal) (model.OrderFact, error) {
	if raw.OrderID == "" {
		return model.OrderFact{}, common.NewValidationError("order_id", "is missing")
	}

	ts, err := n.parseTimestamp(raw.Timestamp)
	if err != nil {
		return model.OrderFact{}, err
	}

	status, ok := model.ParseOrderStatus(raw.Status)
	if !ok {
		return model.OrderFact{}, common.NewValidationError("status", "unrecognized: "+raw.Status)
	}

	itemsTotal := items[raw.OrderID]
	paymentsTotal, hasPayment := payments[raw.OrderID]

	// Official revenue comes from payments. An order with no payment
	// reference is revenue 0 with status taken from the order row alone;
	// the items total (price + freight) is carried as an audit amount only.
	revenue := decimal.Zero
	if hasPayment {
		revenue = paymentsTotal
	}
	if revenue.IsNegative() {
		return model.OrderFact{}, common.NewValidationError("revenue", "is negative")
	}

	// An order belongs to exactly one calendar day: its placement day in the
	// reporting timezone.
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, n.Location)

	return model.OrderFact{
		OrderID:       raw.OrderID,
		Day:           day,
		Status:        status,
		Revenue:       revenue,
		ItemsTotal:    itemsTotal,
		PaymentsTotal: paymentsTotal,
		HasPayment:    hasPayment,
	}, nil
}

func (n *Normalizer) parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, common.NewValidationError("timestamp", "is missing")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, n.Location); err == nil {
			return ts.In(n.Location), nil
		}
	}
	return time.Time{}, common.NewValidationError("timestamp", "unparseable: "+raw)
}

// sumItems totals price + freight per order. Items missing an order id or
// carrying unparseable amounts are skipped; they only feed the audit
// revenue column.
func (n *Normalizer) sumItems(items []model.RawItem) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		if item.OrderID == "" {
			continue
		}
		total := parseAmount(item.Price).Add(parseAmount(item.FreightValue))
		totals[item.OrderID] = totals[item.OrderID].Add(total)
	}
	return totals
}

func (n *Normalizer) sumPayments(payments []model.RawPayment) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal, len(payments))
	for _, p := range payments {
		if p.OrderID == "" {
			slog.Warn("payment without order reference, skipping")
			continue
		}
		totals[p.OrderID] = totals[p.OrderID].Add(parseAmount(p.Value))
	}
	return totals
}

func parseAmount(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Warn("unparseable amount, treating as zero", "value", raw)
		return decimal.Zero
	}
	return d
}
