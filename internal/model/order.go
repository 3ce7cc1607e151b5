// Package model defines the core domain types for the daily ops engine.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the canonical lifecycle state of an order.
type OrderStatus string

// Canonical order statuses.
const (
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	StatusRefunded  OrderStatus = "refunded"
	StatusPending   OrderStatus = "pending"
)

// ParseOrderStatus maps a raw feed status onto the canonical set.
// Marketplace feeds report "unavailable" for orders that were accepted but
// could not be fulfilled; operationally those are cancellations.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch raw {
	case "delivered", "shipped", "invoiced", "approved", "completed":
		return StatusCompleted, true
	case "canceled", "cancelled", "unavailable":
		return StatusCancelled, true
	case "refunded":
		return StatusRefunded, true
	case "pending", "created", "processing":
		return StatusPending, true
	default:
		return "", false
	}
}

// OrderFact is the canonical per-order record produced by the normalizer.
// It is immutable once created and only lives until its day is aggregated.
type OrderFact struct {
	Day     time.Time // midnight in the reporting timezone
	OrderID string
	Status  OrderStatus

	// Revenue is the official revenue for the order: the payments total when
	// any payment references the order, otherwise zero. Always non-negative.
	Revenue decimal.Decimal

	// Audit amounts kept separately so revenue definitions can be compared.
	ItemsTotal    decimal.Decimal
	PaymentsTotal decimal.Decimal
	HasPayment    bool
}
