package model

// Raw feed records as delivered by the ingestion layer. Shapes are loose on
// purpose: all schema validation happens in the normalizer, at one boundary.

// RawOrder is one order row from the input feed. Timestamp is the purchase
// timestamp as a string; parsing and timezone handling belong to the
// normalizer.
type RawOrder struct {
	OrderID   string
	Status    string
	Timestamp string
}

// RawItem is one order line item. Informational for the current KPI set
// except as the audit revenue definition (price + freight).
type RawItem struct {
	OrderID      string
	Price        string
	FreightValue string
}

// RawPayment is one payment row referencing an order.
type RawPayment struct {
	OrderID string
	Value   string
}

// RawBatch is everything the feed delivers for one target day.
type RawBatch struct {
	Orders   []RawOrder
	Items    []RawItem
	Payments []RawPayment
}
