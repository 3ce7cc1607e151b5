package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirenlabs/opspulse/internal/model"
)

func TestNormalize_BasicBatch(t *testing.T) {
	n := New(time.UTC)

	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "o1", Status: "delivered", Timestamp: "2017-01-12 10:30:00"},
			{OrderID: "o2", Status: "canceled", Timestamp: "2017-01-12 14:00:00"},
		},
		Items: []model.RawItem{
			{OrderID: "o1", Price: "40.00", FreightValue: "10.00"},
		},
		Payments: []model.RawPayment{
			{OrderID: "o1", Value: "50.00"},
		},
	}

	result := n.Normalize(batch)
	require.Len(t, result.Facts, 2)
	assert.Zero(t, result.Excluded)
	assert.Zero(t, result.Duplicates)

	o1 := result.Facts["o1"]
	assert.Equal(t, model.StatusCompleted, o1.Status)
	assert.True(t, o1.Revenue.Equal(decimal.RequireFromString("50.00")), "official revenue comes from payments")
	assert.True(t, o1.ItemsTotal.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, o1.HasPayment)
	assert.Equal(t, time.Date(2017, 1, 12, 0, 0, 0, 0, time.UTC), o1.Day)

	// No payment reference: revenue 0, status from the order row alone.
	o2 := result.Facts["o2"]
	assert.Equal(t, model.StatusCancelled, o2.Status)
	assert.True(t, o2.Revenue.IsZero())
	assert.False(t, o2.HasPayment)
}

func TestNormalize_ExcludesMalformedRecords(t *testing.T) {
	n := New(time.UTC)

	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "", Status: "delivered", Timestamp: "2017-01-12 10:30:00"},
			{OrderID: "o2", Status: "delivered", Timestamp: "not a timestamp"},
			{OrderID: "o3", Status: "teleported", Timestamp: "2017-01-12 10:30:00"},
			{OrderID: "o4", Status: "delivered", Timestamp: "2017-01-12 11:00:00"},
		},
	}

	result := n.Normalize(batch)
	assert.Equal(t, 3, result.Excluded, "missing id, bad timestamp, and unknown status are each excluded")
	require.Len(t, result.Facts, 1)
	assert.Contains(t, result.Facts, "o4")
}

func TestNormalize_DuplicateIDsLastWriteWins(t *testing.T) {
	n := New(time.UTC)

	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "o1", Status: "pending", Timestamp: "2017-01-12 08:00:00"},
			{OrderID: "o1", Status: "delivered", Timestamp: "2017-01-12 09:00:00"},
		},
	}

	result := n.Normalize(batch)
	assert.Equal(t, 1, result.Duplicates)
	assert.Zero(t, result.Excluded, "duplicates are a warning, not an exclusion")
	require.Len(t, result.Facts, 1)
	assert.Equal(t, model.StatusCompleted, result.Facts["o1"].Status)
}

func TestNormalize_DayBucketUsesReportingTimezone(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	n := New(saoPaulo)

	// 01:00 UTC on the 13th is still the 12th in Sao Paulo.
	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "o1", Status: "delivered", Timestamp: "2017-01-13T01:00:00Z"},
		},
	}

	result := n.Normalize(batch)
	require.Len(t, result.Facts, 1)
	fact := result.Facts["o1"]
	assert.Equal(t, 12, fact.Day.Day())
	assert.Equal(t, saoPaulo, fact.Day.Location())
}

func TestNormalize_UnavailableCountsAsCancelled(t *testing.T) {
	n := New(time.UTC)

	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "o1", Status: "unavailable", Timestamp: "2017-01-12 10:00:00"},
		},
	}

	result := n.Normalize(batch)
	require.Len(t, result.Facts, 1)
	assert.Equal(t, model.StatusCancelled, result.Facts["o1"].Status)
}

func TestNormalize_NegativePaymentExcluded(t *testing.T) {
	n := New(time.UTC)

	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "o1", Status: "delivered", Timestamp: "2017-01-12 10:00:00"},
		},
		Payments: []model.RawPayment{
			{OrderID: "o1", Value: "-10.00"},
		},
	}

	result := n.Normalize(batch)
	assert.Equal(t, 1, result.Excluded)
	assert.Empty(t, result.Facts)
}

func TestNormalize_SumsMultiplePaymentsAndItems(t *testing.T) {
	n := New(time.UTC)

	batch := model.RawBatch{
		Orders: []model.RawOrder{
			{OrderID: "o1", Status: "delivered", Timestamp: "2017-01-12 10:00:00"},
		},
		Items: []model.RawItem{
			{OrderID: "o1", Price: "10.00", FreightValue: "2.50"},
			{OrderID: "o1", Price: "20.00", FreightValue: "2.50"},
		},
		Payments: []model.RawPayment{
			{OrderID: "o1", Value: "15.00"},
			{OrderID: "o1", Value: "20.00"},
		},
	}

	result := n.Normalize(batch)
	fact := result.Facts["o1"]
	assert.True(t, fact.Revenue.Equal(decimal.RequireFromString("35.00")))
	assert.True(t, fact.ItemsTotal.Equal(decimal.RequireFromString("35.00")))
}
