package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirenlabs/opspulse/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fact(id string, d time.Time, status model.OrderStatus, revenue string) model.OrderFact {
	return model.OrderFact{
		OrderID: id,
		Day:     d,
		Status:  status,
		Revenue: decimal.RequireFromString(revenue),
	}
}

func TestBuildRow_MixedStatuses(t *testing.T) {
	d := day(2017, time.January, 12)
	facts := map[string]model.OrderFact{
		"o1": fact("o1", d, model.StatusCompleted, "50"),
		"o2": fact("o2", d, model.StatusCancelled, "0"),
		"o3": fact("o3", d, model.StatusCompleted, "30"),
	}

	row := BuildRow(d, facts)

	assert.Equal(t, 3, row.OrdersCount, "every non-excluded order counts toward demand")
	assert.True(t, row.Revenue.Equal(decimal.NewFromInt(80)), "only completed orders contribute revenue")
	assert.Equal(t, 1, row.Cancellations)
	require.True(t, row.AOV.Valid)
	assert.Equal(t, "26.67", row.AOV.Decimal.String())
}

func TestBuildRow_CancellationsDoNotSubtract(t *testing.T) {
	d := day(2017, time.January, 12)
	facts := map[string]model.OrderFact{
		"o1": fact("o1", d, model.StatusCancelled, "0"),
		"o2": fact("o2", d, model.StatusCancelled, "0"),
	}

	row := BuildRow(d, facts)
	assert.Equal(t, 2, row.OrdersCount)
	assert.Equal(t, 2, row.Cancellations)
}

func TestBuildRow_AOVNullExactlyWhenNoOrders(t *testing.T) {
	d := day(2017, time.January, 12)

	empty := BuildRow(d, nil)
	assert.Zero(t, empty.OrdersCount)
	assert.False(t, empty.AOV.Valid, "AOV is null when orders_count is zero, not an error")

	nonEmpty := BuildRow(d, map[string]model.OrderFact{
		"o1": fact("o1", d, model.StatusPending, "0"),
	})
	assert.Equal(t, 1, nonEmpty.OrdersCount)
	require.True(t, nonEmpty.AOV.Valid)
	assert.True(t, nonEmpty.AOV.Decimal.IsZero())
}

func TestBuildRow_IgnoresOtherDays(t *testing.T) {
	d := day(2017, time.January, 12)
	facts := map[string]model.OrderFact{
		"o1": fact("o1", d, model.StatusCompleted, "10"),
		"o2": fact("o2", day(2017, time.January, 13), model.StatusCompleted, "99"),
	}

	row := BuildRow(d, facts)
	assert.Equal(t, 1, row.OrdersCount)
	assert.True(t, row.Revenue.Equal(decimal.NewFromInt(10)))
}

func TestBuildRow_Idempotent(t *testing.T) {
	d := day(2017, time.January, 12)
	facts := map[string]model.OrderFact{
		"b": fact("b", d, model.StatusCompleted, "10.10"),
		"a": fact("a", d, model.StatusCompleted, "20.20"),
		"c": fact("c", d, model.StatusRefunded, "5.00"),
		"d": fact("d", d, model.StatusCancelled, "0"),
	}

	first := BuildRow(d, facts)
	second := BuildRow(d, facts)

	// Facts are folded in sorted id order, so retried aggregation yields an
	// identical row down to the decimal representation.
	assert.Equal(t, first, second)
}

func TestZeroRow(t *testing.T) {
	d := day(2017, time.January, 12)
	row := ZeroRow(d)

	assert.Equal(t, d, row.Day)
	assert.Zero(t, row.OrdersCount)
	assert.Zero(t, row.Cancellations)
	assert.True(t, row.Revenue.IsZero())
	assert.False(t, row.AOV.Valid)
}
