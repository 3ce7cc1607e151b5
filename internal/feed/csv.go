// Package feed implements the raw record input feed over marketplace CSV
// exports (orders, order items, payments).
package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/model"
)

// CSVSource serves per-day raw batches from three CSV files. Files are
// loaded once on first fetch and indexed by purchase date; the payments file
// is optional. The feed routes rows to days by timestamp prefix only, and
// all schema validation stays in the normalizer.
type CSVSource struct {
	ordersPath   string
	itemsPath    string
	paymentsPath string

	once    sync.Once
	loadErr error
	byDay   map[string]*model.RawBatch
}

// NewCSVSource creates a feed over the given CSV files. paymentsPath may be
// empty.
func NewCSVSource(ordersPath, itemsPath, paymentsPath string) *CSVSource {
	return &CSVSource{
		ordersPath:   ordersPath,
		itemsPath:    itemsPath,
		paymentsPath: paymentsPath,
	}
}

// FetchDay returns the raw batch for one calendar day. Days with no records
// return common.ErrNoRecords.
func (s *CSVSource) FetchDay(ctx context.Context, day time.Time) (model.RawBatch, error) {
	if err := ctx.Err(); err != nil {
		return model.RawBatch{}, err
	}

	s.once.Do(s.load)
	if s.loadErr != nil {
		return model.RawBatch{}, s.loadErr
	}

	batch, ok := s.byDay[day.Format("2006-01-02")]
	if !ok {
		return model.RawBatch{}, fmt.Errorf("%s: %w", day.Format("2006-01-02"), common.ErrNoRecords)
	}
	return *batch, nil
}

func (s *CSVSource) load() {
	orderDays, err := s.loadOrders()
	if err != nil {
		s.loadErr = err
		return
	}

	if err := s.loadItems(orderDays); err != nil {
		s.loadErr = err
		return
	}

	if s.paymentsPath != "" {
		if err := s.loadPayments(orderDays); err != nil {
			s.loadErr = err
			return
		}
	}
}

// loadOrders reads the orders file and returns the order id → day index used
// to route items and payments.
func (s *CSVSource) loadOrders() (map[string]string, error) {
	s.byDay = make(map[string]*model.RawBatch)
	orderDays := make(map[string]string)

	err := s.readFile(s.ordersPath, []string{"order_id", "order_status", "order_purchase_timestamp"}, func(get func(string) string) {
		order := model.RawOrder{
			OrderID:   get("order_id"),
			Status:    get("order_status"),
			Timestamp: get("order_purchase_timestamp"),
		}

		dayKey, ok := dayOf(order.Timestamp)
		if !ok {
			slog.Debug("order row with unroutable timestamp, dropping", "order_id", order.OrderID)
			return
		}

		batch := s.batchFor(dayKey)
		batch.Orders = append(batch.Orders, order)
		if order.OrderID != "" {
			orderDays[order.OrderID] = dayKey
		}
	})
	if err != nil {
		return nil, err
	}
	return orderDays, nil
}

func (s *CSVSource) loadItems(orderDays map[string]string) error {
	return s.readFile(s.itemsPath, []string{"order_id", "price", "freight_value"}, func(get func(string) string) {
		item := model.RawItem{
			OrderID:      get("order_id"),
			Price:        get("price"),
			FreightValue: get("freight_value"),
		}
		if dayKey, ok := orderDays[item.OrderID]; ok {
			batch := s.batchFor(dayKey)
			batch.Items = append(batch.Items, item)
		}
	})
}

func (s *CSVSource) loadPayments(orderDays map[string]string) error {
	return s.readFile(s.paymentsPath, []string{"order_id", "payment_value"}, func(get func(string) string) {
		payment := model.RawPayment{
			OrderID: get("order_id"),
			Value:   get("payment_value"),
		}
		if dayKey, ok := orderDays[payment.OrderID]; ok {
			batch := s.batchFor(dayKey)
			batch.Payments = append(batch.Payments, payment)
		}
	})
}

// readFile streams one CSV file, validating that the required headers exist
// and calling row with a column accessor for each record.
func (s *CSVSource) readFile(path string, required []string, row func(get func(string) string)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open feed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return fmt.Errorf("%w: feed file %s missing column %q", common.ErrInvalidConfig, path, name)
		}
	}

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", path, readErr)
		}

		row(func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		})
	}
}

func (s *CSVSource) batchFor(dayKey string) *model.RawBatch {
	batch, ok := s.byDay[dayKey]
	if !ok {
		batch = &model.RawBatch{}
		s.byDay[dayKey] = batch
	}
	return batch
}

// dayOf extracts the date prefix of a feed timestamp. Routing only; the
// normalizer owns real timestamp parsing and timezone handling.
func dayOf(timestamp string) (string, bool) {
	if len(timestamp) < 10 {
		return "", false
	}
	day := timestamp[:10]
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return "", false
	}
	return day, true
}
