package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirenlabs/opspulse/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidCapacity  = errors.New("window capacity must be positive")
	ErrInvalidKPIRow    = errors.New("invalid KPI row")
	ErrInvalidVerdict   = errors.New("invalid verdict")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateKPIRow(row *model.DailyKPIRow) error {
	if row.Day.IsZero() {
		return fmt.Errorf("%w: day is zero", ErrInvalidKPIRow)
	}
	if row.OrdersCount < 0 {
		return fmt.Errorf("%w: negative orders count", ErrInvalidKPIRow)
	}
	if row.Cancellations < 0 {
		return fmt.Errorf("%w: negative cancellations", ErrInvalidKPIRow)
	}
	if row.Revenue.IsNegative() {
		return fmt.Errorf("%w: negative revenue", ErrInvalidKPIRow)
	}
	if row.AOV.Valid != (row.OrdersCount > 0) {
		return fmt.Errorf("%w: AOV must be set exactly when orders exist", ErrInvalidKPIRow)
	}
	return nil
}

func validateVerdict(v *model.AnomalyVerdict) error {
	if v.Day.IsZero() {
		return fmt.Errorf("%w: day is zero", ErrInvalidVerdict)
	}
	if v.KPI == "" {
		return fmt.Errorf("%w: missing KPI", ErrInvalidVerdict)
	}
	switch v.Severity {
	case model.SeverityNormal, model.SeverityWatch, model.SeverityAnomaly, model.SeverityInsufficientData:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidVerdict, v.Severity)
	}
	return nil
}
