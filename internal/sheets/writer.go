package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/kirenlabs/opspulse/internal/model"
)

// Header of the wide daily row: KPI values first, then per-KPI verdict
// columns.
var headerRow = []any{
	"day", "orders_count", "revenue", "cancellations", "aov",
	"orders_severity", "orders_score", "orders_reason",
	"revenue_severity", "revenue_score", "revenue_reason",
	"cancellations_severity", "cancellations_score", "cancellations_reason",
	"aov_severity", "aov_score", "aov_reason",
}

// Writer appends one wide row per day to a Google Sheets spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets report sink.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// WriteDaily implements the ReportSink interface: the day's KPI values and
// the four verdicts as one wide row, appended after the header.
func (w *Writer) WriteDaily(ctx context.Context, row model.DailyKPIRow, verdicts []model.AnomalyVerdict) error {
	spreadsheetID, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	if err := w.ensureHeader(ctx, spreadsheetID); err != nil {
		return fmt.Errorf("failed to ensure header row: %w", err)
	}

	values := &sheets.ValueRange{Values: [][]any{buildWideRow(row, verdicts)}}
	_, err = w.service.Spreadsheets.Values.
		Append(spreadsheetID, w.config.SheetName+"!A1", values).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append daily row: %w", err)
	}

	w.logger.Info("daily row emitted",
		"spreadsheet_id", spreadsheetID,
		"day", row.Day.Format("2006-01-02"))
	return nil
}

func buildWideRow(row model.DailyKPIRow, verdicts []model.AnomalyVerdict) []any {
	aov := ""
	if row.AOV.Valid {
		aov = row.AOV.Decimal.String()
	}

	wide := []any{
		row.Day.Format("2006-01-02"),
		row.OrdersCount,
		row.Revenue.String(),
		row.Cancellations,
		aov,
	}

	byKPI := make(map[model.KPI]model.AnomalyVerdict, len(verdicts))
	for _, v := range verdicts {
		byKPI[v.KPI] = v
	}
	for _, kpi := range model.AllKPIs() {
		v := byKPI[kpi]
		wide = append(wide, string(v.Severity), fmt.Sprintf("%.2f", v.Score), v.Reason)
	}

	return wide
}

// ensureHeader writes the header row if the sheet is still empty.
func (w *Writer) ensureHeader(ctx context.Context, spreadsheetID string) error {
	resp, err := w.service.Spreadsheets.Values.
		Get(spreadsheetID, w.config.SheetName+"!A1:A1").
		Context(ctx).
		Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 {
		return nil
	}

	values := &sheets.ValueRange{Values: [][]any{headerRow}}
	_, err = w.service.Spreadsheets.Values.
		Update(spreadsheetID, w.config.SheetName+"!A1", values).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

// getOrCreateSpreadsheet returns the configured spreadsheet, creating one
// when no ID is configured.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (string, error) {
	if w.config.SpreadsheetID != "" {
		return w.config.SpreadsheetID, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: w.config.SpreadsheetName},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: w.config.SheetName}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create spreadsheet: %w", err)
	}

	w.logger.Info("created report spreadsheet",
		"spreadsheet_id", created.SpreadsheetId,
		"title", w.config.SpreadsheetName)
	return created.SpreadsheetId, nil
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		tokenSource = oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: config.RefreshToken})
	}

	service, err := sheets.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return service, nil
}
