package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/kirenlabs/opspulse/internal/config"
	"github.com/kirenlabs/opspulse/internal/feed"
	"github.com/kirenlabs/opspulse/internal/pipeline"
	"github.com/kirenlabs/opspulse/internal/service"
	"github.com/kirenlabs/opspulse/internal/sheets"
	"github.com/kirenlabs/opspulse/internal/storage"
)

func engineConfig() pipeline.Config {
	return pipeline.Config{
		WindowSize:       viper.GetInt("engine.window_size"),
		MinWindow:        viper.GetInt("engine.min_window"),
		WatchThreshold:   viper.GetFloat64("engine.watch_threshold"),
		AnomalyThreshold: viper.GetFloat64("engine.anomaly_threshold"),
		Timezone:         viper.GetString("engine.timezone"),
		RunTimeout:       viper.GetDuration("engine.run_timeout"),
	}
}

func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDBPath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}
	return storage.NewSQLiteStorage(dbPath)
}

func buildSource() (service.RecordSource, error) {
	orders := config.ExpandPath(viper.GetString("feed.orders"))
	items := config.ExpandPath(viper.GetString("feed.items"))
	payments := config.ExpandPath(viper.GetString("feed.payments"))

	if orders == "" || items == "" {
		return nil, fmt.Errorf("feed.orders and feed.items must be configured")
	}
	return feed.NewCSVSource(orders, items, payments), nil
}

// buildSink returns the configured report sink, or nil when export is
// disabled. Committed days can always be re-emitted later with `opspulse
// report`.
func buildSink(ctx context.Context, export bool) (service.ReportSink, error) {
	if !export {
		return nil, nil
	}

	cfg := sheets.Config{
		ClientID:           viper.GetString("sheets.client_id"),
		ClientSecret:       viper.GetString("sheets.client_secret"),
		RefreshToken:       viper.GetString("sheets.refresh_token"),
		ServiceAccountPath: config.ExpandPath(viper.GetString("sheets.service_account_path")),
		SpreadsheetID:      viper.GetString("sheets.spreadsheet_id"),
		SpreadsheetName:    viper.GetString("sheets.spreadsheet_name"),
		SheetName:          viper.GetString("sheets.sheet_name"),
		RetryAttempts:      3,
		RetryDelay:         time.Second,
	}

	return sheets.NewWriter(ctx, cfg, slog.Default())
}

// parseDay parses a YYYY-MM-DD flag as midnight in the reporting timezone.
// Parsing in UTC would shift the run onto the previous calendar day for
// timezones west of UTC.
func parseDay(value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD: %w", value, err)
	}
	return day, nil
}
