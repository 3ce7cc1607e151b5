package cli

import (
	"fmt"
	"strings"

	"github.com/kirenlabs/opspulse/internal/model"
)

// RenderDailySummary renders one day's KPI row and verdicts as box content,
// one line per fact, one line per flagged KPI.
func RenderDailySummary(row model.DailyKPIRow, verdicts []model.AnomalyVerdict, excluded, duplicates int) string {
	aov := "n/a"
	if row.AOV.Valid {
		aov = row.AOV.Decimal.String()
	}

	lines := []string{
		fmt.Sprintf("Orders: %d | Revenue: %s | Cancellations: %d | AOV: %s",
			row.OrdersCount, row.Revenue.StringFixed(2), row.Cancellations, aov),
	}

	if excluded > 0 || duplicates > 0 {
		lines = append(lines, SubtleStyle.Render(
			fmt.Sprintf("Data quality: %d excluded, %d duplicate record(s)", excluded, duplicates)))
	}

	flagged := 0
	for _, v := range verdicts {
		switch v.Severity {
		case model.SeverityNormal:
			continue
		case model.SeverityInsufficientData:
			lines = append(lines, SubtleStyle.Render(
				fmt.Sprintf("- %s: %s (%s)", v.KPI, v.Severity, v.Reason)))
		case model.SeverityWatch:
			flagged++
			lines = append(lines, WarningStyle.Render(
				fmt.Sprintf("- %s: %s (%s)", v.KPI, v.Severity, v.Reason)))
		case model.SeverityAnomaly:
			flagged++
			lines = append(lines, ErrorStyle.Render(
				fmt.Sprintf("- %s: %s (%s)", v.KPI, v.Severity, v.Reason)))
		}
	}

	if flagged == 0 {
		lines = append(lines, SuccessStyle.Render("Signals: none"))
	}

	return strings.Join(lines, "\n")
}
