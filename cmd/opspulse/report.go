package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirenlabs/opspulse/internal/cli"
	"github.com/kirenlabs/opspulse/internal/common"
	"github.com/kirenlabs/opspulse/internal/service"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show or re-emit a committed day's KPI row and verdicts",
		Long: `Read a committed day from the historical store and display it. With
--export, re-emit the day's wide row to the report sink (useful when a run
committed but the sink was unavailable).`,
		RunE: runReport,
	}

	cmd.Flags().StringP("day", "d", "", "Day to report (YYYY-MM-DD, required)")
	cmd.Flags().Bool("export", false, "Re-emit the day to the report sink")
	_ = cmd.MarkFlagRequired("day")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	dayStr, _ := cmd.Flags().GetString("day")
	export, _ := cmd.Flags().GetBool("export")

	cfg := engineConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	day, err := parseDay(dayStr, cfg.Location())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	store, err := openStorage()
	if err != nil {
		return fmt.Errorf("failed to open historical store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate historical store: %w", err)
	}

	row, err := store.GetKPIRow(ctx, day)
	if err != nil {
		return err
	}
	verdicts, err := store.GetVerdicts(ctx, day)
	if err != nil {
		return err
	}
	run, err := store.GetRun(ctx, day)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderBox(
		fmt.Sprintf("%s Daily Ops: %s", cli.ChartIcon, day.Format("2006-01-02")),
		cli.RenderDailySummary(*row, verdicts, run.Excluded, run.Duplicates),
	))

	if !export {
		return nil
	}

	sink, err := buildSink(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to create report sink: %w", err)
	}

	err = common.WithRetry(ctx, func() error {
		return sink.WriteDaily(ctx, *row, verdicts)
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return fmt.Errorf("failed to emit day: %w", err)
	}

	if err := store.MarkRunEmitted(ctx, day); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess("Day emitted to report sink"))
	return nil
}
