package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirenlabs/opspulse/internal/cli"
	"github.com/kirenlabs/opspulse/internal/pipeline"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daily pipeline for one target day",
		Long: `Fetch the day's raw records, aggregate them into a daily KPI row, classify
each KPI against its rolling baseline, and commit the results atomically.`,
		RunE: runDaily,
	}

	// Flags
	cmd.Flags().StringP("day", "d", "", "Target day (YYYY-MM-DD, required)")
	cmd.Flags().Bool("force", false, "Re-run a day that is already committed")
	cmd.Flags().Bool("export", true, "Emit the day's row to the report sink")
	_ = cmd.MarkFlagRequired("day")

	// Bind to viper
	_ = viper.BindPFlag("run.force", cmd.Flags().Lookup("force"))
	_ = viper.BindPFlag("run.export", cmd.Flags().Lookup("export"))

	return cmd
}

func runDaily(cmd *cobra.Command, _ []string) error {
	dayStr, _ := cmd.Flags().GetString("day")
	force := viper.GetBool("run.force")
	export := viper.GetBool("run.export")

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

	source, err := buildSource()
	if err != nil {
		return err
	}

	sink, err := buildSink(ctx, export)
	if err != nil {
		return fmt.Errorf("failed to create report sink: %w", err)
	}

	runner, err := pipeline.NewRunner(cfg, store, source, sink)
	if err != nil {
		return err
	}

	result, err := runner.RunDaily(ctx, day, force)
	if err != nil {
		if result == nil {
			return err
		}
		// Committed but not emitted: report the partial failure after
		// showing the day's summary.
		slog.Warn(cli.FormatWarning("report emission failed, re-emit later with 'opspulse report'"),
			"error", err)
	}

	fmt.Println(cli.RenderBox(
		fmt.Sprintf("%s Daily Ops: %s", cli.ChartIcon, day.Format("2006-01-02")),
		cli.RenderDailySummary(result.Row, result.Verdicts, result.Excluded, result.Duplicates),
	))

	return nil
}
