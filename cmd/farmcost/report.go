package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/farmcost/internal/store"
)

var reportRealTime bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report missing values in the reference tables",
	Long: "Count missing values per column of every reference table. " +
		"With --real-time, zero counts as missing in every numeric column and " +
		"only the totals and the worst table are printed.",
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportRealTime, "real-time", false,
		"Print the real-time summary instead of per-table counts")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := db.Report(ctx, store.ReportOptions{NumericZeroIsMissing: reportRealTime})
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if reportRealTime {
		info := report.Summary()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), info)
		}
		worst := "-"
		if info.TableWithMostMissingData != nil {
			worst = *info.TableWithMostMissingData
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Total missing: %d\nWorst table:   %s (%d)\n",
			info.TotalMissingData, worst, info.MaxMissingCount)
		return nil
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), report.Tables)
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "TABLE\tMISSING")
	for _, table := range report.Order {
		fmt.Fprintf(w, "%s\t%d\n", table, report.Tables[table].TotalMissing)
	}
	fmt.Fprintf(w, "TOTAL\t%d\n", report.TotalMissing)
	return w.Flush()
}
