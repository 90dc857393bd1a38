package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/farmcost/internal/refdata"
	"github.com/hyperengineering/farmcost/internal/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <kind|all>",
	Short: "Seed reference tables from the survey table",
	Long: "Insert one reference row per distinct survey value that has no row yet. " +
		"Existing rows are never changed, so ingest can be re-run safely. " +
		"Use \"all\" to ingest every kind in dependency order.",
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var kind *refdata.Kind
	if args[0] != "all" {
		k, err := refdata.Lookup(args[0])
		if err != nil {
			return fmt.Errorf("%w (known kinds: %v)", err, refdata.Names())
		}
		kind = k
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var results []types.IngestResult
	if kind == nil {
		results, err = db.IngestAll(ctx)
	} else {
		var res *types.IngestResult
		res, err = db.Ingest(ctx, kind)
		if res != nil {
			results = append(results, *res)
		}
	}

	// Completed runs are reported even when a later kind failed.
	if printErr := printIngestResults(cmd, results); printErr != nil {
		return printErr
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

func printIngestResults(cmd *cobra.Command, results []types.IngestResult) error {
	if jsonOutput {
		if results == nil {
			results = []types.IngestResult{}
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"results": results,
		})
	}
	if len(results) == 0 {
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "KIND\tSCANNED\tINSERTED\tEXISTING\tSKIPPED\tRUN")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			r.Kind, r.Scanned, r.Inserted, r.Existing(), r.Skipped, r.RunID)
	}
	return w.Flush()
}
