package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pawmate-labs/benchboard/internal/aggregate"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the leaderboard and CSV export from stored results",
		Long: `Rebuild the leaderboard from every stored result document and write
aggregates/leaderboard.json and aggregates/results.csv under the data
directory. The rebuild is always full; warnings list documents that were
skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(cmd.ErrOrStderr())

			st, err := newStore(ctx, logger)
			if err != nil {
				return err
			}
			policy, err := loadPolicy()
			if err != nil {
				return err
			}
			engine, err := aggregate.NewEngine(st, policy, logger)
			if err != nil {
				return err
			}

			doc, warnings, err := engine.Rebuild(ctx)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			if err := writeAggregates(doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt leaderboard with %d entries (%d warnings)\n",
				doc.TotalResults, len(warnings))
			return nil
		},
	}
}

// writeAggregates persists the leaderboard JSON and the CSV export next to
// each other under the data directory.
func writeAggregates(doc *aggregate.Document) error {
	dir := aggregatesDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create aggregates dir: %w", err)
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode leaderboard: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leaderboard.json"), append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write leaderboard: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "results.csv"))
	if err != nil {
		return fmt.Errorf("create csv export: %w", err)
	}
	if err := aggregate.WriteCSV(f, doc.Results); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close csv export: %w", err)
	}
	return nil
}
