package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pawmate-labs/benchboard/internal/aggregate"
	"github.com/pawmate-labs/benchboard/internal/pipeline"
)

func newProcessCmd() *cobra.Command {
	var auditFile string
	var actor string

	cmd := &cobra.Command{
		Use:   "process [file]",
		Short: "Run a submission through the full pipeline",
		Long: `Parse, validate, store and aggregate one result submission. Reads from
stdin when no file is given or the file is "-". After a successful store the
leaderboard and CSV export are rebuilt.

Exits non-zero when the submission ends in a failure state.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(cmd.ErrOrStderr())

			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(path)
			if err != nil {
				return err
			}

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

			var opts []pipeline.Option
			if auditFile != "" {
				opts = append(opts, pipeline.WithAuditLog(auditFile, actor))
			}
			p, err := pipeline.New(st, engine, logger, opts...)
			if err != nil {
				return err
			}

			out, err := p.Process(ctx, raw)
			if err != nil {
				return err
			}

			if out.State == pipeline.StateAggregated && out.Leaderboard != nil {
				if err := writeAggregates(out.Leaderboard); err != nil {
					return err
				}
			}

			summary := map[string]any{
				"submission_id": out.SubmissionID,
				"run_id":        out.RunID,
				"state":         out.State,
			}
			if out.Storage.Path != "" {
				summary["storage_path"] = out.Storage.Path
				summary["storage_status"] = out.Storage.Status
			}
			if out.Report != nil && !out.Report.Passed {
				summary["errors"] = out.Report.Errors
			}
			if len(out.Warnings) > 0 {
				summary["warnings"] = out.Warnings
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(summary); err != nil {
				return err
			}

			if pipeline.Failed(out.State) {
				return fmt.Errorf("submission ended in state %s", out.State)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&auditFile, "audit-file", "", "append pipeline audit events to this JSONL file")
	cmd.Flags().StringVar(&actor, "actor", "benchboard", "actor recorded in audit events")
	return cmd
}

func aggregatesDir() string {
	return filepath.Join(dataDir(), "aggregates")
}
