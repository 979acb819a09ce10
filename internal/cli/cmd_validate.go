package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pawmate-labs/benchboard/internal/schema"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a result document and print the report",
		Long: `Validate a result document against its declared schema version and print
the full validation report as JSON. Reads from stdin when no file is given
or the file is "-".

Exits non-zero when the document does not validate.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := readInput(path)
			if err != nil {
				return err
			}

			report, err := schema.Validate(raw)
			if err != nil {
				var parseErr *schema.ParseError
				var versionErr *schema.UnsupportedVersionError
				if errors.As(err, &parseErr) || errors.As(err, &versionErr) {
					return err
				}
				return fmt.Errorf("validate: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Passed {
				return fmt.Errorf("document failed validation with %d error(s)", len(report.Errors))
			}
			return nil
		},
	}
}
