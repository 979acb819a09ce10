package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
)

// csvHeader is the published export contract; column order is part of it.
var csvHeader = []string{
	"tool_name",
	"tool_version",
	"target_model",
	"api_style",
	"pass_rate",
	"duration_minutes",
	"llm_model",
	"submission_timestamp",
}

// WriteCSV exports leaderboard rows in results order. pass_rate is fixed
// to three decimals and duration_minutes to two, matching the historical
// export files downstream spreadsheets already consume.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.ToolName,
			e.ToolVersion,
			e.TargetModel,
			e.APIStyle,
			fmt.Sprintf("%.3f", e.PassRate),
			fmt.Sprintf("%.2f", e.DurationMinutes),
			e.LLMModel,
			e.SubmittedTimestamp,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", e.RunID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
