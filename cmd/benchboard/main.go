// Command benchboard validates, stores and aggregates benchmark result
// submissions.
package main

import (
	"fmt"
	"os"

	"github.com/pawmate-labs/benchboard/internal/cli"
)

func main() {
	if err := cli.Execute(os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
