// Package cli provides the cobra command tree for benchboard.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pawmate-labs/benchboard/internal/aggregate"
	"github.com/pawmate-labs/benchboard/internal/platform/env"
	"github.com/pawmate-labs/benchboard/internal/platform/objectstore"
	"github.com/pawmate-labs/benchboard/internal/platform/postgres"
	"github.com/pawmate-labs/benchboard/internal/store"
)

// GlobalOpts holds flags parsed before subcommand dispatch.
type GlobalOpts struct {
	Backend string
	Verbose bool
}

var globalOpts GlobalOpts

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "benchboard",
		Short: "Benchmark result validation, storage and leaderboard pipeline",
		Long: `benchboard ingests benchmark result submissions, validates them against
the versioned result schema, stores them in a time-partitioned layout keyed
by run id, and rebuilds the leaderboard views and CSV export.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&globalOpts.Backend, "backend", "fs", "storage backend: fs, minio or postgres")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(
		newValidateCmd(),
		newProcessCmd(),
		newRebuildCmd(),
	)
	return rootCmd
}

// Execute runs the command tree. Errors come back to main for printing.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}

func newLogger(stderr io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if globalOpts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// newStore builds the backend named by --backend from environment config.
func newStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	switch globalOpts.Backend {
	case "fs":
		return store.NewFSWithLogger(dataDir(), logger), nil
	case "minio":
		cfg, err := objectstore.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		client, err := objectstore.NewMinIOClient(cfg)
		if err != nil {
			return nil, err
		}
		if err := objectstore.EnsureBuckets(ctx, client, cfg); err != nil {
			return nil, err
		}
		st, err := store.NewMinioWithClient(client, cfg.BucketSubmissions)
		if err != nil {
			return nil, err
		}
		st.SetLogger(logger)
		return st, nil
	case "postgres":
		cfg, err := postgres.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		db, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown backend %q (want fs, minio or postgres)", globalOpts.Backend)
}

func dataDir() string {
	return env.String("BENCHBOARD_DATA_DIR", "data")
}

func loadPolicy() (aggregate.Policy, error) {
	path := env.String("BENCHBOARD_POLICY_FILE", "")
	if path == "" {
		return aggregate.DefaultPolicy(), nil
	}
	return aggregate.LoadPolicy(path)
}

func readInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
