package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/PriceSync/internal/pkg/docstore"
	"github.com/ManuelReschke/PriceSync/internal/pkg/env"
	"github.com/ManuelReschke/PriceSync/internal/pkg/snapshot"
)

var Version = "dev"

// openPaths and openSnapshots are replaced in tests.
var (
	openPaths = func(ctx context.Context) (*docstore.Paths, error) {
		return docstore.Select(ctx, docstore.LoadConfig())
	}
	openSnapshots = func(ctx context.Context) (snapshotStore, error) {
		cfg, err := snapshot.LoadConfig()
		if err != nil {
			return nil, err
		}
		if !cfg.IsEnabled() {
			return nil, fmt.Errorf("S3 snapshots are disabled; set S3_SNAPSHOTS_ENABLED and S3_BUCKET_NAME")
		}
		return snapshot.NewStore(ctx, cfg)
	}
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Operate the pricing catalog: sync snapshots, resolve prices, decode order metadata",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = env.SetupEnvFile()
		},
	}

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(metaCmd())
	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(encodeCmd())

	return rootCmd
}
