package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/refsync/refsync/internal/gitapi"
	"github.com/refsync/refsync/internal/metastore"
	"github.com/refsync/refsync/internal/syncer"
)

func init() {
	rootCmd.AddCommand(newOnceCmd())
}

// once runs a single sync cycle and exits, for cron-style usage.
func newOnceCmd() *cobra.Command {
	onceCmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single sync cycle and exit",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			remote, err := gitapi.New(cfg)
			if err != nil {
				return err
			}
			defer remote.Close()

			store, err := metastore.Open(filepath.Join(cfg.DataDir, metadataFile))
			if err != nil {
				return err
			}
			defer store.Close()

			engine := syncer.New(cfg, remote, store, syncer.KeepLocalResolver{})
			if err := engine.Sync(cmd.Context()); err != nil {
				slog.Error("sync cycle failed", "error", err)
				return err
			}
			return nil
		},
	}
	onceCmd.Flags().AddFlagSet(rootCmd.Flags())
	return onceCmd
}
