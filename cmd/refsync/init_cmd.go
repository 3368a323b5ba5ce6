package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/refsync/refsync/internal/config"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

// init writes a config file from the provided flags so the daemon can start
// without any of them.
func newInitCmd() *cobra.Command {
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a RefSync config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.Config{
				DataDir:    mustString(cmd, "datadir"),
				Owner:      mustString(cmd, "owner"),
				Repo:       mustString(cmd, "repo"),
				Branch:     mustString(cmd, "branch"),
				Token:      mustString(cmd, "token"),
				APIBaseURL: mustString(cmd, "api-url"),
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			path, _ := cmd.Flags().GetString("config")
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", path)
			return nil
		},
	}

	initCmd.Flags().SortFlags = false
	initCmd.Flags().StringP("datadir", "d", config.DefaultDataDir, "Local directory to keep in sync")
	initCmd.Flags().StringP("owner", "o", "", "Repository owner")
	initCmd.Flags().StringP("repo", "r", "", "Repository name")
	initCmd.Flags().StringP("branch", "b", "main", "Branch to sync against")
	initCmd.Flags().StringP("token", "t", "", "API access token")
	initCmd.Flags().String("api-url", config.DefaultAPIBaseURL, "Object store API base URL")
	return initCmd
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
