package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/refsync/refsync/internal/config"
	"github.com/refsync/refsync/internal/utils"
	"github.com/refsync/refsync/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "refsync",
	Short:   "RefSync keeps a local directory in step with a git object repository",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig(cmd)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		showHeader(cfg)

		defer slog.Info("Bye!")
		if err := runDaemon(cmd.Context(), cfg); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("daemon stopped", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("datadir", "d", config.DefaultDataDir, "Local directory to keep in sync")
	rootCmd.Flags().StringP("owner", "o", "", "Repository owner")
	rootCmd.Flags().StringP("repo", "r", "", "Repository name")
	rootCmd.Flags().StringP("branch", "b", "main", "Branch to sync against")
	rootCmd.Flags().StringP("token", "t", "", "API access token")
	rootCmd.Flags().String("api-url", config.DefaultAPIBaseURL, "Object store API base URL")
	rootCmd.Flags().Duration("interval", config.DefaultSyncInterval, "Sync cycle interval")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "RefSync config file")
}

func main() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	handler := slog.Handler(stdoutHandler)
	if file := openLogFile(config.DefaultLogFilePath); file != nil {
		defer file.Close()
		fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = utils.NewMultiLogHandler(stdoutHandler, fileHandler)
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openLogFile returns nil when the log file cannot be opened; the daemon
// then logs to stdout only.
func openLogFile(path string) *os.File {
	if err := utils.EnsureParent(path); err != nil {
		fmt.Fprintf(os.Stderr, "log directory: %v\n", err)
		return nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file: %v\n", err)
		return nil
	}
	return file
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".refsync"))
		viper.AddConfigPath(filepath.Join(home, ".config/refsync"))
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("data_dir", cmd.Flags().Lookup("datadir"))
	viper.BindPFlag("owner", cmd.Flags().Lookup("owner"))
	viper.BindPFlag("repo", cmd.Flags().Lookup("repo"))
	viper.BindPFlag("branch", cmd.Flags().Lookup("branch"))
	viper.BindPFlag("token", cmd.Flags().Lookup("token"))
	viper.BindPFlag("api_base_url", cmd.Flags().Lookup("api-url"))
	viper.BindPFlag("sync_interval", cmd.Flags().Lookup("interval"))

	viper.SetEnvPrefix("REFSYNC")
	viper.AutomaticEnv()

	return nil
}

func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{
		Path:         viper.ConfigFileUsed(),
		DataDir:      viper.GetString("data_dir"),
		Owner:        viper.GetString("owner"),
		Repo:         viper.GetString("repo"),
		Branch:       viper.GetString("branch"),
		Token:        viper.GetString("token"),
		APIBaseURL:   viper.GetString("api_base_url"),
		SyncInterval: viper.GetDuration("sync_interval"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func showHeader(cfg *config.Config) {
	cyan := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	fmt.Printf("%s %s\n", cyan(version.AppName), version.Short())
	fmt.Printf("%s -> %s@%s\n\n", cfg.DataDir, cfg.RepoSlug(), cfg.Branch)
}
