package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/refsync/refsync/internal/config"
	"github.com/refsync/refsync/internal/gitapi"
	"github.com/refsync/refsync/internal/metastore"
	"github.com/refsync/refsync/internal/syncer"
)

// metadataFile lives inside the data dir under a path the engine ignores.
const metadataFile = ".refsync/metadata.json"

// runDaemon wires the remote client, metadata store, watcher and sync engine
// together and blocks until ctx is cancelled.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	slog.Info("refsync", "repo", cfg.RepoSlug(), "branch", cfg.Branch, "interval", cfg.SyncInterval)

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

	watcher, err := syncer.NewWatcher(cfg.DataDir)
	if err != nil {
		// degraded mode: interval cycles still converge without notifications
		slog.Warn("file watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
		go func() {
			err := watcher.Start(ctx)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, syncer.ErrWatcherClosed) {
				slog.Error("file watcher stopped", "error", err)
			}
		}()
		engine.SetWatcher(watcher)
	}

	return engine.Run(ctx)
}
