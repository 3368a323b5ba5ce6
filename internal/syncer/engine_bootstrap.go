package syncer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/refsync/refsync/internal/gitapi"
	"github.com/refsync/refsync/internal/metastore"
	"github.com/refsync/refsync/internal/utils"
)

// bootstrap seeds an empty local tree from a non-empty remote with one
// archive download instead of a blob read per file. Only runs on the very
// first cycle (no metadata, no local files).
func (e *Engine) bootstrap(ctx context.Context, snapshot *gitapi.TreeSnapshot) error {
	slog.Info("bootstrapping local tree from archive", "files", len(snapshot.Entries))

	data, err := e.remote.DownloadArchive(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("bootstrap: open archive: %w", err)
	}

	now := time.Now().UnixMilli()
	written := 0
	var total int64

	for _, f := range zr.File {
		// archive paths carry a "<repo>-<sha>/" prefix
		rel := stripArchivePrefix(f.Name)
		if rel == "" || strings.HasSuffix(f.Name, "/") {
			continue
		}

		entry, ok := snapshot.Entries[rel]
		if !ok || e.ignore.ShouldIgnore(rel) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("bootstrap: open %s: %w", rel, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("bootstrap: read %s: %w", rel, err)
		}

		if err := utils.WriteFileAtomic(filepath.Join(e.root, rel), content, 0o644); err != nil {
			return fmt.Errorf("bootstrap: write %s: %w", rel, err)
		}

		e.store.Set(rel, metastore.FileMetadata{
			SHA:            entry.SHA,
			JustDownloaded: true,
			LastModified:   now,
		})
		written++
		total += int64(len(content))
	}

	e.store.SetLastSync(now)
	if err := e.store.Save(); err != nil {
		return err
	}

	slog.Info("bootstrap complete", "files", written, "received", humanizeBytes(total))
	return nil
}

func stripArchivePrefix(name string) string {
	if i := strings.IndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return ""
}
