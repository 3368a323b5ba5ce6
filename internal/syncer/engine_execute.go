package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/refsync/refsync/internal/gitapi"
	"github.com/refsync/refsync/internal/metastore"
	"github.com/refsync/refsync/internal/utils"
)

// transferConcurrency bounds parallel blob creation and reads. Blobs for
// independent paths have no ordering dependency; the tree-create call is the
// single synchronization point that must see all blob shas.
const transferConcurrency = 4

type execResult struct {
	uploaded     map[string]string // path -> blob sha
	downloaded   map[string]string // path -> blob sha
	deletedLocal []string
	// uploadsConfirmed is false after a ref race: the commit was built but
	// the head moved, so uploads and remote deletes stay unconfirmed and
	// their metadata untouched.
	uploadsConfirmed bool
	commitSHA        string
	bytesUp          int64
	bytesDown        int64
}

// execute applies the plan: local writes and deletes first, then the single
// remote write transaction (blobs -> tree -> commit -> ref). The branch head
// is re-read immediately before the ref update; a mismatch aborts cleanly.
func (e *Engine) execute(ctx context.Context, snapshot *gitapi.TreeSnapshot, plan *Plan) (*execResult, error) {
	result := &execResult{
		uploaded:         make(map[string]string),
		downloaded:       make(map[string]string),
		uploadsConfirmed: true,
	}

	if err := e.executeDownloads(ctx, plan, result); err != nil {
		return nil, err
	}
	e.executeLocalDeletes(plan, result)

	if !plan.Mutates() {
		return result, nil
	}

	entries, err := e.createBlobs(ctx, snapshot, plan, result)
	if err != nil {
		return nil, err
	}

	treeSHA, err := e.remote.CreateTree(ctx, entries, snapshot.RootTreeSHA)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("sync: %d changed, %d deleted", len(plan.Uploads), len(plan.DeleteRemote))
	commitSHA, err := e.remote.CreateCommit(ctx, message, treeSHA, snapshot.HeadSHA)
	if err != nil {
		return nil, err
	}
	result.commitSHA = commitSHA

	// the single re-check: if the head moved underneath this cycle, skip the
	// ref update and abort cleanly. Not a failure, just a stale snapshot;
	// the next cycle observes the new head.
	head, err := e.remote.ReadRefHead(ctx)
	if err != nil {
		return nil, err
	}
	if head != snapshot.HeadSHA {
		slog.Info("branch head moved during cycle, aborting",
			"expected", snapshot.HeadSHA, "actual", head)
		result.uploadsConfirmed = false
		return result, nil
	}

	if snapshot.Empty() {
		err = e.remote.CreateRefHead(ctx, commitSHA)
	} else {
		err = e.remote.UpdateRefHead(ctx, commitSHA)
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) executeDownloads(ctx context.Context, plan *Plan, result *execResult) error {
	if len(plan.Downloads) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)
	var mu sync.Mutex

	for path, sha := range plan.Downloads {
		g.Go(func() error {
			content, err := e.remote.ReadBlob(gctx, sha)
			if err != nil {
				return err
			}
			if err := utils.WriteFileAtomic(filepath.Join(e.root, path), content, 0o644); err != nil {
				return err
			}

			mu.Lock()
			result.downloaded[path] = sha
			result.bytesDown += int64(len(content))
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) executeLocalDeletes(plan *Plan, result *execResult) {
	for _, path := range plan.DeleteLocal {
		err := os.Remove(filepath.Join(e.root, path))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("delete local failed", "path", path, "error", err)
			continue
		}
		result.deletedLocal = append(result.deletedLocal, path)
	}
}

// createBlobs uploads every changed path as a blob and returns the entry
// descriptors for the batched tree create, deletions included (nil sha).
func (e *Engine) createBlobs(ctx context.Context, snapshot *gitapi.TreeSnapshot, plan *Plan, result *execResult) ([]gitapi.TreeEntrySpec, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)
	var mu sync.Mutex
	entries := make([]gitapi.TreeEntrySpec, 0, len(plan.Uploads)+len(plan.DeleteRemote))

	for path, item := range plan.Uploads {
		g.Go(func() error {
			content := item.Content
			if content == nil {
				var err error
				content, err = os.ReadFile(filepath.Join(e.root, path))
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
			}

			sha, err := e.remote.CreateBlob(gctx, content, blobEncodingFor(path))
			if err != nil {
				return err
			}

			mu.Lock()
			entries = append(entries, gitapi.TreeEntrySpec{
				Path: path,
				Mode: entryMode(snapshot, path),
				Type: gitapi.TypeBlob,
				SHA:  &sha,
			})
			result.uploaded[path] = sha
			result.bytesUp += int64(len(content))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, path := range plan.DeleteRemote {
		entries = append(entries, gitapi.TreeEntrySpec{
			Path: path,
			Mode: entryMode(snapshot, path),
			Type: gitapi.TypeBlob,
			SHA:  nil,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func entryMode(snapshot *gitapi.TreeSnapshot, path string) string {
	if entry, ok := snapshot.Entries[path]; ok && entry.Mode != "" {
		return entry.Mode
	}
	return gitapi.ModeFile
}

// persist records confirmed transfers. Downloads and local deletes reflect
// already-committed remote state and always persist; uploads and remote
// deletes persist only when the ref actually advanced.
func (e *Engine) persist(result *execResult, plan *Plan) error {
	now := time.Now().UnixMilli()

	for path, sha := range result.downloaded {
		e.store.Set(path, metastore.FileMetadata{
			SHA:            sha,
			JustDownloaded: true,
			LastModified:   now,
		})
	}
	for _, path := range result.deletedLocal {
		e.store.MarkDeleted(path, now)
	}
	for path, sha := range plan.Adopted {
		e.store.Set(path, metastore.FileMetadata{SHA: sha, LastModified: now})
	}

	if result.uploadsConfirmed {
		for path, sha := range result.uploaded {
			e.store.Set(path, metastore.FileMetadata{SHA: sha, LastModified: now})
		}
		for _, path := range plan.DeleteRemote {
			e.store.MarkDeleted(path, now)
		}
	}

	for _, path := range plan.Purge {
		e.store.Delete(path)
	}

	e.store.SetLastSync(now)
	return e.store.Save()
}

func humanizeBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
