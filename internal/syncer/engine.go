package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/refsync/refsync/internal/config"
	"github.com/refsync/refsync/internal/gitapi"
	"github.com/refsync/refsync/internal/metastore"
	"github.com/refsync/refsync/internal/utils"
)

var (
	ErrSyncInFlight = errors.New("syncer: cycle already in flight")
)

// Remote is the object-store surface the engine reconciles against.
// *gitapi.Client is the production implementation.
type Remote interface {
	FetchTree(ctx context.Context, opts ...gitapi.CallOption) (*gitapi.TreeSnapshot, error)
	ReadRefHead(ctx context.Context, opts ...gitapi.CallOption) (string, error)
	CreateBlob(ctx context.Context, content []byte, encoding gitapi.BlobEncoding, opts ...gitapi.CallOption) (string, error)
	ReadBlob(ctx context.Context, sha string, opts ...gitapi.CallOption) ([]byte, error)
	CreateTree(ctx context.Context, entries []gitapi.TreeEntrySpec, baseTreeSHA string, opts ...gitapi.CallOption) (string, error)
	CreateCommit(ctx context.Context, message, treeSHA, parentSHA string, opts ...gitapi.CallOption) (string, error)
	UpdateRefHead(ctx context.Context, sha string, opts ...gitapi.CallOption) error
	CreateRefHead(ctx context.Context, sha string, opts ...gitapi.CallOption) error
	DownloadArchive(ctx context.Context, opts ...gitapi.CallOption) ([]byte, error)
}

var _ Remote = (*gitapi.Client)(nil)

// Engine keeps the local tree and the remote repository convergent. Exactly
// one cycle runs at a time; triggers arriving mid-cycle coalesce into at
// most one queued run. The metadata document is exclusively owned by the
// engine while it runs.
type Engine struct {
	root     string
	remote   Remote
	store    *metastore.Store
	resolver Resolver
	ignore   *IgnoreList
	interval time.Duration
	watcher  *Watcher

	muSync    sync.Mutex
	state     atomic.Int32
	trigger   chan struct{}
	localMemo map[string]*localFile
}

func New(cfg *config.Config, remote Remote, store *metastore.Store, resolver Resolver) *Engine {
	return &Engine{
		root:      cfg.DataDir,
		remote:    remote,
		store:     store,
		resolver:  resolver,
		ignore:    NewIgnoreList(cfg.DataDir),
		interval:  cfg.SyncInterval,
		trigger:   make(chan struct{}, 1),
		localMemo: make(map[string]*localFile),
	}
}

// SetWatcher attaches a filesystem watcher whose events mark paths dirty and
// trigger cycles. Must be called before Run.
func (e *Engine) SetWatcher(w *Watcher) {
	e.watcher = w
}

// State returns the stage of the in-flight cycle, or StateIdle.
func (e *Engine) State() CycleState {
	return CycleState(e.state.Load())
}

func (e *Engine) setState(s CycleState) {
	e.state.Store(int32(s))
}

// Trigger requests a cycle. Safe from any goroutine; triggers during an
// in-flight cycle coalesce.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run drives cycles until ctx is cancelled: one initial cycle, then one per
// interval tick or trigger. A timer (not a ticker) avoids queued ticks when
// a cycle outlasts the interval.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("sync start", "root", e.root, "interval", e.interval)

	if e.watcher != nil {
		go e.handleWatcherEvents(ctx)
	}

	if err := e.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial sync failed", "error", err)
	}

	timer := time.NewTimer(e.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
		case <-e.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := e.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInFlight) {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// failed cycles leave prior confirmed state untouched and are
			// retried on the next trigger
			slog.Error("sync cycle failed", "error", err)
		}
		timer.Reset(e.interval)
	}
}

// Sync runs one full cycle. A second concurrent call returns ErrSyncInFlight
// without starting a snapshot.
func (e *Engine) Sync(ctx context.Context) error {
	if !e.muSync.TryLock() {
		return ErrSyncInFlight
	}
	defer e.muSync.Unlock()
	defer e.setState(StateIdle)

	cycle := uuid.NewString()[:8]
	tstart := time.Now()

	e.setState(StateSnapshotting)
	snapshot, err := e.remote.FetchTree(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	locals, err := e.scanLocal(ctx)
	if err != nil {
		return fmt.Errorf("local listing: %w", err)
	}

	if e.store.Len() == 0 && len(locals) == 0 && !snapshot.Empty() {
		return e.bootstrap(ctx, snapshot)
	}

	e.setState(StateClassifying)
	plan, err := e.buildPlan(ctx, locals, snapshot)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}

	if len(plan.Conflicts) > 0 {
		e.setState(StateAwaitingResolution)
		slog.Info("awaiting conflict resolution", "cycle", cycle, "conflicts", len(plan.Conflicts))
		resolutions, err := e.resolver.Resolve(ctx, plan.Conflicts)
		if err != nil {
			// no partial metadata mutation happened for unresolved paths
			return fmt.Errorf("conflict resolution: %w", err)
		}
		if err := e.foldResolutions(plan, resolutions); err != nil {
			return err
		}
	}

	e.setState(StateExecuting)
	result, err := e.execute(ctx, snapshot, plan)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	e.setState(StatePersisting)
	if err := e.persist(result, plan); err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	e.logCycle(cycle, time.Since(tstart), plan, result)
	return nil
}

// foldResolutions turns each resolution into an upload carrying the resolved
// content, applied to the local file as well so both sides converge on it.
func (e *Engine) foldResolutions(plan *Plan, resolutions []ConflictResolution) error {
	for _, res := range resolutions {
		if err := utils.WriteFileAtomic(filepath.Join(e.root, res.Path), res.Content, 0o644); err != nil {
			return fmt.Errorf("apply resolution %s: %w", res.Path, err)
		}
		plan.Uploads[res.Path] = &uploadItem{Path: res.Path, Content: res.Content}
	}
	return nil
}

// scanLocal walks the tree and returns {path -> listing entry}. Content
// hashes are memoized by size+mtime so unchanged files are not re-read.
func (e *Engine) scanLocal(ctx context.Context) (map[string]*localFile, error) {
	state := make(map[string]*localFile)

	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, err := filepath.Rel(e.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && e.ignore.ShouldIgnore(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if e.ignore.ShouldIgnore(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if memo, ok := e.localMemo[rel]; ok && memo.Size == info.Size() && memo.ModTime.Equal(info.ModTime()) {
			state[rel] = memo
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}

		lf := &localFile{
			Path:    rel,
			SHA:     utils.GitBlobSHA(content),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		e.localMemo[rel] = lf
		state[rel] = lf
		return nil
	})
	if err != nil {
		return nil, err
	}

	for path := range e.localMemo {
		if _, ok := state[path]; !ok {
			delete(e.localMemo, path)
		}
	}
	return state, nil
}

// buildPlan classifies the union of paths and maps each class to one action.
// Both-changed candidates are tie-broken here: byte-identical content is
// adopted instead of raised as a conflict, so hash churn with identical
// content never surfaces to the resolution surface.
func (e *Engine) buildPlan(ctx context.Context, locals map[string]*localFile, snapshot *gitapi.TreeSnapshot) (*Plan, error) {
	paths := mapset.NewThreadUnsafeSet[string]()
	for path := range locals {
		paths.Add(path)
	}
	for path := range snapshot.Entries {
		paths.Add(path)
	}
	files := e.store.Files()
	for path := range files {
		paths.Add(path)
	}

	plan := newPlan()
	for _, path := range paths.ToSlice() {
		if e.ignore.ShouldIgnore(path) {
			continue
		}

		local := locals[path]
		var remote *gitapi.TreeEntry
		if entry, ok := snapshot.Entries[path]; ok {
			remote = &entry
		}
		var meta *metastore.FileMetadata
		if m, ok := files[path]; ok {
			meta = &m
		}

		switch change := classify(local, remote, meta); change {
		case ChangeUnchanged:
			plan.Unchanged++
		case ChangeLocalOnly, ChangeLocalNew:
			plan.Uploads[path] = &uploadItem{Path: path}
		case ChangeRemoteOnly, ChangeRemoteNew:
			plan.Downloads[path] = remote.SHA
		case ChangeRemoteDeleted:
			plan.DeleteLocal = append(plan.DeleteLocal, path)
		case ChangeLocalDeleted:
			plan.DeleteRemote = append(plan.DeleteRemote, path)
		case ChangePurge:
			plan.Purge = append(plan.Purge, path)
		case ChangeBothChanged:
			if err := e.tieBreak(ctx, plan, local, remote); err != nil {
				return nil, err
			}
		}
	}

	return plan, nil
}

// tieBreak compares local and remote content of a conflict candidate. The
// local git blob sha matching the remote entry sha already proves identical
// bytes; otherwise the remote blob is read and compared directly.
func (e *Engine) tieBreak(ctx context.Context, plan *Plan, local *localFile, remote *gitapi.TreeEntry) error {
	if local.SHA == remote.SHA {
		plan.Adopted[local.Path] = remote.SHA
		return nil
	}

	localContent, err := os.ReadFile(filepath.Join(e.root, local.Path))
	if err != nil {
		return fmt.Errorf("read %s: %w", local.Path, err)
	}
	remoteContent, err := e.remote.ReadBlob(ctx, remote.SHA)
	if err != nil {
		return err
	}

	if bytes.Equal(localContent, remoteContent) {
		plan.Adopted[local.Path] = remote.SHA
		return nil
	}

	plan.Conflicts = append(plan.Conflicts, ConflictFile{
		Path:          local.Path,
		LocalContent:  localContent,
		RemoteContent: remoteContent,
	})
	return nil
}

func (e *Engine) handleWatcherEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-e.watcher.Events():
			if !ok {
				return
			}
			e.handleFSEvent(event)
		}
	}
}

// handleFSEvent correlates a change notification against the metadata store.
// A just-downloaded path consumes its suppression flag instead of going
// dirty, so the engine does not react to its own write.
func (e *Engine) handleFSEvent(event FSEvent) {
	if e.ignore.ShouldIgnore(event.Path) {
		return
	}

	switch event.Op {
	case FSOpCreate, FSOpWrite:
		if e.store.ConsumeJustDownloaded(event.Path) {
			slog.Debug("suppressed own write", "path", event.Path)
			return
		}
		e.store.MarkDirty(event.Path, time.Now().UnixMilli())
		e.Trigger()

	case FSOpRemove:
		// absence is discovered by the next local listing
		e.Trigger()
	}
}

func (e *Engine) logCycle(cycle string, took time.Duration, plan *Plan, result *execResult) {
	if plan.Empty() {
		slog.Debug("sync cycle clean", "cycle", cycle, "took", took, "unchanged", plan.Unchanged)
		return
	}

	slog.Info("sync cycle",
		"cycle", cycle,
		"took", took,
		"uploads", len(result.uploaded),
		"downloads", len(result.downloaded),
		"localDeletes", len(result.deletedLocal),
		"remoteDeletes", len(plan.DeleteRemote),
		"conflicts", len(plan.Conflicts),
		"adopted", len(plan.Adopted),
		"unchanged", plan.Unchanged,
		"confirmed", result.uploadsConfirmed,
		"sent", humanizeBytes(result.bytesUp),
		"received", humanizeBytes(result.bytesDown),
	)
}
