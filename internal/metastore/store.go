package metastore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"github.com/refsync/refsync/internal/utils"
)

var (
	ErrStoreClosed = errors.New("metastore: store closed")
	ErrStoreLocked = errors.New("metastore: document locked by another process")
)

// Store owns the metadata document. All saves funnel through one ordered
// write queue so writes never interleave and the document on disk always
// reflects a fully-applied sequence of updates. An OS file lock keeps other
// processes away from the document while the store is open.
type Store struct {
	path string

	mu  sync.RWMutex
	doc *Document

	flk    *flock.Flock
	saveCh chan *saveJob
	wg     sync.WaitGroup
	closed bool
}

type saveJob struct {
	data []byte
	done chan error
}

func Open(path string) (*Store, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("metastore: %w", err)
	}

	flk := flock.New(path + ".lock")
	locked, err := flk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("metastore: acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	s := &Store{
		path:   path,
		flk:    flk,
		saveCh: make(chan *saveJob, 16),
	}
	s.Load()

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

// Load reads the persisted document into memory. A missing, unparsable or
// structurally invalid document resets state to empty instead of failing the
// caller: sync then proceeds treating all paths as new.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("metastore: unreadable document, resetting", "path", s.path, "error", err)
		}
		s.doc = emptyDocument()
		return
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("metastore: corrupt document, resetting", "path", s.path, "error", err)
		s.doc = emptyDocument()
		return
	}
	if doc.Files == nil {
		slog.Warn("metastore: document missing files map, resetting", "path", s.path)
		s.doc = emptyDocument()
		return
	}

	s.doc = &doc
}

// Save serializes the current state and chains it onto the write queue. The
// snapshot is taken at enqueue time, so each completed write reflects the
// freshest state as of when it was enqueued.
func (s *Store) Save() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	data, err := json.Marshal(s.doc)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("metastore: marshal: %w", err)
	}

	job := &saveJob{data: data, done: make(chan error, 1)}
	s.saveCh <- job
	return <-job.done
}

// Reset clears in-memory state only. No I/O happens until the next Save.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = emptyDocument()
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.saveCh)
	s.wg.Wait()
	return s.flk.Unlock()
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for job := range s.saveCh {
		err := utils.WriteFileAtomic(s.path, job.data, 0o600)
		if err != nil {
			slog.Error("metastore: write failed", "path", s.path, "error", err)
		}
		job.done <- err
	}
}

// Get returns a copy of the metadata for path.
func (s *Store) Get(path string) (FileMetadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.doc.Files[path]
	if !ok {
		return FileMetadata{}, false
	}
	return *meta, true
}

// Set stores a copy of meta for path.
func (s *Store) Set(path string, meta FileMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Files[path] = &meta
}

// Delete purges the entry for path.
func (s *Store) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Files, path)
}

// Files returns a copy of the whole per-path state map.
func (s *Store) Files() map[string]FileMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make(map[string]FileMetadata, len(s.doc.Files))
	for path, meta := range s.doc.Files {
		files[path] = *meta
	}
	return files
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doc.Files)
}

func (s *Store) LastSync() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.LastSync
}

func (s *Store) SetLastSync(epochMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LastSync = epochMs
}

// MarkDirty records a local content change for path, creating the entry on
// first observation.
func (s *Store) MarkDirty(path string, modifiedMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.doc.Files[path]
	if !ok {
		meta = &FileMetadata{}
		s.doc.Files[path] = meta
	}
	meta.Dirty = true
	meta.Deleted = false
	meta.DeletedAt = 0
	meta.LastModified = modifiedMs
}

// MarkDeleted flags a pending-propagation deletion. The entry is purged only
// once a later snapshot confirms absence on both sides.
func (s *Store) MarkDeleted(path string, atMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.doc.Files[path]
	if !ok {
		return
	}
	meta.Deleted = true
	meta.DeletedAt = atMs
	meta.Dirty = false
}

// ConsumeJustDownloaded clears the just-downloaded flag for path and reports
// whether it was set. A change notification for the engine's own write is
// suppressed exactly once through this.
func (s *Store) ConsumeJustDownloaded(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.doc.Files[path]
	if !ok || !meta.JustDownloaded {
		return false
	}
	meta.JustDownloaded = false
	return true
}
