package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/refsync/refsync/internal/utils"
)

var (
	ErrWatcherClosed = errors.New("syncer: watcher closed")
	ErrDirNotExist   = errors.New("syncer: directory to watch does not exist")
)

// FSOp is the kind of a local change notification.
type FSOp uint8

const (
	FSOpCreate FSOp = iota
	FSOpWrite
	FSOpRemove
)

// FSEvent is a change notification with a root-relative path.
type FSEvent struct {
	Path string
	Op   FSOp
}

// Watcher recursively watches the local tree and forwards file events as
// root-relative paths. Directory create/remove adjusts the watch set.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher
	events  chan FSEvent
}

func NewWatcher(root string) (*Watcher, error) {
	if !utils.DirExists(root) {
		return nil, ErrDirNotExist
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    root,
		watcher: fsw,
		events:  make(chan FSEvent, 64),
	}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) Events() <-chan FSEvent {
	return w.events
}

// Start pumps raw filesystem events until ctx is cancelled or the watcher
// is closed. Start is the only sender on the events channel and closes it
// on exit, so consumers see a clean end of stream.
func (w *Watcher) Start(ctx context.Context) error {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return ErrWatcherClosed
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// Close stops the underlying watcher, which unblocks Start.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	var op FSOp
	switch {
	case event.Has(fsnotify.Create):
		op = FSOpCreate
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				slog.Warn("watch new directory", "path", rel, "error", err)
			}
			return
		}

	case event.Has(fsnotify.Write):
		op = FSOpWrite

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = FSOpRemove
		if err := w.watcher.Remove(event.Name); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
			slog.Debug("remove watch", "path", rel, "error", err)
		}

	default:
		return
	}

	select {
	case w.events <- FSEvent{Path: rel, Op: op}:
	default:
		slog.Warn("dropped event: channel full", "path", rel)
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return err
			}
		}
		return nil
	})
}
