package syncer

import (
	"context"
)

// ConflictFile is one path whose local and remote copies both changed, with
// different content, since the last common synced state. It exists only
// inside one cycle.
type ConflictFile struct {
	Path          string
	LocalContent  []byte
	RemoteContent []byte
}

// ConflictResolution is the final content chosen for one conflicted path.
// Produced once by the resolution surface, consumed once by the engine.
type ConflictResolution struct {
	Path    string
	Content []byte
}

// Resolver is the external conflict-resolution surface. It receives the full
// batch of conflicts for one cycle and must eventually return the full batch
// of resolutions, never a partial one. The call may suspend indefinitely;
// the engine imposes no timeout and aborts the cycle cleanly if ctx is
// cancelled while waiting.
type Resolver interface {
	Resolve(ctx context.Context, conflicts []ConflictFile) ([]ConflictResolution, error)
}

// KeepLocalResolver resolves every conflict in favor of the local copy.
// It is the headless default; interactive surfaces implement Resolver
// elsewhere.
type KeepLocalResolver struct{}

func (KeepLocalResolver) Resolve(_ context.Context, conflicts []ConflictFile) ([]ConflictResolution, error) {
	resolutions := make([]ConflictResolution, 0, len(conflicts))
	for _, c := range conflicts {
		resolutions = append(resolutions, ConflictResolution{Path: c.Path, Content: c.LocalContent})
	}
	return resolutions, nil
}
