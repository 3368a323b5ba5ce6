package syncer

import (
	"time"

	"github.com/refsync/refsync/internal/gitapi"
	"github.com/refsync/refsync/internal/metastore"
)

// Change is the divergence class assigned to one path for one cycle. Every
// path seen locally, remotely or in metadata gets exactly one.
type Change uint8

const (
	ChangeUnchanged Change = iota
	ChangeLocalOnly
	ChangeRemoteOnly
	ChangeBothChanged
	ChangeLocalNew
	ChangeRemoteNew
	ChangeLocalDeleted
	ChangeRemoteDeleted
	// ChangePurge closes a deletion's lifecycle: the path is absent on both
	// sides, so its metadata entry can finally go.
	ChangePurge
)

var changeNames = []string{
	"Unchanged",
	"LocalOnly",
	"RemoteOnly",
	"BothChanged",
	"LocalNew",
	"RemoteNew",
	"LocalDeleted",
	"RemoteDeleted",
	"Purge",
}

func (c Change) String() string {
	return changeNames[c]
}

// localFile is one entry of the local tree listing. SHA is the git blob hash
// of the current content, memoized by size+mtime across cycles.
type localFile struct {
	Path    string
	SHA     string
	Size    int64
	ModTime time.Time
}

// classify assigns a divergence class from the three views of one path.
// It is a pure decision function: no I/O, so a both-changed result is only a
// conflict candidate. The caller reclassifies candidates whose byte content
// turns out identical.
func classify(local *localFile, remote *gitapi.TreeEntry, meta *metastore.FileMetadata) Change {
	localExists := local != nil
	remoteExists := remote != nil
	// an entry with no sha was observed (e.g. marked dirty by the watcher)
	// but never confirmed synced
	synced := meta != nil && meta.SHA != ""

	switch {
	case localExists && remoteExists && synced:
		localChanged := meta.Dirty || local.SHA != meta.SHA
		remoteChanged := remote.SHA != meta.SHA
		switch {
		case localChanged && remoteChanged:
			return ChangeBothChanged
		case localChanged:
			return ChangeLocalOnly
		case remoteChanged:
			return ChangeRemoteOnly
		default:
			return ChangeUnchanged
		}

	case localExists && remoteExists:
		// both sides have the path with no common synced state
		return ChangeBothChanged

	case localExists && synced:
		return ChangeRemoteDeleted

	case localExists:
		return ChangeLocalNew

	case remoteExists && synced:
		return ChangeLocalDeleted

	case remoteExists:
		return ChangeRemoteNew

	case meta != nil:
		return ChangePurge
	}

	// unreachable: the path came from one of the three views
	return ChangeUnchanged
}
