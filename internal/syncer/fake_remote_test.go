package syncer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/refsync/refsync/internal/gitapi"
	"github.com/refsync/refsync/internal/utils"
)

type fakeCommit struct {
	tree   string
	parent string
}

// fakeRemote is an in-memory object store implementing Remote with real
// content-addressed blob semantics, so engine round trips behave like the
// wire does.
type fakeRemote struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	encodings map[string]gitapi.BlobEncoding
	trees     map[string]map[string]gitapi.TreeEntry
	commits   map[string]fakeCommit
	head      string
	calls     map[string]int
	treeSeq   int
	commitSeq int

	// onReadRefHead runs once before the next ReadRefHead answer, letting
	// tests move the head between snapshot and ref update.
	onReadRefHead func(f *fakeRemote)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		blobs:     make(map[string][]byte),
		encodings: make(map[string]gitapi.BlobEncoding),
		trees:     map[string]map[string]gitapi.TreeEntry{"": {}},
		commits:   make(map[string]fakeCommit),
		calls:     make(map[string]int),
	}
}

var _ Remote = (*fakeRemote)(nil)

func (f *fakeRemote) FetchTree(_ context.Context, _ ...gitapi.CallOption) (*gitapi.TreeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["FetchTree"]++

	snapshot := &gitapi.TreeSnapshot{
		HeadSHA: f.head,
		Entries: make(map[string]gitapi.TreeEntry),
	}
	if f.head == "" {
		return snapshot, nil
	}

	commit := f.commits[f.head]
	snapshot.RootTreeSHA = commit.tree
	for path, entry := range f.trees[commit.tree] {
		snapshot.Entries[path] = entry
	}
	return snapshot, nil
}

func (f *fakeRemote) ReadRefHead(_ context.Context, _ ...gitapi.CallOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ReadRefHead"]++

	if hook := f.onReadRefHead; hook != nil {
		f.onReadRefHead = nil
		hook(f)
	}
	return f.head, nil
}

func (f *fakeRemote) CreateBlob(_ context.Context, content []byte, encoding gitapi.BlobEncoding, _ ...gitapi.CallOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateBlob"]++

	sha := utils.GitBlobSHA(content)
	f.blobs[sha] = bytes.Clone(content)
	f.encodings[sha] = encoding
	return sha, nil
}

func (f *fakeRemote) ReadBlob(_ context.Context, sha string, _ ...gitapi.CallOption) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ReadBlob"]++

	content, ok := f.blobs[sha]
	if !ok {
		return nil, &gitapi.RemoteError{Status: 404, Op: "read blob", Body: sha}
	}
	return bytes.Clone(content), nil
}

func (f *fakeRemote) CreateTree(_ context.Context, entries []gitapi.TreeEntrySpec, baseTreeSHA string, _ ...gitapi.CallOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateTree"]++

	base, ok := f.trees[baseTreeSHA]
	if !ok {
		return "", &gitapi.RemoteError{Status: 422, Op: "create tree", Body: "unknown base tree"}
	}

	tree := make(map[string]gitapi.TreeEntry, len(base))
	for path, entry := range base {
		tree[path] = entry
	}
	for _, spec := range entries {
		if spec.SHA == nil {
			delete(tree, spec.Path)
			continue
		}
		tree[spec.Path] = gitapi.TreeEntry{
			SHA:  *spec.SHA,
			Mode: spec.Mode,
			Type: spec.Type,
			Size: int64(len(f.blobs[*spec.SHA])),
		}
	}

	f.treeSeq++
	sha := fmt.Sprintf("tree%d", f.treeSeq)
	f.trees[sha] = tree
	return sha, nil
}

func (f *fakeRemote) CreateCommit(_ context.Context, _, treeSHA, parentSHA string, _ ...gitapi.CallOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateCommit"]++

	f.commitSeq++
	sha := fmt.Sprintf("commit%d", f.commitSeq)
	f.commits[sha] = fakeCommit{tree: treeSHA, parent: parentSHA}
	return sha, nil
}

func (f *fakeRemote) UpdateRefHead(_ context.Context, sha string, _ ...gitapi.CallOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateRefHead"]++
	f.head = sha
	return nil
}

func (f *fakeRemote) CreateRefHead(_ context.Context, sha string, _ ...gitapi.CallOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateRefHead"]++
	f.head = sha
	return nil
}

func (f *fakeRemote) DownloadArchive(_ context.Context, _ ...gitapi.CallOption) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DownloadArchive"]++

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	prefix := "notes-" + f.head + "/"

	if f.head != "" {
		commit := f.commits[f.head]
		for path, entry := range f.trees[commit.tree] {
			w, err := zw.Create(prefix + path)
			if err != nil {
				return nil, err
			}
			if _, err := w.Write(f.blobs[entry.SHA]); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// seed installs files as the full remote state under a fresh commit.
func (f *fakeRemote) seed(files map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tree := make(map[string]gitapi.TreeEntry, len(files))
	for path, content := range files {
		sha := utils.GitBlobSHA([]byte(content))
		f.blobs[sha] = []byte(content)
		tree[path] = gitapi.TreeEntry{SHA: sha, Mode: gitapi.ModeFile, Type: gitapi.TypeBlob, Size: int64(len(content))}
	}

	f.treeSeq++
	treeSHA := fmt.Sprintf("tree%d", f.treeSeq)
	f.trees[treeSHA] = tree

	f.commitSeq++
	commitSHA := fmt.Sprintf("commit%d", f.commitSeq)
	f.commits[commitSHA] = fakeCommit{tree: treeSHA, parent: f.head}
	f.head = commitSHA
}

// externalCommit simulates another client changing one path concurrently.
// An empty content deletes the path.
func (f *fakeRemote) externalCommit(path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCommit(path, content)
}

// applyCommit is externalCommit without locking, for hooks that already run
// under f.mu (like onReadRefHead).
func (f *fakeRemote) applyCommit(path, content string) {
	var base map[string]gitapi.TreeEntry
	if f.head != "" {
		base = f.trees[f.commits[f.head].tree]
	}
	tree := make(map[string]gitapi.TreeEntry, len(base)+1)
	for p, entry := range base {
		tree[p] = entry
	}

	if content == "" {
		delete(tree, path)
	} else {
		sha := utils.GitBlobSHA([]byte(content))
		f.blobs[sha] = []byte(content)
		tree[path] = gitapi.TreeEntry{SHA: sha, Mode: gitapi.ModeFile, Type: gitapi.TypeBlob, Size: int64(len(content))}
	}

	f.treeSeq++
	treeSHA := fmt.Sprintf("tree%d", f.treeSeq)
	f.trees[treeSHA] = tree

	f.commitSeq++
	commitSHA := fmt.Sprintf("commit%d", f.commitSeq)
	f.commits[commitSHA] = fakeCommit{tree: treeSHA, parent: f.head}
	f.head = commitSHA
}

// fileContent resolves a path through the current head.
func (f *fakeRemote) fileContent(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.head == "" {
		return nil, false
	}
	entry, ok := f.trees[f.commits[f.head].tree][path]
	if !ok {
		return nil, false
	}
	return bytes.Clone(f.blobs[entry.SHA]), true
}

func (f *fakeRemote) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}
