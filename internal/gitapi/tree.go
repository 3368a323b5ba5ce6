package gitapi

import (
	"context"
	"fmt"
	"log/slog"
)

// FetchTree resolves the branch head to its root tree and lists every blob
// reachable from it, recursively. An empty repository yields an empty
// snapshot, not an error.
func (c *Client) FetchTree(ctx context.Context, opts ...CallOption) (*TreeSnapshot, error) {
	head, err := c.ReadRefHead(ctx, opts...)
	if err != nil {
		return nil, err
	}

	snapshot := &TreeSnapshot{
		HeadSHA: head,
		Entries: make(map[string]TreeEntry),
	}
	if head == "" {
		return snapshot, nil
	}

	policy := c.callPolicy(opts)

	treeSHA, err := retryDo(ctx, policy, func() (string, error) {
		return c.readCommitTree(ctx, head)
	})
	if err != nil {
		return nil, err
	}
	snapshot.RootTreeSHA = treeSHA

	out, err := retryDo(ctx, policy, func() (*treeResponse, error) {
		return c.readTreeRecursive(ctx, treeSHA)
	})
	if err != nil {
		return nil, err
	}

	if out.Truncated {
		return nil, fmt.Errorf("gitapi: tree %s is truncated, repository too large to snapshot", treeSHA)
	}

	for _, entry := range out.Tree {
		if entry.Type != TypeBlob {
			continue
		}
		snapshot.Entries[entry.Path] = TreeEntry{
			SHA:  entry.SHA,
			Mode: entry.Mode,
			Type: entry.Type,
			Size: entry.Size,
		}
	}

	slog.Debug("fetched tree", "head", head, "tree", treeSHA, "blobs", len(snapshot.Entries))
	return snapshot, nil
}

// CreateTree builds a new tree from baseTreeSHA plus the given entry
// descriptors in one batched call. This is the single synchronization point
// of a cycle: it must see every blob sha before it runs.
func (c *Client) CreateTree(ctx context.Context, entries []TreeEntrySpec, baseTreeSHA string, opts ...CallOption) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("gitapi: create tree: no entries")
	}

	policy := c.callPolicy(opts)
	return retryDo(ctx, policy, func() (string, error) {
		var out shaResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&createTreeRequest{BaseTree: baseTreeSHA, Tree: entries}).
			SetSuccessResult(&out).
			Post(c.repoPath("git/trees"))

		if err := c.apiError("create tree", resp, err); err != nil {
			return "", err
		}
		return out.SHA, nil
	})
}

func (c *Client) readCommitTree(ctx context.Context, commitSHA string) (string, error) {
	var out commitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&out).
		Get(c.repoPath("git/commits/" + commitSHA))

	if err := c.apiError("read commit", resp, err); err != nil {
		return "", err
	}
	return out.Tree.SHA, nil
}

func (c *Client) readTreeRecursive(ctx context.Context, treeSHA string) (*treeResponse, error) {
	var out treeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("recursive", "1").
		SetSuccessResult(&out).
		Get(c.repoPath("git/trees/" + treeSHA))

	if err := c.apiError("read tree", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}
