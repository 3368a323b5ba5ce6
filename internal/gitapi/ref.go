package gitapi

import (
	"context"
	"errors"
)

type refResponse struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA  string `json:"sha"`
		Type string `json:"type"`
	} `json:"object"`
}

type updateRefRequest struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

type createRefRequest struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// ReadRefHead returns the commit sha the branch head points at, or "" when
// the branch does not exist yet (empty repository).
func (c *Client) ReadRefHead(ctx context.Context, opts ...CallOption) (string, error) {
	policy := c.callPolicy(opts)
	head, err := retryDo(ctx, policy, func() (string, error) {
		var out refResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetSuccessResult(&out).
			Get(c.repoPath("git/ref/heads/" + c.branch))

		if err := c.apiError("read ref", resp, err); err != nil {
			return "", err
		}
		return out.Object.SHA, nil
	})

	var re *RemoteError
	if errors.As(err, &re) && re.IsNotFound() {
		return "", nil
	}
	return head, err
}

// UpdateRefHead fast-forwards the branch head to sha. The update is not
// forced: the store rejects it if the head moved to a commit that is not an
// ancestor of sha.
func (c *Client) UpdateRefHead(ctx context.Context, sha string, opts ...CallOption) error {
	policy := c.callPolicy(opts)
	_, err := retryDo(ctx, policy, func() (struct{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&updateRefRequest{SHA: sha, Force: false}).
			Patch(c.repoPath("git/refs/heads/" + c.branch))

		return struct{}{}, c.apiError("update ref", resp, err)
	})
	return err
}

// CreateRefHead creates the branch head pointing at sha. Used for the first
// commit into an empty repository, where there is no ref to update.
func (c *Client) CreateRefHead(ctx context.Context, sha string, opts ...CallOption) error {
	policy := c.callPolicy(opts)
	_, err := retryDo(ctx, policy, func() (struct{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&createRefRequest{Ref: "refs/heads/" + c.branch, SHA: sha}).
			Post(c.repoPath("git/refs"))

		return struct{}{}, c.apiError("create ref", resp, err)
	})
	return err
}
