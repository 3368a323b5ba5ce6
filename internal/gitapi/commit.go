package gitapi

import (
	"context"
)

type shaResponse struct {
	SHA string `json:"sha"`
}

type commitResponse struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

type createCommitRequest struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

// CreateCommit creates a commit pointing at treeSHA. An empty parentSHA
// creates a root commit (first commit of an empty repository).
func (c *Client) CreateCommit(ctx context.Context, message, treeSHA, parentSHA string, opts ...CallOption) (string, error) {
	parents := []string{}
	if parentSHA != "" {
		parents = append(parents, parentSHA)
	}

	policy := c.callPolicy(opts)
	return retryDo(ctx, policy, func() (string, error) {
		var out shaResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(&createCommitRequest{Message: message, Tree: treeSHA, Parents: parents}).
			SetSuccessResult(&out).
			Post(c.repoPath("git/commits"))

		if err := c.apiError("create commit", resp, err); err != nil {
			return "", err
		}
		return out.SHA, nil
	})
}
