package gitapi

import (
	"context"
)

// DownloadArchive fetches the branch as a zip archive. The payload is
// binary, everything else on this API is JSON.
func (c *Client) DownloadArchive(ctx context.Context, opts ...CallOption) ([]byte, error) {
	policy := c.callPolicy(opts)
	return retryDo(ctx, policy, func() ([]byte, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			Get(c.repoPath("zipball/" + c.branch))

		if err := c.apiError("download archive", resp, err); err != nil {
			return nil, err
		}
		return resp.ToBytes()
	})
}
