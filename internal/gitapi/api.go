package gitapi

import (
	"fmt"
	"runtime"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/imroc/req/v3"
	"github.com/refsync/refsync/internal/config"
	"github.com/refsync/refsync/internal/version"
)

const (
	HeaderAccept     = "Accept"
	HeaderAPIVersion = "X-GitHub-Api-Version"

	acceptJSON = "application/vnd.github+json"
	apiVersion = "2022-11-28"

	blobCacheSize = 128
)

var userAgent = fmt.Sprintf("RefSync/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Client performs individual object-store operations against one repository
// branch. Repository identity and credentials are fixed at construction.
// Every operation is all-or-nothing from the caller's view.
type Client struct {
	http      *req.Client
	owner     string
	repo      string
	branch    string
	retry     RetryPolicy
	blobCache *lru.Cache[string, []byte]
}

func New(cfg *config.Config) (*Client, error) {
	cache, err := lru.New[string, []byte](blobCacheSize)
	if err != nil {
		return nil, fmt.Errorf("gitapi: blob cache: %w", err)
	}

	client := req.C().
		SetBaseURL(cfg.APIBaseURL).
		SetUserAgent(userAgent).
		SetCommonBearerAuthToken(cfg.Token).
		SetCommonHeader(HeaderAccept, acceptJSON).
		SetCommonHeader(HeaderAPIVersion, apiVersion).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		http:      client,
		owner:     cfg.Owner,
		repo:      cfg.Repo,
		branch:    cfg.Branch,
		retry:     DefaultRetryPolicy,
		blobCache: cache,
	}, nil
}

// Close terminates idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) repoPath(suffix string) string {
	return fmt.Sprintf("/repos/%s/%s/%s", c.owner, c.repo, suffix)
}

// apiError maps a finished request to either nil, a transport error, or a
// typed *RemoteError carrying status, operation and repository context.
func (c *Client) apiError(op string, resp *req.Response, err error) error {
	if err != nil {
		return fmt.Errorf("gitapi: %s %s/%s@%s: %w", op, c.owner, c.repo, c.branch, err)
	}

	if resp.IsErrorState() {
		return &RemoteError{
			Status: resp.GetStatusCode(),
			Op:     op,
			Owner:  c.owner,
			Repo:   c.repo,
			Branch: c.branch,
			Body:   resp.String(),
		}
	}

	return nil
}
