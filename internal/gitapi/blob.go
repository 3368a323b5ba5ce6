package gitapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// BlobEncoding selects how blob content goes over the wire.
type BlobEncoding string

const (
	EncodingUTF8   BlobEncoding = "utf-8"
	EncodingBase64 BlobEncoding = "base64"
)

type createBlobRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type blobResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}

// CreateBlob stores content as a new blob and returns its sha. Binary
// content must use EncodingBase64; the transfer encoding is applied here.
func (c *Client) CreateBlob(ctx context.Context, content []byte, encoding BlobEncoding, opts ...CallOption) (string, error) {
	body := &createBlobRequest{Encoding: string(encoding)}
	switch encoding {
	case EncodingUTF8:
		body.Content = string(content)
	case EncodingBase64:
		body.Content = base64.StdEncoding.EncodeToString(content)
	default:
		return "", fmt.Errorf("gitapi: create blob: unknown encoding %q", encoding)
	}

	policy := c.callPolicy(opts)
	sha, err := retryDo(ctx, policy, func() (string, error) {
		var out shaResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetSuccessResult(&out).
			Post(c.repoPath("git/blobs"))

		if err := c.apiError("create blob", resp, err); err != nil {
			return "", err
		}
		return out.SHA, nil
	})
	if err != nil {
		return "", err
	}

	c.blobCache.Add(sha, content)
	return sha, nil
}

// ReadBlob fetches blob content by sha. Blobs are immutable and
// content-addressed, so results are cached.
func (c *Client) ReadBlob(ctx context.Context, sha string, opts ...CallOption) ([]byte, error) {
	if content, ok := c.blobCache.Get(sha); ok {
		return content, nil
	}

	policy := c.callPolicy(opts)
	content, err := retryDo(ctx, policy, func() ([]byte, error) {
		var out blobResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetSuccessResult(&out).
			Get(c.repoPath("git/blobs/" + sha))

		if err := c.apiError("read blob", resp, err); err != nil {
			return nil, err
		}
		return decodeBlobContent(&out)
	})
	if err != nil {
		return nil, err
	}

	c.blobCache.Add(sha, content)
	return content, nil
}

func decodeBlobContent(blob *blobResponse) ([]byte, error) {
	switch blob.Encoding {
	case string(EncodingBase64):
		// payload carries embedded newlines
		raw := strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return -1
			}
			return r
		}, blob.Content)
		content, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("gitapi: decode blob %s: %w", blob.SHA, err)
		}
		return content, nil
	case string(EncodingUTF8):
		return []byte(blob.Content), nil
	default:
		return nil, fmt.Errorf("gitapi: blob %s: unknown encoding %q", blob.SHA, blob.Encoding)
	}
}
