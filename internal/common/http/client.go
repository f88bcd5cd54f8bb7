// internal/common/http/client.go
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"haptic-trainer/internal/common/errors"
)

// Client fetches dataset artifacts such as kinematics recordings and gesture
// transcripts. Sources may be http(s) URLs or local file paths, which keeps
// callers agnostic of where a recording lives.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
}

// Kinematics files for the longest tasks run a few megabytes; the cap guards
// against a misconfigured source streaming forever.
const defaultMaxFetchBytes = 64 << 20

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBytes: defaultMaxFetchBytes,
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// Fetch reads the whole artifact at source. http(s) sources are downloaded,
// anything else is treated as a local path.
func (c *Client) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return c.fetchURL(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, errors.NewDatasetFetchFailedError(source, err)
	}
	return data, nil
}

func (c *Client) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewDatasetFetchFailedError(url, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewDatasetFetchFailedError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewDatasetFetchFailedError(url,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, errors.NewDatasetFetchFailedError(url, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, errors.NewDatasetFetchFailedError(url,
			fmt.Errorf("artifact larger than %d bytes", c.maxBytes))
	}
	return data, nil
}
