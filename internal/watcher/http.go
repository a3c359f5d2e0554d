package watcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// NewHTTPRequestFunc fetches keys as URLs with client.
func NewHTTPRequestFunc(client *http.Client) RequestFunc {
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, key string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s: %w", key, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, key)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}

		return body, nil
	}
}
