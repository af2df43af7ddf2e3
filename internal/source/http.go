package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds a single download when no client is supplied.
const DefaultHTTPTimeout = 2 * time.Minute

// HTTPSource downloads an extract with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Name returns the last path segment of the URL.
func (s *HTTPSource) Name() string {
	return baseName(s.URL)
}

// Fetch downloads the body. Any non-2xx status is an error.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPSource.Fetch: building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPSource.Fetch: %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTPSource.Fetch: %s: unexpected status %s", s.Name(), resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("HTTPSource.Fetch: reading body: %w", err)
	}
	return data, nil
}
