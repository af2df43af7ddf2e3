package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSSource reads an extract from a Cloud Storage object.
// It assumes Application Default Credentials are configured.
type GCSSource struct {
	Bucket string
	Object string
	// Client is shared across sources when set; otherwise each fetch opens
	// and closes its own client.
	Client *storage.Client
}

// Name returns the object's file name.
func (s *GCSSource) Name() string {
	return path.Base(s.Object)
}

// Fetch downloads the object bytes.
func (s *GCSSource) Fetch(ctx context.Context) ([]byte, error) {
	client := s.Client
	if client == nil {
		c, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("GCSSource.Fetch: creating storage client: %w", err)
		}
		defer c.Close()
		client = c
	}

	rc, err := client.Bucket(s.Bucket).Object(s.Object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: reading object %s/%s: %w", s.Bucket, s.Object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCSSource.Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}
