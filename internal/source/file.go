package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSource reads an extract from the local filesystem.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string {
	return filepath.Base(s.Path)
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("FileSource.Fetch: %w", err)
	}
	return data, nil
}
