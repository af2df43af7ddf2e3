package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// uploadTimeout bounds a single object upload.
const uploadTimeout = 2 * time.Minute

// ObjectName places a local extract under prefix, keeping its file name.
func ObjectName(prefix, filePath string) string {
	return path.Join(strings.Trim(prefix, "/"), filepath.Base(filePath))
}

// EntryName is the manifest name of an extract: its file name without the
// extension, usually the YYYYMM period.
func EntryName(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// UploadFile copies a local file into bucket/object.
func UploadFile(ctx context.Context, client *storage.Client, bucket, object, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/plain; charset=iso-8859-1"
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy to gs://%s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// Stage uploads every local extract under bucket/prefix and returns the
// manifest that loads them back, in the order given.
func Stage(ctx context.Context, client *storage.Client, bucket, prefix string, files []string, concurrency int) (*Manifest, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	m := &Manifest{Sources: make([]Entry, len(files))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, file := range files {
		object := ObjectName(prefix, file)
		m.Sources[i] = Entry{Name: EntryName(file), URI: "gs://" + bucket + "/" + object}
		g.Go(func() error {
			return UploadFile(gctx, client, bucket, object, file)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Stage: %w", err)
	}
	return m, nil
}

// Marshal renders the manifest in the format LoadManifest reads.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("Manifest.Marshal: %w", err)
	}
	return data, nil
}
