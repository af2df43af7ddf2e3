package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Source supplies the raw bytes of one extract.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// Deps are the shared clients handed to adapters built by FromURI.
// Nil clients are created on demand.
type Deps struct {
	Storage *storage.Client
	HTTP    *http.Client
}

// FromURI builds a source from a URI. Supported schemes are gs://,
// http:// and https://; anything else, including file://, is a local path.
func FromURI(uri string, deps Deps) (Source, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("FromURI: empty uri")
	}

	switch {
	case strings.HasPrefix(uri, "gs://"):
		bucket, object, err := ParseGCSURI(uri)
		if err != nil {
			return nil, err
		}
		return &GCSSource{Bucket: bucket, Object: object, Client: deps.Storage}, nil
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		if _, err := url.Parse(uri); err != nil {
			return nil, fmt.Errorf("FromURI: %w", err)
		}
		return &HTTPSource{URL: uri, Client: deps.HTTP}, nil
	default:
		return &FileSource{Path: strings.TrimPrefix(uri, "file://")}, nil
	}
}

// Named overrides the display name of a source.
func Named(name string, s Source) Source {
	if name == "" {
		return s
	}
	return named{name: name, Source: s}
}

type named struct {
	name string
	Source
}

func (n named) Name() string { return n.name }

// baseName strips the query and directories from a URL or path.
func baseName(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return path.Base(p)
}
