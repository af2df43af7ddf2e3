package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/ledger-analytics/internal/config"
	"github.com/dvloznov/ledger-analytics/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LoadsFromFilesWithCache(t *testing.T) {
	dir := t.TempDir()
	extract := filepath.Join(dir, "202401.txt")
	require.NoError(t, os.WriteFile(extract, []byte("007\tBanco A\t202401\t110000\tCaja\t100\t0\n"), 0o644))

	cfg := &config.Config{
		Sources:          []string{extract},
		LoadTimeout:      config.DefaultLoadTimeout,
		FetchConcurrency: 1,
		SnapshotCache:    filepath.Join(dir, "cache.db"),
	}
	ctx := context.Background()

	a, err := New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Runs)

	_, err = a.Loader.Refresh(ctx, a.Holder)
	require.NoError(t, err)
	require.NotNil(t, a.Holder.Current())
	assert.Equal(t, 1, a.Holder.Current().Len())

	// A second app over the same cache can serve before any load.
	b, err := New(ctx, cfg)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Loader.Restore(ctx, b.Holder))
	assert.Equal(t, 1, b.Holder.Current().Len())
}

func TestNew_BadTaxonomy(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Sources: []string{"a.txt"}, TaxonomyFile: "/does/not/exist.yaml"})
	assert.Error(t, err)
}

func TestUsesGCS(t *testing.T) {
	assert.True(t, usesGCS(source.FromURIs([]string{"a.txt", " gs://b/o"})))
	assert.False(t, usesGCS(source.FromURIs([]string{"https://x/y"})))
}
