package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://elaws.e-gov.go.jp", cfg.Collector.BaseURL)
	assert.Equal(t, time.Second, cfg.Collector.PacingInterval)
	assert.Len(t, cfg.Collector.LawIDs, 10)
	assert.Equal(t, 32, cfg.Embedding.BatchSize)
	assert.Equal(t, 0.4, cfg.Search.FulltextWeight)
	assert.Equal(t, 0.4, cfg.Search.VectorWeight)
	assert.Equal(t, 0.2, cfg.Search.GraphWeight)
	assert.Equal(t, 30, cfg.Storage.RetentionDays)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
collector:
  base_url: http://localhost:9999
embedding:
  batch_size: 16
search:
  fulltext_weight: 0.5
  vector_weight: 0.5
  graph_weight: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.Collector.BaseURL)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 0.5, cfg.Search.FulltextWeight)
	assert.Equal(t, 0.0, cfg.Search.GraphWeight)
	// Untouched fields keep defaults.
	assert.Equal(t, "data/egov", cfg.Collector.DataDir)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  model: from-file\n"), 0o644))

	t.Setenv("LAWSEARCH_EMBEDDING_MODEL", "from-env")
	t.Setenv("LAWSEARCH_EMBEDDING_BATCH_SIZE", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Embedding.Model)
	assert.Equal(t, 8, cfg.Embedding.BatchSize)
}

func TestValidate(t *testing.T) {
	t.Run("batch size clamp", func(t *testing.T) {
		cfg := Default()
		cfg.Embedding.BatchSize = 0
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 32, cfg.Embedding.BatchSize)
	})

	t.Run("batch size over maximum", func(t *testing.T) {
		cfg := Default()
		cfg.Embedding.BatchSize = 512
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Search.VectorWeight = -0.1
		assert.Error(t, cfg.Validate())
	})

	t.Run("all-zero weights rejected", func(t *testing.T) {
		cfg := Default()
		cfg.Search.FulltextWeight = 0
		cfg.Search.VectorWeight = 0
		cfg.Search.GraphWeight = 0
		assert.Error(t, cfg.Validate())
	})
}
