package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache wraps an Embedder with an in-memory LRU and a JSON file cache
// keyed by model and text. Disk failures degrade to cache misses, the
// wrapped model is always the fallback.
type Cache struct {
	inner  Embedder
	memory *lru.Cache[string, []float32]
	dir    string
	logger *slog.Logger
}

const defaultCacheEntries = 4096

// NewCache creates a caching wrapper. dir may be empty to disable the
// disk layer.
func NewCache(inner Embedder, dir string, entries int, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if entries <= 0 {
		entries = defaultCacheEntries
	}
	memory, err := lru.New[string, []float32](entries)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("embedding cache directory unavailable, disk layer disabled",
				"dir", dir, "error", err)
			dir = ""
		}
	}
	return &Cache{inner: inner, memory: memory, dir: dir, logger: logger}, nil
}

func (c *Cache) ModelName() string { return c.inner.ModelName() }
func (c *Cache) Dimensions() int   { return c.inner.Dimensions() }

func (c *Cache) Available(ctx context.Context) error { return c.inner.Available(ctx) }

func (c *Cache) Close() error {
	c.memory.Purge()
	return c.inner.Close()
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch serves what it can from cache and forwards the rest to
// the wrapped embedder in one call, preserving input order.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missed []string
	var missedIdx []int
	for i, t := range texts {
		keys[i] = c.key(t)
		if vec, ok := c.lookup(keys[i]); ok {
			vectors[i] = vec
			continue
		}
		missed = append(missed, t)
		missedIdx = append(missedIdx, i)
	}

	if len(missed) > 0 {
		fresh, err := c.inner.EmbedBatch(ctx, missed)
		if err != nil {
			return nil, err
		}
		for j, vec := range fresh {
			i := missedIdx[j]
			vectors[i] = vec
			c.store(keys[i], vec)
		}
	}
	c.logger.Debug("embedding cache batch served",
		"total", len(texts), "misses", len(missed))
	return vectors, nil
}

func (c *Cache) key(text string) string {
	h := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(h[:])
}

func (c *Cache) lookup(key string) ([]float32, bool) {
	if vec, ok := c.memory.Get(key); ok {
		return vec, true
	}
	if c.dir == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		c.logger.Debug("discarding corrupt embedding cache entry", "key", key, "error", err)
		return nil, false
	}
	c.memory.Add(key, vec)
	return vec, true
}

func (c *Cache) store(key string, vec []float32) {
	c.memory.Add(key, vec)
	if c.dir == "" {
		return
	}
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := os.WriteFile(c.diskPath(key), data, 0o644); err != nil {
		c.logger.Debug("failed to persist embedding cache entry", "key", key, "error", err)
	}
}

func (c *Cache) diskPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
