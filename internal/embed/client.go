package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redwell/law-search/internal/config"
	lserrors "github.com/redwell/law-search/internal/errors"
)

// Client talks to an Ollama-compatible embedding server.
type Client struct {
	endpoint   string
	model      string
	batchSize  int
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger

	mu   sync.Mutex
	dims int
}

// NewClient builds a Client from config. Dimensions are taken from
// config when set, otherwise detected from the first response.
func NewClient(cfg config.EmbeddingConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		batchSize:  batchSize,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		dims:       cfg.Dimensions,
	}
}

func (c *Client) ModelName() string { return c.model }

func (c *Client) Dimensions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dims
}

func (c *Client) Close() error { return nil }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Available probes /api/tags and verifies the configured model is
// served. The model name may carry a tag suffix on the server side.
func (c *Client) Available(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return lserrors.Wrap(lserrors.ErrCodeModelUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lserrors.Wrap(lserrors.ErrCodeModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return lserrors.New(lserrors.ErrCodeModelUnavailable,
			fmt.Sprintf("embedding server returned status %d", resp.StatusCode), nil)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return lserrors.Wrap(lserrors.ErrCodeModelUnavailable, err)
	}
	for _, m := range tags.Models {
		if m.Name == c.model || strings.HasPrefix(m.Name, c.model+":") {
			return nil
		}
	}
	return lserrors.New(lserrors.ErrCodeModelUnavailable,
		fmt.Sprintf("model %q not served by %s", c.model, c.endpoint), nil)
}

// Embed returns the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in sub-batches bounded by the configured
// batch size. Blank texts are filled with zero vectors locally; the
// model never sees them.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		pending = append(pending, t)
		pendingIdx = append(pendingIdx, i)
	}

	for start := 0; start < len(pending); start += c.batchSize {
		end := min(start+c.batchSize, len(pending))
		batch, err := c.embedWithRetry(ctx, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range batch {
			vectors[pendingIdx[start+j]] = vec
		}
	}

	dims := c.Dimensions()
	for i, vec := range vectors {
		if vec != nil {
			continue
		}
		if dims == 0 {
			return nil, lserrors.EmbeddingError(
				"cannot zero-fill blank text: vector dimensions unknown", nil)
		}
		vectors[i] = make([]float32, dims)
	}
	return vectors, nil
}

// embedWithRetry issues one model call, retrying transient failures
// with exponential backoff.
func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			c.logger.Warn("retrying embedding request",
				"attempt", attempt, "backoff", backoff, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, lserrors.Wrap(lserrors.ErrCodeEmbedFailed, ctx.Err())
			case <-time.After(backoff):
			}
		}
		vecs, err := c.embedOnce(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !lserrors.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeEmbedFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeEmbedFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		code := lserrors.ErrCodeEmbedFailed
		if resp.StatusCode >= 500 {
			code = lserrors.ErrCodeModelUnavailable
		}
		return nil, lserrors.New(code,
			fmt.Sprintf("embedding request failed: status %d: %s", resp.StatusCode, msg), nil)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeEmbedFailed, err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, lserrors.EmbeddingError(
			fmt.Sprintf("embedding count mismatch: sent %d texts, got %d vectors",
				len(texts), len(parsed.Embeddings)), nil)
	}

	c.mu.Lock()
	for _, vec := range parsed.Embeddings {
		if c.dims == 0 {
			c.dims = len(vec)
		}
		if len(vec) != c.dims {
			dims := c.dims
			c.mu.Unlock()
			return nil, lserrors.New(lserrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", dims, len(vec)), nil)
		}
	}
	c.mu.Unlock()

	return parsed.Embeddings, nil
}
