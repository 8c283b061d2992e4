// Package embed generates vector embeddings for statute fragments via
// an Ollama-compatible HTTP endpoint, with an LRU and disk cache in
// front of the model.
package embed

import (
	"context"
	"time"

	"github.com/redwell/law-search/internal/lawxml"
)

// Embedder produces dense vectors for text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	// Blank texts yield zero vectors without touching the model.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the vector width, or 0 before the first
	// successful embedding when not configured explicitly.
	Dimensions() int

	// ModelName identifies the model producing the vectors.
	ModelName() string

	// Available checks that the endpoint is reachable and serves the
	// configured model.
	Available(ctx context.Context) error

	Close() error
}

// EmbeddedFragment pairs a fragment with its vector.
type EmbeddedFragment struct {
	Fragment lawxml.Fragment
	Vector   []float32
	// ModelName records which model produced the vector.
	ModelName string
	// GenerationTime is the wall-clock seconds spent on this fragment.
	// Batch generation amortizes the cost and records 0 per item.
	GenerationTime float64
}

// EmbeddingBatch is the embedded form of one statute document,
// including the document-level summary pseudo-fragment.
type EmbeddingBatch struct {
	LawID     string
	ModelName string
	Fragments []EmbeddedFragment
	CreatedAt time.Time
}
