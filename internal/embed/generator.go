package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/redwell/law-search/internal/config"
	lserrors "github.com/redwell/law-search/internal/errors"
	"github.com/redwell/law-search/internal/lawxml"
)

// SummaryNumber is the pseudo-fragment number used for the
// document-level summary embedding.
const SummaryNumber = "SUMMARY"

// Generator turns statute documents into embedding batches and checks
// them before storage.
type Generator struct {
	embedder                Embedder
	shortContentThreshold   int
	slowGenerationThreshold time.Duration
	logger                  *slog.Logger
}

func NewGenerator(embedder Embedder, cfg config.EmbeddingConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		embedder:                embedder,
		shortContentThreshold:   cfg.ShortContentThreshold,
		slowGenerationThreshold: cfg.SlowGenerationThreshold,
		logger:                  logger,
	}
}

// Generate embeds one fragment and records its wall-clock time.
func (g *Generator) Generate(ctx context.Context, frag lawxml.Fragment) (EmbeddedFragment, error) {
	started := time.Now()
	vec, err := g.embedder.Embed(ctx, frag.Content)
	if err != nil {
		return EmbeddedFragment{}, err
	}
	frag.Metadata = frag.CloneMetadata()
	frag.Metadata["text_length"] = utf8.RuneCountInString(frag.Content)
	frag.Metadata["embedding_dimension"] = len(vec)
	return EmbeddedFragment{
		Fragment:       frag,
		Vector:         vec,
		ModelName:      g.embedder.ModelName(),
		GenerationTime: time.Since(started).Seconds(),
	}, nil
}

// GenerateBatch embeds fragments in one model round trip. Per-item
// generation time is recorded as 0 because the cost is amortized
// across the batch; batch_index metadata preserves input order.
func (g *Generator) GenerateBatch(ctx context.Context, frags []lawxml.Fragment) ([]EmbeddedFragment, error) {
	if len(frags) == 0 {
		return nil, nil
	}

	texts := make([]string, len(frags))
	for i, f := range frags {
		texts[i] = f.Content
	}
	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make([]EmbeddedFragment, len(frags))
	for i, f := range frags {
		f.Metadata = f.CloneMetadata()
		f.Metadata["text_length"] = utf8.RuneCountInString(f.Content)
		f.Metadata["embedding_dimension"] = len(vectors[i])
		f.Metadata["batch_index"] = i
		out[i] = EmbeddedFragment{
			Fragment:       f,
			Vector:         vectors[i],
			ModelName:      g.embedder.ModelName(),
			GenerationTime: 0,
		}
	}
	return out, nil
}

// ForDocument embeds all fragments of doc plus a summary
// pseudo-fragment capturing the document-level attributes, so a query
// about a law as a whole can match even when no single article does.
func (g *Generator) ForDocument(ctx context.Context, doc *lawxml.StatuteDocument) (*EmbeddingBatch, error) {
	frags := make([]lawxml.Fragment, 0, len(doc.Fragments)+1)
	frags = append(frags, doc.Fragments...)
	frags = append(frags, lawxml.Fragment{
		LawID:         doc.LawID,
		Number:        SummaryNumber,
		Content:       summaryText(doc),
		EffectiveDate: doc.EffectiveDate,
		Metadata:      map[string]any{"xml_element": "Summary"},
	})

	embedded, err := g.GenerateBatch(ctx, frags)
	if err != nil {
		return nil, err
	}
	return &EmbeddingBatch{
		LawID:     doc.LawID,
		ModelName: g.embedder.ModelName(),
		Fragments: embedded,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func summaryText(doc *lawxml.StatuteDocument) string {
	return fmt.Sprintf("法律名: %s | 概要: %s | 法律番号: %s | 施行日: %s | 条文数: %d条",
		doc.Name, doc.Description, doc.Number, doc.EffectiveDate, len(doc.Fragments))
}

// Validate checks a batch before storage. Structural problems (empty
// batch, empty vectors, mixed dimensions) are errors; implausibly
// short content and slow generation are returned as warnings.
func (g *Generator) Validate(batch *EmbeddingBatch) ([]string, error) {
	if batch == nil || len(batch.Fragments) == 0 {
		return nil, lserrors.New(lserrors.ErrCodeValidationFailed,
			"embedding batch is empty", nil)
	}

	dims := 0
	var warnings []string
	for _, ef := range batch.Fragments {
		if len(ef.Vector) == 0 {
			return warnings, lserrors.New(lserrors.ErrCodeValidationFailed,
				fmt.Sprintf("fragment %s has an empty vector", ef.Fragment.Number), nil)
		}
		if dims == 0 {
			dims = len(ef.Vector)
		}
		if len(ef.Vector) != dims {
			return warnings, lserrors.New(lserrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("fragment %s has %d dimensions, batch has %d",
					ef.Fragment.Number, len(ef.Vector), dims), nil)
		}
		if g.shortContentThreshold > 0 &&
			utf8.RuneCountInString(ef.Fragment.Content) < g.shortContentThreshold {
			warnings = append(warnings,
				fmt.Sprintf("fragment %s content is shorter than %d characters",
					ef.Fragment.Number, g.shortContentThreshold))
		}
		if g.slowGenerationThreshold > 0 &&
			ef.GenerationTime > g.slowGenerationThreshold.Seconds() {
			warnings = append(warnings,
				fmt.Sprintf("fragment %s generation took %.1fs",
					ef.Fragment.Number, ef.GenerationTime))
		}
	}
	for _, w := range warnings {
		g.logger.Warn("embedding validation", "law_id", batch.LawID, "detail", w)
	}
	return warnings, nil
}
