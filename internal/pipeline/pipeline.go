// Package pipeline sequences statute processing: acquisition,
// structural extraction, normalization, embedding, and storage. It
// owns every component's lifecycle and reports structured outcomes
// instead of raising; stage failures never escape a document.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redwell/law-search/internal/collect"
	"github.com/redwell/law-search/internal/config"
	"github.com/redwell/law-search/internal/embed"
	"github.com/redwell/law-search/internal/lawxml"
	"github.com/redwell/law-search/internal/normalize"
	"github.com/redwell/law-search/internal/search"
	"github.com/redwell/law-search/internal/store"
)

// ProcessResult is the outcome of processing one statute.
type ProcessResult struct {
	LawID      string
	Success    bool
	Fragments  int
	Embeddings int
	Duration   time.Duration
	Err        string
}

// BulkResult aggregates a multi-statute run.
type BulkResult struct {
	Processed  int
	Succeeded  int
	Failed     int
	Skipped    int
	Fragments  int
	Embeddings int
	Duration   time.Duration
	Results    []ProcessResult
}

// Totals are running counters across the processor's lifetime.
type Totals struct {
	Processed  int64
	Succeeded  int64
	Failed     int64
	Fragments  int64
	Embeddings int64
}

// Processor wires the full ingestion pipeline from one configuration.
type Processor struct {
	cfg        *config.Config
	collector  *collect.Collector
	parser     *lawxml.Parser
	normalizer *normalize.Normalizer
	embedder   embed.Embedder
	generator  *embed.Generator
	store      *store.Store
	logger     *slog.Logger

	processed  atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	fragments  atomic.Int64
	embeddings atomic.Int64
}

// New constructs every pipeline component from cfg. The caller must
// Close the processor to release the embedder and the store.
func New(cfg *config.Config, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := embed.NewClient(cfg.Embedding, logger)
	embedder, err := embed.NewCache(client, cfg.Embedding.CacheDir, 0, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Path, search.Weights{
		Fulltext: cfg.Search.FulltextWeight,
		Vector:   cfg.Search.VectorWeight,
		Graph:    cfg.Search.GraphWeight,
	}, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}

	return &Processor{
		cfg:        cfg,
		collector:  collect.New(cfg.Collector, logger),
		parser:     lawxml.NewParser(logger),
		normalizer: normalize.New(logger),
		embedder:   embedder,
		generator:  embed.NewGenerator(embedder, cfg.Embedding, logger),
		store:      st,
		logger:     logger,
	}, nil
}

// Close releases the embedder and the store. Safe to call once on
// every exit path.
func (p *Processor) Close() error {
	embErr := p.embedder.Close()
	storeErr := p.store.Close()
	if embErr != nil {
		return embErr
	}
	return storeErr
}

// Store exposes the document store for read-side consumers.
func (p *Processor) Store() *store.Store { return p.store }

// Collector exposes the acquisition component.
func (p *Processor) Collector() *collect.Collector { return p.collector }

// ProcessSingle runs one statute through extraction, normalization,
// embedding, and storage. xmlPath overrides the convention-based
// inventory lookup; an empty path resolves through the collector,
// downloading when no valid local file exists. All failures, panics
// included, become a failed result.
func (p *Processor) ProcessSingle(ctx context.Context, lawID, xmlPath string) (result ProcessResult) {
	started := time.Now()
	result = ProcessResult{LawID: lawID}
	p.processed.Add(1)

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Err = fmt.Sprintf("panic during processing: %v", r)
		}
		result.Duration = time.Since(started)
		if result.Success {
			p.succeeded.Add(1)
			p.fragments.Add(int64(result.Fragments))
			p.embeddings.Add(int64(result.Embeddings))
			p.logger.Info("statute processed", "law_id", lawID,
				"fragments", result.Fragments, "duration", result.Duration)
		} else {
			p.failed.Add(1)
			p.logger.Error("statute processing failed", "law_id", lawID, "error", result.Err)
		}
	}()

	if xmlPath == "" {
		xmlPath = p.collector.FilePath(lawID)
		if collect.ValidateFile(xmlPath) != nil {
			dl := p.collector.Fetch(ctx, lawID)
			if dl.Err != nil {
				result.Err = dl.Err.Error()
				return result
			}
			xmlPath = dl.Path
		}
	}

	doc, err := p.parser.ParseFile(xmlPath)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	// The caller's law ID wins over the filename stem, and must win
	// everywhere: fragments keep their parse-time ID, so retarget them
	// too or one statute's records end up under two law_ids.
	if lawID != "" && lawID != doc.LawID {
		doc.LawID = lawID
		for i := range doc.Fragments {
			doc.Fragments[i].LawID = lawID
		}
	}

	normalized := p.normalizer.Document(doc)
	if len(normalized.Fragments) == 0 {
		result.Err = fmt.Sprintf("no usable fragments in %s", lawID)
		return result
	}
	if maxLen := p.cfg.Embedding.MaxFragmentLength; maxLen > 0 {
		split := make([]lawxml.Fragment, 0, len(normalized.Fragments))
		for _, frag := range normalized.Fragments {
			split = append(split, p.normalizer.Split(frag, maxLen)...)
		}
		normalized.Fragments = split
	}
	result.Fragments = len(normalized.Fragments)

	batch, err := p.generator.ForDocument(ctx, normalized)
	if err != nil {
		result.Err = err.Error()
		return result
	}
	if _, err := p.generator.Validate(batch); err != nil {
		result.Err = err.Error()
		return result
	}
	result.Embeddings = len(batch.Fragments)

	records := recordsFromBatch(normalized, batch)
	if _, err := p.store.InsertBatch(ctx, records); err != nil {
		result.Err = err.Error()
		return result
	}

	result.Success = true
	return result
}

func recordsFromBatch(doc *lawxml.StatuteDocument, batch *embed.EmbeddingBatch) []store.Record {
	records := make([]store.Record, len(batch.Fragments))
	for i, ef := range batch.Fragments {
		records[i] = store.Record{
			LawID:          ef.Fragment.LawID,
			ArticleNumber:  ef.Fragment.Number,
			Content:        ef.Fragment.Content,
			Vector:         ef.Vector,
			Metadata:       ef.Fragment.Metadata,
			ModelName:      ef.ModelName,
			GenerationTime: ef.GenerationTime,
			Category:       doc.Category,
			EffectiveDate:  ef.Fragment.EffectiveDate,
		}
	}
	return records
}

// ProcessAll acquires the configured document set, then processes
// every statute with a usable source. Acquisition failures are
// skipped, not attempted; document failures do not stop the run.
func (p *Processor) ProcessAll(ctx context.Context) BulkResult {
	started := time.Now()
	var bulk BulkResult

	downloads := p.collector.FetchAll(ctx)
	for _, dl := range downloads {
		if dl.Err != nil {
			bulk.Skipped++
			p.logger.Warn("skipping statute, acquisition failed",
				"law_id", dl.LawID, "error", dl.Err)
			continue
		}
		res := p.ProcessSingle(ctx, dl.LawID, dl.Path)
		bulk.Results = append(bulk.Results, res)
		bulk.Processed++
		if res.Success {
			bulk.Succeeded++
			bulk.Fragments += res.Fragments
			bulk.Embeddings += res.Embeddings
		} else {
			bulk.Failed++
		}
	}

	bulk.Duration = time.Since(started)
	p.logger.Info("bulk processing finished",
		"processed", bulk.Processed, "succeeded", bulk.Succeeded,
		"failed", bulk.Failed, "skipped", bulk.Skipped, "duration", bulk.Duration)
	return bulk
}

// Search embeds the query and runs hybrid retrieval over the store.
func (p *Processor) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	if limit <= 0 {
		limit = p.cfg.Search.MaxResults
	}
	queryVector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.logger.Warn("query embedding failed, searching fulltext only", "error", err)
		queryVector = nil
	}
	return p.store.SearchHybrid(ctx, query, queryVector, limit)
}

// Check is one validation checklist entry.
type Check struct {
	Name    string
	Passed  bool
	Warning bool
	Detail  string
}

// ValidationReport is the outcome of the post-ingestion checklist.
type ValidationReport struct {
	Checks []Check
	Valid  bool
}

// minIndexFloor is the lowest acceptable index count on a populated
// store (the three documents-table indexes).
const minIndexFloor = 3

// Validate runs the readiness checklist. Errors block downstream use;
// warnings do not affect overall validity.
func (p *Processor) Validate(ctx context.Context) *ValidationReport {
	report := &ValidationReport{Valid: true}
	fail := func(name, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, Detail: detail})
		report.Valid = false
	}
	pass := func(name, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, Passed: true, Detail: detail})
	}
	warn := func(name, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, Passed: true, Warning: true, Detail: detail})
	}

	if err := p.store.Ping(ctx); err != nil {
		fail("storage_reachable", err.Error())
		return report
	}
	pass("storage_reachable", "database responds")

	stats, err := p.store.Stats(ctx)
	if err != nil {
		fail("storage_stats", err.Error())
		return report
	}

	if stats.Documents > 0 {
		pass("records_present", fmt.Sprintf("%d records stored", stats.Documents))
	} else {
		warn("records_present", "no records stored")
	}

	if stats.IndexCount >= minIndexFloor {
		pass("indexes_present", fmt.Sprintf("%d indexes", stats.IndexCount))
	} else {
		warn("indexes_present", fmt.Sprintf("%d indexes, expected at least %d",
			stats.IndexCount, minIndexFloor))
	}

	if stats.VectorCount > 0 {
		pass("vectors_indexed", fmt.Sprintf("%d vectors", stats.VectorCount))
	} else {
		warn("vectors_indexed", "no vectors indexed, vector channel will be empty")
	}

	// An unready embedder blocks both ingestion and query embedding,
	// so it fails validation outright. An empty store merely warns.
	if err := p.embedder.Available(ctx); err != nil {
		fail("embedder_available", err.Error())
	} else {
		pass("embedder_available", p.embedder.ModelName())
	}

	return report
}

// StatusReport summarizes store and inventory state for reporting.
type StatusReport struct {
	Stats          *store.Stats
	InventoryFiles int
	InventoryValid int
	ModelName      string
	DatabasePath   string
	DataDir        string
	Totals         Totals
}

func (p *Processor) Status(ctx context.Context) (*StatusReport, error) {
	stats, err := p.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	files, err := p.collector.Inventory()
	if err != nil {
		return nil, err
	}
	valid := 0
	for _, f := range files {
		if f.Valid {
			valid++
		}
	}
	return &StatusReport{
		Stats:          stats,
		InventoryFiles: len(files),
		InventoryValid: valid,
		ModelName:      p.embedder.ModelName(),
		DatabasePath:   p.cfg.Storage.Path,
		DataDir:        p.cfg.Collector.DataDir,
		Totals: Totals{
			Processed:  p.processed.Load(),
			Succeeded:  p.succeeded.Load(),
			Failed:     p.failed.Load(),
			Fragments:  p.fragments.Load(),
			Embeddings: p.embeddings.Load(),
		},
	}, nil
}

// CleanupOlderThan removes aged store records and inventory files.
func (p *Processor) CleanupOlderThan(ctx context.Context, days int) (records, files int, err error) {
	records, err = p.store.CleanupOlderThan(ctx, days)
	if err != nil {
		return 0, 0, err
	}
	files, err = p.collector.CleanupOldFiles(days)
	if err != nil {
		return records, 0, err
	}
	return records, files, nil
}
