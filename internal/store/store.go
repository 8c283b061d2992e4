// Package store persists embedded statute fragments in SQLite and
// serves full-text, vector, and hybrid retrieval over them. Full-text
// ranking uses the FTS5 bm25() function, vector ranking an in-memory
// HNSW index rebuilt from the documents table on open.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	lserrors "github.com/redwell/law-search/internal/errors"
	"github.com/redwell/law-search/internal/search"
)

// Store is the document store. Safe for interleaved calls from one
// logical pipeline; the SQLite pool is pinned to a single connection.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	vectors *vectorIndex
	path    string
	weights search.Weights
	fuser   *search.Fuser
	logger  *slog.Logger
	closed  bool
}

// Open opens or creates the store at path. An empty path opens an
// in-memory database. The vector index is rebuilt from persisted rows.
func Open(path string, weights search.Weights, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
	}

	// Single writer prevents lock contention under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores DSN pragma parameters, set explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
		}
	}

	s := &Store{
		db:      db,
		vectors: newVectorIndex(),
		path:    path,
		weights: weights,
		fuser:   search.NewFuser(weights, logger),
		logger:  logger,
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
	}
	if err := s.rebuildVectorIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per embedded fragment. key is the storage key; the
	-- (law_id, article_number) pair is indexed but not unique.
	CREATE TABLE IF NOT EXISTS documents (
		key TEXT PRIMARY KEY,
		law_id TEXT NOT NULL,
		article_number TEXT NOT NULL,
		content TEXT NOT NULL,
		vector BLOB,
		metadata TEXT,
		model_name TEXT,
		generation_time REAL NOT NULL DEFAULT 0,
		category TEXT,
		effective_date TEXT,
		inserted_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_law_article
		ON documents(law_id, article_number);
	CREATE INDEX IF NOT EXISTS idx_documents_effective_date
		ON documents(effective_date);
	CREATE INDEX IF NOT EXISTS idx_documents_inserted_at
		ON documents(inserted_at);

	-- Reserved for the graph channel: statute and article cross
	-- references. Populated by a future relationship extractor.
	CREATE TABLE IF NOT EXISTS law_relationships (
		from_law_id TEXT NOT NULL,
		to_law_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		PRIMARY KEY (from_law_id, to_law_id, relation)
	);
	CREATE TABLE IF NOT EXISTS article_relationships (
		from_key TEXT NOT NULL,
		to_key TEXT NOT NULL,
		relation TEXT NOT NULL,
		PRIMARY KEY (from_key, to_key, relation)
	);

	-- FTS5 virtual table for bm25-ranked full-text retrieval.
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
		doc_key UNINDEXED,
		content,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) rebuildVectorIndex() error {
	rows, err := s.db.Query(`SELECT key, vector FROM documents WHERE vector IS NOT NULL`)
	if err != nil {
		return lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
		}
		vec := decodeVector(blob)
		if len(vec) == 0 {
			continue
		}
		if err := s.vectors.Add(key, vec); err != nil {
			s.logger.Warn("skipping vector during index rebuild", "key", key, "error", err)
			continue
		}
		loaded++
	}
	if err := rows.Err(); err != nil {
		return lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
	}
	if loaded > 0 {
		s.logger.Info("vector index rebuilt", "vectors", loaded)
	}
	return rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return lserrors.Wrap(lserrors.ErrCodeStorageConnect, err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Insert persists one record, assigning a ULID storage key when none
// is set, and indexes it for both retrieval channels.
func (s *Store) Insert(ctx context.Context, rec Record) (string, error) {
	keys, err := s.InsertBatch(ctx, []Record{rec})
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "", lserrors.New(lserrors.ErrCodeStorageInsert, "record was not persisted", nil)
	}
	return keys[0], nil
}

// InsertBatch persists records in one transaction. A record that fails
// to insert is logged, skipped, and omitted from the returned key list;
// the remaining records still commit.
func (s *Store) InsertBatch(ctx context.Context, recs []Record) ([]string, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, lserrors.New(lserrors.ErrCodeStorageConnect, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageInsert, err)
	}
	defer func() { _ = tx.Rollback() }()

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (key, law_id, article_number, content, vector,
			metadata, model_name, generation_time, category, effective_date, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageInsert, err)
	}
	defer docStmt.Close()

	// FTS5 virtual tables do not support REPLACE, delete first.
	ftsDeleteStmt, err := tx.PrepareContext(ctx,
		`DELETE FROM fts_content WHERE doc_key = ?`)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageInsert, err)
	}
	defer ftsDeleteStmt.Close()

	ftsInsertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_content(doc_key, content) VALUES (?, ?)`)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageInsert, err)
	}
	defer ftsInsertStmt.Close()

	// A failed statement only aborts that statement, so one bad record
	// is skipped without losing the rest of the batch.
	keys := make([]string, 0, len(recs))
	inserted := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Key == "" {
			rec.Key = ulid.Make().String()
		}
		if rec.InsertedAt.IsZero() {
			rec.InsertedAt = time.Now().UTC()
		}

		var metadata []byte
		if rec.Metadata != nil {
			metadata, err = json.Marshal(rec.Metadata)
			if err != nil {
				s.logger.Warn("record skipped, metadata not serializable",
					"law_id", rec.LawID, "article_number", rec.ArticleNumber, "error", err)
				continue
			}
		}

		if _, err := docStmt.ExecContext(ctx,
			rec.Key, rec.LawID, rec.ArticleNumber, rec.Content,
			encodeVector(rec.Vector), metadata, rec.ModelName,
			rec.GenerationTime, rec.Category, rec.EffectiveDate,
			rec.InsertedAt.Format(time.RFC3339),
		); err != nil {
			s.logger.Warn("record skipped, insert failed",
				"law_id", rec.LawID, "article_number", rec.ArticleNumber, "error", err)
			continue
		}

		if _, err := ftsDeleteStmt.ExecContext(ctx, rec.Key); err != nil {
			s.logger.Warn("stale full-text row not cleared",
				"key", rec.Key, "error", err)
		}
		if _, err := ftsInsertStmt.ExecContext(ctx, rec.Key, rec.Content); err != nil {
			// Keep documents and fts_content paired: drop the row rather
			// than persist a record invisible to full-text search.
			s.logger.Warn("record skipped, full-text indexing failed",
				"key", rec.Key, "error", err)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM documents WHERE key = ?`, rec.Key); err != nil {
				return nil, lserrors.Wrap(lserrors.ErrCodeStorageInsert, err)
			}
			continue
		}

		keys = append(keys, rec.Key)
		inserted = append(inserted, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageInsert, err)
	}

	// Index vectors only after the transaction commits, so a rollback
	// cannot leave phantom entries in the graph.
	for i, rec := range inserted {
		if len(rec.Vector) == 0 {
			continue
		}
		if err := s.vectors.Add(keys[i], rec.Vector); err != nil {
			s.logger.Warn("record persisted but not vector-indexed",
				"key", keys[i], "error", err)
		}
	}
	return keys, nil
}

// GetByKey returns one record, or nil when the key is unknown.
func (s *Store) GetByKey(ctx context.Context, key string) (*Record, error) {
	rows, err := s.queryRecords(ctx, `WHERE key = ?`, key)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetByLawID returns all fragments of one statute in article order.
func (s *Store) GetByLawID(ctx context.Context, lawID string) ([]Record, error) {
	return s.queryRecords(ctx, `WHERE law_id = ? ORDER BY article_number`, lawID)
}

const recordColumns = `key, law_id, article_number, content, vector,
	metadata, model_name, generation_time, category, effective_date, inserted_at`

func (s *Store) queryRecords(ctx context.Context, clause string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM documents `+clause, args...)
	if err != nil {
		return nil, lserrors.StorageError("document query failed", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var rec Record
	var blob, metadata []byte
	var insertedAt string
	if err := rows.Scan(&rec.Key, &rec.LawID, &rec.ArticleNumber, &rec.Content,
		&blob, &metadata, &rec.ModelName, &rec.GenerationTime,
		&rec.Category, &rec.EffectiveDate, &insertedAt); err != nil {
		return Record{}, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}
	rec.Vector = decodeVector(blob)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return Record{}, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
		}
	}
	if ts, err := time.Parse(time.RFC3339, insertedAt); err == nil {
		rec.InsertedAt = ts
	}
	return rec, nil
}

// SearchFullText returns up to limit bm25-ranked matches, best first.
// Scores are negated bm25() values so that higher is better.
func (s *Store) SearchFullText(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_key, bm25(fts_content) AS score
		FROM fts_content
		WHERE content MATCH ?
		ORDER BY score
		LIMIT ?`, ftsQuery(query), limit)
	if err != nil {
		// FTS5 rejects queries it cannot parse, treat as no results.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}
	defer rows.Close()

	var hits []search.Hit
	for rows.Next() {
		var h search.Hit
		if err := rows.Scan(&h.Key, &h.Score); err != nil {
			return nil, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
		}
		h.Score = -h.Score
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery quotes each term so statute text containing FTS5 operator
// characters cannot break the MATCH expression.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// SearchVector returns up to limit cosine-similarity matches, best
// first, as scores in [0,1].
func (s *Store) SearchVector(ctx context.Context, queryVector []float32, limit int) ([]search.Hit, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return nil, nil
	}
	vhits, err := s.vectors.Search(queryVector, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]search.Hit, len(vhits))
	for i, vh := range vhits {
		hits[i] = search.Hit{Key: vh.ID, Score: vh.Score}
	}
	return hits, nil
}

// SearchResult is one fused match with its persisted record.
type SearchResult struct {
	Record   Record
	Score    float64
	Channels map[search.Channel]float64
}

// SearchHybrid runs both retrieval channels with 2x overfetch and
// fuses them. A failing channel contributes an empty list and is
// logged; only total storage failure returns an error.
func (s *Store) SearchHybrid(ctx context.Context, query string, queryVector []float32, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	overfetch := 2 * limit

	fulltext, err := s.SearchFullText(ctx, query, overfetch)
	if err != nil {
		s.logger.Warn("fulltext channel failed, fusing without it", "error", err)
		fulltext = nil
	}
	vector, err := s.SearchVector(ctx, queryVector, overfetch)
	if err != nil {
		s.logger.Warn("vector channel failed, fusing without it", "error", err)
		vector = nil
	}

	fused := s.fuser.Fuse(fulltext, vector, limit)
	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		rec, err := s.GetByKey(ctx, f.Key)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		results = append(results, SearchResult{
			Record:   *rec,
			Score:    f.Score,
			Channels: f.Channels,
		})
	}
	return results, nil
}

// Stats summarizes store contents for status reporting.
type Stats struct {
	Documents            int64
	LawRelationships     int64
	ArticleRelationships int64
	VectorCount          int
	IndexCount           int
	SizeBytes            int64
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{VectorCount: s.vectors.Len()}

	counts := map[string]*int64{
		"documents":             &st.Documents,
		"law_relationships":     &st.LawRelationships,
		"article_relationships": &st.ArticleRelationships,
	}
	for table, dst := range counts {
		if err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(dst); err != nil {
			return nil, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
		}
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index'`).Scan(&st.IndexCount); err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			st.SizeBytes = info.Size()
		}
	}
	return st, nil
}

// CleanupOlderThan deletes records inserted before the cutoff and
// returns the number removed. Not transactional with other writers.
func (s *Store) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, lserrors.New(lserrors.ErrCodeStorageConnect, "store is closed", nil)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM documents WHERE inserted_at < ?`, cutoff)
	if err != nil {
		return 0, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
			return 0, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM fts_content WHERE doc_key = ?`, key); err != nil {
			return 0, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, lserrors.Wrap(lserrors.ErrCodeStorageQuery, err)
	}

	s.vectors.Remove(keys)
	s.logger.Info("cleaned up old records", "removed", len(keys), "cutoff", cutoff)
	return len(keys), nil
}
