package index

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
)

// ErrIndexNotFound indicates no valid persisted index exists at the
// configured location; ingestion must be run before querying.
var ErrIndexNotFound = errors.New("no persisted index found")

const (
	dbFileName      = "index.db"
	sidecarFileName = "metadata.json"
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the persistent vector index: a SQLite chunk table plus a sidecar
// metadata file recording the corpus fingerprint. Single-writer: concurrent
// Rebuild/Add/RemoveBySource calls against one location are unsupported.
type Store struct {
	dir      string
	embedder Embedder
	db       *sql.DB
	logger   *slog.Logger
}

// Info summarizes the persisted index.
type Info struct {
	Count             int     `json:"count"`
	FingerprintPrefix string  `json:"fingerprint_prefix"`
	Directory         string  `json:"directory"`
	CreatedAt         float64 `json:"created_at"`
}

// sidecar mirrors the metadata.json layout next to the index database.
type sidecar struct {
	PDFFingerprint string  `json:"pdf_fingerprint"`
	DocumentCount  int     `json:"document_count"`
	CreatedAt      float64 `json:"created_at"`
}

// New creates a Store rooted at dir. The index is not opened until Load or
// Rebuild is called.
func New(dir string, embedder Embedder) *Store {
	return &Store{
		dir:      dir,
		embedder: embedder,
		logger:   slog.Default(),
	}
}

// Dir returns the directory currently backing the index. It differs from
// the configured directory only after a Rebuild fell back to a
// timestamp-suffixed location.
func (s *Store) Dir() string {
	return s.dir
}

// Close closes the underlying database, if open.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// open opens (or creates) the SQLite database under dir and ensures the
// chunk table exists.
func open(dir string) (*sql.DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS doc_chunks (
		id TEXT PRIMARY KEY,
		source_file TEXT NOT NULL,
		document_type TEXT NOT NULL,
		category TEXT NOT NULL,
		topics TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		chunk_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_size INTEGER NOT NULL,
		doc_size INTEGER NOT NULL DEFAULT 0,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating doc_chunks table: %w", err)
	}
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_doc_chunks_source ON doc_chunks(source_file)`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating source index: %w", err)
	}

	return db, nil
}

// Rebuild atomically replaces the entire persisted index with embeddings
// computed over chunks, then records the fingerprint of docDir and the
// chunk count in the sidecar.
//
// Embeddings are computed before the old index is touched, so an embedding
// outage aborts cleanly with the previous index intact. If the old index
// directory cannot be deleted (a reader may hold a lock on it), the new
// index is written to a timestamp-suffixed sibling instead of failing.
func (s *Store) Rebuild(ctx context.Context, chunks []docs.Chunk, docDir string) error {
	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}

	if s.db != nil {
		s.db.Close()
		s.db = nil
	}

	if _, err := os.Stat(s.dir); err == nil {
		if err := os.RemoveAll(s.dir); err != nil {
			fallback := fmt.Sprintf("%s_%d", s.dir, time.Now().Unix())
			s.logger.Warn("could not remove existing index, using alternate directory",
				"error", err, "directory", fallback)
			s.dir = fallback
		}
	}

	db, err := open(s.dir)
	if err != nil {
		return err
	}

	if err := insertChunks(db, chunks, vectors); err != nil {
		db.Close()
		return err
	}

	fp, err := Fingerprint(docDir)
	if err != nil {
		db.Close()
		return fmt.Errorf("fingerprinting %s: %w", docDir, err)
	}
	if err := writeSidecar(s.dir, fp, len(chunks)); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.logger.Info("index rebuilt", "chunks", len(chunks), "directory", s.dir)
	return nil
}

// Load attaches to an existing persisted index without recomputing
// embeddings. Missing directory, database, or sidecar yields
// ErrIndexNotFound; a corrupt database surfaces as a fatal error, never as
// a silently empty index.
func (s *Store) Load() error {
	for _, p := range []string{s.dir, filepath.Join(s.dir, dbFileName), filepath.Join(s.dir, sidecarFileName)} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %s", ErrIndexNotFound, s.dir)
		}
	}

	db, err := open(s.dir)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM doc_chunks").Scan(&count); err != nil {
		db.Close()
		return fmt.Errorf("reading index: %w", err)
	}

	s.db = db
	s.logger.Info("index loaded", "chunks", count, "directory", s.dir)
	return nil
}

// NeedsRebuild reports whether a full re-ingestion is required: no index on
// disk, an empty index, or a corpus fingerprint differing from the sidecar.
func (s *Store) NeedsRebuild(docDir string) bool {
	if _, err := os.Stat(s.dir); err != nil {
		s.logger.Info("no index directory found", "directory", s.dir)
		return true
	}

	db := s.db
	if db == nil {
		opened, err := open(s.dir)
		if err != nil {
			s.logger.Warn("could not open index, rebuild required", "error", err)
			return true
		}
		defer opened.Close()
		db = opened
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM doc_chunks").Scan(&count); err != nil {
		s.logger.Warn("could not count chunks, rebuild required", "error", err)
		return true
	}
	if count == 0 {
		s.logger.Info("index is empty")
		return true
	}

	current, err := Fingerprint(docDir)
	if err != nil {
		s.logger.Warn("could not fingerprint documents, rebuild required", "error", err)
		return true
	}
	meta, err := readSidecar(s.dir)
	if err != nil || meta.PDFFingerprint != current {
		s.logger.Info("documents changed since last build")
		return true
	}

	return false
}

// Add embeds and appends chunks for a single document in one batch, then
// refreshes the sidecar. It never triggers or requires a full rebuild.
func (s *Store) Add(ctx context.Context, chunks []docs.Chunk, sourcePath string) error {
	if s.db == nil {
		return errors.New("index not loaded")
	}
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if err := insertChunks(s.db, chunks, vectors); err != nil {
		return err
	}

	return s.refreshSidecar(filepath.Dir(sourcePath))
}

// RemoveBySource deletes every chunk whose source_file matches the basename
// of sourcePath with a single targeted predicate, then refreshes the
// sidecar.
func (s *Store) RemoveBySource(sourcePath string) error {
	if s.db == nil {
		return errors.New("index not loaded")
	}

	res, err := s.db.Exec("DELETE FROM doc_chunks WHERE source_file = ?", filepath.Base(sourcePath))
	if err != nil {
		return fmt.Errorf("deleting chunks for %s: %w", sourcePath, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	s.logger.Info("removed document from index", "file", filepath.Base(sourcePath), "chunks", n)

	return s.refreshSidecar(filepath.Dir(sourcePath))
}

func (s *Store) refreshSidecar(docDir string) error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM doc_chunks").Scan(&count); err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	fp, err := Fingerprint(docDir)
	if err != nil {
		return fmt.Errorf("fingerprinting %s: %w", docDir, err)
	}
	return writeSidecar(s.dir, fp, count)
}

// chunkScore tracks scan-phase candidates by row ID only; full rows are
// fetched for the top-K winners afterward.
type chunkScore struct {
	ID    string
	Score float32
}

// SimilaritySearch embeds query and returns up to k nearest chunks by
// cosine similarity, most-similar first.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]docs.Chunk, error) {
	if s.db == nil {
		return nil, errors.New("index not loaded")
	}
	if k <= 0 {
		return nil, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	qnorm := norm(qvec)
	if qnorm == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, embedding FROM doc_chunks")
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	h := &scoreHeap{}
	heap.Init(h)

	var buf []float32
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		score := cosine(qvec, buf, qnorm)
		if h.Len() < k {
			heap.Push(h, chunkScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = chunkScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	if h.Len() == 0 {
		return nil, nil
	}

	ordered := make([]string, h.Len())
	for i := len(ordered) - 1; i >= 0; i-- {
		ordered[i] = heap.Pop(h).(chunkScore).ID
	}
	return s.fetchChunks(ctx, ordered)
}

// fetchChunks returns full chunks for the given row IDs, preserving the
// given order.
func (s *Store) fetchChunks(ctx context.Context, ids []string) ([]docs.Chunk, error) {
	byID := make(map[string]docs.Chunk, len(ids))
	stmt, err := s.db.PrepareContext(ctx, `
		SELECT source_file, document_type, category, topics, page_number,
		       chunk_id, chunk_index, chunk_size, doc_size, text
		FROM doc_chunks WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("preparing fetch: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		var c docs.Chunk
		var sourceFile, docType, category, topics, chunkID string
		var pageNumber, chunkIndex, chunkSize, docSize int
		err := stmt.QueryRowContext(ctx, id).Scan(
			&sourceFile, &docType, &category, &topics, &pageNumber,
			&chunkID, &chunkIndex, &chunkSize, &docSize, &c.Text,
		)
		if err != nil {
			return nil, fmt.Errorf("fetching chunk %s: %w", id, err)
		}
		c.Meta = map[string]any{
			"source_file":   sourceFile,
			"document_type": docType,
			"category":      category,
			"topics":        topics,
			"page_number":   pageNumber,
			"chunk_id":      chunkID,
			"chunk_index":   chunkIndex,
			"chunk_size":    chunkSize,
			"doc_size":      docSize,
		}
		byID[id] = c
	}

	out := make([]docs.Chunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

// Info returns a summary of the persisted index.
func (s *Store) Info() (Info, error) {
	if s.db == nil {
		return Info{}, errors.New("index not loaded")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM doc_chunks").Scan(&count); err != nil {
		return Info{}, fmt.Errorf("counting chunks: %w", err)
	}
	meta, err := readSidecar(s.dir)
	if err != nil {
		return Info{}, fmt.Errorf("reading sidecar: %w", err)
	}

	prefix := meta.PDFFingerprint
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return Info{
		Count:             count,
		FingerprintPrefix: prefix,
		Directory:         s.dir,
		CreatedAt:         meta.CreatedAt,
	}, nil
}

// embedAll computes embeddings for all chunk texts with bounded concurrency.
// Any embedding failure aborts the whole batch.
func (s *Store) embedAll(ctx context.Context, chunks []docs.Chunk) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(chunks))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, c := range chunks {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gCtx, c.Text)
			if err != nil {
				return fmt.Errorf("embedding chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func insertChunks(db *sql.DB, chunks []docs.Chunk, vectors [][]float32) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO doc_chunks (id, source_file, document_type, category, topics,
			page_number, chunk_id, chunk_index, chunk_size, doc_size, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta := docs.FlattenMetadata(c.Meta)
		_, err := stmt.Exec(
			uuid.New().String(),
			metaString(meta, "source_file"),
			metaString(meta, "document_type"),
			metaString(meta, "category"),
			metaString(meta, "topics"),
			metaInt(meta, "page_number"),
			metaString(meta, "chunk_id"),
			metaInt(meta, "chunk_index"),
			metaInt(meta, "chunk_size"),
			metaInt(meta, "doc_size"),
			c.Text,
			encodeFloat32s(vectors[i]),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return fmt.Sprint(meta[key])
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func writeSidecar(dir, fingerprint string, count int) error {
	data, err := json.Marshal(sidecar{
		PDFFingerprint: fingerprint,
		DocumentCount:  count,
		CreatedAt:      float64(time.Now().UnixMilli()) / 1000,
	})
	if err != nil {
		return fmt.Errorf("marshalling sidecar: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, sidecarFileName), data, 0o644); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	return nil
}

func readSidecar(dir string) (sidecar, error) {
	data, err := os.ReadFile(filepath.Join(dir, sidecarFileName))
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return sidecar{}, fmt.Errorf("parsing sidecar: %w", err)
	}
	return meta, nil
}

// scoreHeap is a min-heap of chunkScore ordered by Score, used to keep the
// top-K candidates during the scan phase.
type scoreHeap []chunkScore

func (h scoreHeap) Len() int           { return len(h) }
func (h scoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h scoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x any)        { *h = append(*h, x.(chunkScore)) }
func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
