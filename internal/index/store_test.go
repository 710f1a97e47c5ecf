package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DeividasGr/Salesforce-Architecture-and-Best-Practices-Advisor/internal/docs"
)

// wordEmbedder produces deterministic vectors from topic-word counts so
// similarity ordering is predictable in tests.
type wordEmbedder struct{}

func (wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "apex")),
		float32(strings.Count(lower, "soql")),
		1,
	}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding backend down")
}

func testChunk(text, sourceFile string, page int) docs.Chunk {
	return docs.Chunk{
		Text: text,
		Meta: map[string]any{
			"source_file":   sourceFile,
			"document_type": "development",
			"category":      "core_programming",
			"topics":        "apex,triggers",
			"page_number":   page,
			"chunk_id":      docs.ChunkID(sourceFile, page),
			"chunk_index":   0,
			"chunk_size":    len(text),
			"doc_size":      len(text),
		},
	}
}

func setupStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	base := t.TempDir()
	docDir := filepath.Join(base, "pdfs")
	indexDir := filepath.Join(base, "index")

	s := New(indexDir, wordEmbedder{})
	t.Cleanup(func() { s.Close() })
	return s, indexDir, docDir
}

func mustMkdirWithPDFs(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	for _, name := range names {
		writePDF(t, dir, name, "content of "+name)
	}
}

func TestRebuildAndSearch(t *testing.T) {
	s, _, docDir := setupStore(t)
	mustMkdirWithPDFs(t, docDir, "guide.pdf")

	chunks := []docs.Chunk{
		testChunk("apex apex apex governor limits", "guide.pdf", 1),
		testChunk("soql query optimization", "guide.pdf", 2),
		testChunk("general platform overview", "guide.pdf", 3),
	}
	if err := s.Rebuild(context.Background(), chunks, docDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	got, err := s.SimilaritySearch(context.Background(), "apex apex", 2)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !strings.Contains(got[0].Text, "apex") {
		t.Errorf("top result = %q, want the apex chunk", got[0].Text)
	}

	// Metadata survives the round trip with scalar types intact.
	if got[0].Meta["source_file"] != "guide.pdf" {
		t.Errorf("source_file = %v", got[0].Meta["source_file"])
	}
	if got[0].Meta["page_number"] != 1 {
		t.Errorf("page_number = %v, want 1", got[0].Meta["page_number"])
	}
	if got[0].Meta["chunk_id"] != docs.ChunkID("guide.pdf", 1) {
		t.Errorf("chunk_id = %v", got[0].Meta["chunk_id"])
	}
}

func TestSimilaritySearch_KLargerThanCorpus(t *testing.T) {
	s, _, docDir := setupStore(t)
	mustMkdirWithPDFs(t, docDir, "guide.pdf")

	chunks := []docs.Chunk{testChunk("apex basics", "guide.pdf", 1)}
	if err := s.Rebuild(context.Background(), chunks, docDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	got, err := s.SimilaritySearch(context.Background(), "apex", 10)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestLoad_MissingIndex(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-built"), wordEmbedder{})
	err := s.Load()
	if !errors.Is(err, ErrIndexNotFound) {
		t.Errorf("Load error = %v, want ErrIndexNotFound", err)
	}
}

func TestNeedsRebuild(t *testing.T) {
	s, _, docDir := setupStore(t)
	mustMkdirWithPDFs(t, docDir, "guide.pdf")

	if !s.NeedsRebuild(docDir) {
		t.Error("fresh store should need a rebuild")
	}

	chunks := []docs.Chunk{testChunk("apex basics", "guide.pdf", 1)}
	if err := s.Rebuild(context.Background(), chunks, docDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if s.NeedsRebuild(docDir) {
		t.Error("unchanged corpus should not need a rebuild")
	}

	mustMkdirWithPDFs(t, docDir, "extra.pdf")
	if !s.NeedsRebuild(docDir) {
		t.Error("changed corpus should need a rebuild")
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	s, _, docDir := setupStore(t)
	mustMkdirWithPDFs(t, docDir, "guide.pdf")

	chunks := []docs.Chunk{
		testChunk("apex basics", "guide.pdf", 1),
		testChunk("soql basics", "guide.pdf", 2),
	}
	for i := 0; i < 2; i++ {
		if err := s.Rebuild(context.Background(), chunks, docDir); err != nil {
			t.Fatalf("Rebuild %d failed: %v", i+1, err)
		}
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Count != 2 {
		t.Errorf("Count = %d, want 2 (no duplicates after re-ingestion)", info.Count)
	}
}

func TestAddAndRemoveBySource(t *testing.T) {
	s, _, docDir := setupStore(t)
	mustMkdirWithPDFs(t, docDir, "guide.pdf")

	if err := s.Rebuild(context.Background(), []docs.Chunk{
		testChunk("apex basics", "guide.pdf", 1),
	}, docDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	mustMkdirWithPDFs(t, docDir, "extra.pdf")
	added := []docs.Chunk{
		testChunk("soql deep dive", "extra.pdf", 1),
		testChunk("soql joins", "extra.pdf", 2),
	}
	if err := s.Add(context.Background(), added, filepath.Join(docDir, "extra.pdf")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	info, _ := s.Info()
	if info.Count != 3 {
		t.Fatalf("Count after Add = %d, want 3", info.Count)
	}
	if s.NeedsRebuild(docDir) {
		t.Error("sidecar fingerprint should be refreshed by Add")
	}

	if err := s.RemoveBySource(filepath.Join(docDir, "extra.pdf")); err != nil {
		t.Fatalf("RemoveBySource failed: %v", err)
	}
	info, _ = s.Info()
	if info.Count != 1 {
		t.Errorf("Count after RemoveBySource = %d, want 1", info.Count)
	}
}

func TestRebuild_EmbedFailureKeepsOldIndex(t *testing.T) {
	base := t.TempDir()
	docDir := filepath.Join(base, "pdfs")
	mustMkdirWithPDFs(t, docDir, "guide.pdf")
	indexDir := filepath.Join(base, "index")

	good := New(indexDir, wordEmbedder{})
	if err := good.Rebuild(context.Background(), []docs.Chunk{
		testChunk("apex basics", "guide.pdf", 1),
	}, docDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	good.Close()

	bad := New(indexDir, failingEmbedder{})
	err := bad.Rebuild(context.Background(), []docs.Chunk{
		testChunk("new content", "guide.pdf", 1),
	}, docDir)
	if err == nil {
		t.Fatal("Rebuild with failing embedder should error")
	}
	bad.Close()

	// The previous index is still loadable and complete.
	reopened := New(indexDir, wordEmbedder{})
	defer reopened.Close()
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load after failed rebuild: %v", err)
	}
	info, err := reopened.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if info.Count != 1 {
		t.Errorf("Count = %d, want 1", info.Count)
	}
}

func TestSimilaritySearch_NotLoaded(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "idx"), wordEmbedder{})
	if _, err := s.SimilaritySearch(context.Background(), "apex", 3); err == nil {
		t.Error("expected error on unloaded store")
	}
}

func TestInfo_FingerprintPrefix(t *testing.T) {
	s, _, docDir := setupStore(t)
	mustMkdirWithPDFs(t, docDir, "guide.pdf")

	if err := s.Rebuild(context.Background(), []docs.Chunk{
		testChunk("apex basics", "guide.pdf", 1),
	}, docDir); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if len(info.FingerprintPrefix) != 8 {
		t.Errorf("FingerprintPrefix = %q, want 8 chars", info.FingerprintPrefix)
	}
	fp, _ := Fingerprint(docDir)
	if !strings.HasPrefix(fp, info.FingerprintPrefix) {
		t.Errorf("prefix %q does not match corpus fingerprint %q", info.FingerprintPrefix, fp)
	}
}
