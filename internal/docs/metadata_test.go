package docs

import (
	"regexp"
	"testing"
)

func TestClassify_KnownFiles(t *testing.T) {
	c := Classify("salesforce_apex_developer_guide.pdf")
	if c.Type != "development" || c.Category != "core_programming" {
		t.Errorf("apex guide classification = %+v", c)
	}
	if c.Topics != "apex,triggers,classes,governor_limits" {
		t.Errorf("apex guide topics = %q", c.Topics)
	}

	c = Classify("salesforce_soql_sosl.pdf")
	if c.Type != "data" || c.Category != "querying" {
		t.Errorf("soql guide classification = %+v", c)
	}
}

func TestClassify_UnknownFileFallsBack(t *testing.T) {
	c := Classify("random_notes.pdf")
	if c.Type != "general" || c.Category != "unknown" || c.Topics != "general" {
		t.Errorf("unknown file classification = %+v", c)
	}
}

func TestChunkID_StableAndShort(t *testing.T) {
	a := ChunkID("guide.pdf", 3)
	b := ChunkID("guide.pdf", 3)
	if a != b {
		t.Errorf("ChunkID not stable: %q vs %q", a, b)
	}
	if len(a) != 8 {
		t.Errorf("len = %d, want 8", len(a))
	}
	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(a) {
		t.Errorf("ChunkID %q is not lowercase hex", a)
	}
}

func TestChunkID_DistinguishesPagesAndFiles(t *testing.T) {
	if ChunkID("guide.pdf", 1) == ChunkID("guide.pdf", 2) {
		t.Error("different pages share a chunk id")
	}
	if ChunkID("guide.pdf", 1) == ChunkID("other.pdf", 1) {
		t.Error("different files share a chunk id")
	}
}

func TestChunkID_SamePageSharesID(t *testing.T) {
	// Chunks split from the same page intentionally share one id; uniqueness
	// comes from chunk_index.
	if ChunkID("guide.pdf", 7) != ChunkID("guide.pdf", 7) {
		t.Error("same page should share a chunk id")
	}
}

func TestFlattenMetadata(t *testing.T) {
	flat := FlattenMetadata(map[string]any{
		"source_file": "guide.pdf",
		"page_number": 3,
		"score":       0.91,
		"indexed":     true,
		"topics":      []string{"apex", "triggers"},
		"mixed":       []any{"a", 1},
		"nested":      map[string]any{"k": "v"},
	})

	if flat["source_file"] != "guide.pdf" {
		t.Errorf("source_file = %v", flat["source_file"])
	}
	if flat["page_number"] != 3 {
		t.Errorf("page_number = %v", flat["page_number"])
	}
	if flat["score"] != 0.91 {
		t.Errorf("score = %v", flat["score"])
	}
	if flat["indexed"] != true {
		t.Errorf("indexed = %v", flat["indexed"])
	}
	if flat["topics"] != "apex,triggers" {
		t.Errorf("topics = %v", flat["topics"])
	}
	if flat["mixed"] != "a,1" {
		t.Errorf("mixed = %v", flat["mixed"])
	}
	if flat["nested"] != `{"k":"v"}` {
		t.Errorf("nested = %v", flat["nested"])
	}
	if len(flat) != 7 {
		t.Errorf("key count = %d, want 7 (no keys dropped)", len(flat))
	}
}
