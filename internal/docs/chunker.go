package docs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Processor loads PDF documents and splits them into metadata-tagged chunks.
type Processor struct {
	splitter *Splitter
	logger   *slog.Logger
}

// NewProcessor creates a Processor splitting into chunkSize-character
// segments with chunkOverlap characters of overlap.
func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	return &Processor{
		splitter: NewSplitter(chunkSize, chunkOverlap),
		logger:   slog.Default(),
	}
}

// ProcessDir chunks every PDF in dir, visiting files in sorted name order
// for a deterministic chunk sequence. Per-file failures are logged and
// skipped, never aborting the batch. chunk_index is reattached as the
// position in the full corpus-wide sequence.
func (p *Processor) ProcessDir(dir string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading document directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pdf") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var all []Chunk
	for _, name := range names {
		chunks, err := p.ProcessFile(filepath.Join(dir, name))
		if err != nil {
			p.logger.Warn("skipping document", "file", name, "error", err)
			continue
		}
		all = append(all, chunks...)
	}

	for i := range all {
		all[i].Meta["chunk_index"] = i
	}
	return all, nil
}

// ProcessFile chunks a single PDF. A document with no extractable text
// yields zero chunks, not an error. chunk_index is file-local; ProcessDir
// recomputes it across the whole batch.
func (p *Processor) ProcessFile(path string) ([]Chunk, error) {
	pages, err := loadPages(path)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(path)
	class := Classify(filename)

	var chunks []Chunk
	for i, page := range pages {
		pageNumber := i + 1
		pageMeta := map[string]any{
			"source_file":   filename,
			"document_type": class.Type,
			"category":      class.Category,
			"topics":        class.Topics,
			"page_number":   pageNumber,
			"chunk_id":      ChunkID(filename, pageNumber),
			"doc_size":      len(page),
		}

		for _, segment := range p.splitter.Split(page) {
			meta := FlattenMetadata(pageMeta)
			meta["chunk_index"] = len(chunks)
			meta["chunk_size"] = len(segment)
			chunks = append(chunks, Chunk{Text: segment, Meta: meta})
		}
	}
	return chunks, nil
}

// loadPages extracts plain text per page, 1-based page order preserved.
func loadPages(path string) (pages []string, err error) {
	// The pdf library panics on some malformed files; convert to an error
	// so a corrupt document skips instead of taking down the batch.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d of %s: %w", i, path, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
