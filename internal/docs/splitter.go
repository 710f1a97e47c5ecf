package docs

import "strings"

// defaultSeparators is the boundary preference order: paragraph break,
// line break, sentence terminator, space, then raw characters.
var defaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// Splitter divides text into segments of at most chunkSize characters,
// preferring to break on the earliest separator present and repeating
// up to chunkOverlap trailing characters between adjacent segments.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a Splitter. Non-positive sizes fall back to the
// 1000/200 defaults.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 200
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split returns the ordered segments of text. Whitespace-only input yields
// no segments.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		splits = splitChars(text, s.chunkSize)
	} else {
		splits = strings.Split(text, sep)
	}

	var out []string
	var good []string
	for _, piece := range splits {
		if len(piece) <= s.chunkSize {
			if piece != "" {
				good = append(good, piece)
			}
			continue
		}
		out = append(out, s.merge(good, sep)...)
		good = nil
		if len(rest) == 0 {
			out = append(out, piece)
			continue
		}
		out = append(out, s.split(piece, rest)...)
	}
	out = append(out, s.merge(good, sep)...)
	return out
}

// merge greedily joins small splits back together up to chunkSize, carrying
// a tail of splits totalling at most chunkOverlap into the next segment.
func (s *Splitter) merge(splits []string, sep string) []string {
	if len(splits) == 0 {
		return nil
	}

	var segments []string
	var current []string
	total := 0

	sepLen := len(sep)
	for _, piece := range splits {
		pieceLen := len(piece)
		joiner := 0
		if len(current) > 0 {
			joiner = sepLen
		}
		if total+pieceLen+joiner > s.chunkSize && len(current) > 0 {
			if seg := strings.TrimSpace(strings.Join(current, sep)); seg != "" {
				segments = append(segments, seg)
			}
			// Drop leading splits until the carried tail fits the overlap
			// budget and leaves room for the incoming piece.
			for total > s.chunkOverlap || (total+pieceLen+sepLen > s.chunkSize && total > 0) {
				drop := len(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += pieceLen
		if len(current) > 1 {
			total += sepLen
		}
	}

	if seg := strings.TrimSpace(strings.Join(current, sep)); seg != "" {
		segments = append(segments, seg)
	}
	return segments
}

// splitChars breaks text into size-bounded runs. Reached only when an
// oversized run contains none of the preferred separators.
func splitChars(text string, size int) []string {
	if text == "" {
		return nil
	}
	var parts []string
	for len(text) > size {
		parts = append(parts, text[:size])
		text = text[size:]
	}
	parts = append(parts, text)
	return parts
}
