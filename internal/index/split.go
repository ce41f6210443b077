package index

import (
	"strings"

	"cragflow/internal/models"
)

// Split cuts each document into overlapping windows of at most chunkSize
// runes. Chunks keep their parent's metadata and document order.
func Split(docs []models.Document, chunkSize, overlap int) []models.Document {
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		for _, part := range windows(d.Content, chunkSize, overlap) {
			meta := d.Metadata
			meta.ChunkID = ""
			out = append(out, models.Document{Content: part, Metadata: meta})
		}
	}
	return out
}

// Cut points prefer a paragraph break, then a line break, then a space,
// as long as that keeps the window over half full.
var separators = []string{"\n\n", "\n", " "}

func windows(text string, size, overlap int) []string {
	if size <= 0 {
		size = 2048
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastBreak(runes[start:end]); cut > size/2 {
			end = start + cut
		}
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			out = append(out, part)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// lastBreak returns the offset just past the last separator in w, or 0.
func lastBreak(w []rune) int {
	s := string(w)
	for _, sep := range separators {
		if i := strings.LastIndex(s, sep); i > 0 {
			return len([]rune(s[:i])) + len([]rune(sep))
		}
	}
	return 0
}
