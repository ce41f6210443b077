package index

import (
	"strconv"

	"cragflow/internal/models"
)

// AssignIDs sets Metadata.ChunkID to "{source}:{page}:{index}" in place.
// The index counts consecutive chunks sharing a (source, page) pair and
// restarts at zero whenever the pair differs from the previous chunk, even
// if that pair was seen earlier in the sequence.
func AssignIDs(chunks []models.Document) []models.Document {
	lastPageID := ""
	current := 0
	for i := range chunks {
		pageID := chunks[i].Metadata.PageKey()
		if i > 0 && pageID == lastPageID {
			current++
		} else {
			current = 0
		}
		chunks[i].Metadata.ChunkID = pageID + ":" + strconv.Itoa(current)
		lastPageID = pageID
	}
	return chunks
}

// FilterNew drops chunks whose id is already stored, and repeats of an id
// within the batch. The first occurrence wins.
func FilterNew(chunks []models.Document, existing map[string]struct{}) []models.Document {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]models.Document, 0, len(chunks))
	for _, c := range chunks {
		id := c.Metadata.ChunkID
		if _, ok := existing[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, c)
	}
	return out
}
