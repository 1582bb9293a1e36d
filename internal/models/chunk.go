package models

import "sort"

// ChunkMetadata is the provenance stored next to every chunk.
// A nil field is persisted as null.
type ChunkMetadata struct {
	Filename    *string `json:"filename" yaml:"filename"`
	PageNumbers []int   `json:"page_numbers" yaml:"page_numbers"`
	Title       *string `json:"title" yaml:"title"`
}

// Chunk is one stored row of the vector table
type Chunk struct {
	Text     string        `json:"text"`
	Vector   []float32     `json:"vector,omitempty"`
	Metadata ChunkMetadata `json:"metadata"`
}

// MetadataFields lists the nested metadata attributes in persisted order.
var MetadataFields = []string{"filename", "page_numbers", "title"}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NormalizePages sorts and deduplicates page numbers. An empty set collapses to nil.
func NormalizePages(pages []int) []int {
	if len(pages) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(pages))
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
