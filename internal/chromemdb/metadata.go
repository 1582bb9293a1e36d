package chromemdb

import (
	"encoding/json"

	"document-qa/internal/models"
)

const (
	keyFilename    = "filename"
	keyPageNumbers = "page_numbers"
	keyTitle       = "title"
)

// encodeMetadata flattens chunk metadata into chromem's string map. Null fields are left out.
func encodeMetadata(md models.ChunkMetadata) map[string]string {
	out := make(map[string]string, 3)
	if md.Filename != nil {
		out[keyFilename] = *md.Filename
	}
	if len(md.PageNumbers) > 0 {
		b, _ := json.Marshal(md.PageNumbers)
		out[keyPageNumbers] = string(b)
	}
	if md.Title != nil {
		out[keyTitle] = *md.Title
	}
	return out
}

func decodeMetadata(m map[string]string) models.ChunkMetadata {
	var md models.ChunkMetadata
	if v, ok := m[keyFilename]; ok {
		md.Filename = &v
	}
	if v, ok := m[keyPageNumbers]; ok {
		var pages []int
		if err := json.Unmarshal([]byte(v), &pages); err == nil && len(pages) > 0 {
			md.PageNumbers = pages
		}
	}
	if v, ok := m[keyTitle]; ok {
		md.Title = &v
	}
	return md
}
