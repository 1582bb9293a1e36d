package models

// Origin identifies the file a converted document came from.
type Origin struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// DocItem is a single block of extracted text (paragraph, table, list item ...)
type DocItem struct {
	Label    string   `json:"label"`
	Text     string   `json:"text"`
	Headings []string `json:"headings,omitempty"`
	Pages    []int    `json:"pages,omitempty"`
}

// Document is the structured representation produced by the parser.
type Document struct {
	Origin Origin    `json:"origin"`
	Items  []DocItem `json:"items"`
}

// DocChunk is a chunker output before it is turned into a stored Chunk.
type DocChunk struct {
	Text     string    `json:"text"`
	DocItems []DocItem `json:"doc_items"`
	Headings []string  `json:"headings,omitempty"`
	Origin   Origin    `json:"origin"`
}

// Item labels
const (
	LabelParagraph = "paragraph"
	LabelListItem  = "list_item"
	LabelTable     = "table"
	LabelCode      = "code"
	LabelQuote     = "quote"
)
