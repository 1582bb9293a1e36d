package chunker

import (
	"fmt"
	"slices"

	"github.com/tmc/langchaingo/textsplitter"

	"document-qa/internal/models"
)

// HybridChunker starts from the document structure, splits items that exceed
// the token limit and merges small neighbours that share a heading path.
type HybridChunker struct {
	tokenizer  Tokenizer
	maxTokens  int
	mergePeers bool
	splitter   textsplitter.RecursiveCharacter
}

type Option func(*HybridChunker)

func WithMaxTokens(n int) Option {
	return func(c *HybridChunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithMergePeers(merge bool) Option {
	return func(c *HybridChunker) {
		c.mergePeers = merge
	}
}

func NewHybridChunker(tokenizer Tokenizer, opts ...Option) *HybridChunker {
	c := &HybridChunker{
		tokenizer:  tokenizer,
		maxTokens:  models.DefaultMaxTokens,
		mergePeers: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.maxTokens),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithLenFunc(tokenizer.Count),
	)
	return c
}

func (c *HybridChunker) MaxTokens() int {
	return c.maxTokens
}

// Chunk returns the chunks of doc in document order. A nil document has no chunks.
func (c *HybridChunker) Chunk(doc *models.Document) ([]models.DocChunk, error) {
	if doc == nil {
		return nil, nil
	}

	var chunks []models.DocChunk
	for _, item := range doc.Items {
		if item.Text == "" {
			continue
		}
		base := models.DocChunk{
			Text:     item.Text,
			DocItems: []models.DocItem{item},
			Headings: item.Headings,
			Origin:   doc.Origin,
		}
		if c.tokenizer.Count(item.Text) <= c.maxTokens {
			chunks = append(chunks, base)
			continue
		}

		pieces, err := c.splitter.SplitText(item.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split item: %w", err)
		}
		for _, p := range pieces {
			if p == "" {
				continue
			}
			piece := base
			piece.Text = p
			chunks = append(chunks, piece)
		}
	}

	if c.mergePeers {
		chunks = c.merge(chunks)
	}
	return chunks, nil
}

func (c *HybridChunker) merge(chunks []models.DocChunk) []models.DocChunk {
	if len(chunks) < 2 {
		return chunks
	}
	out := []models.DocChunk{chunks[0]}
	for _, next := range chunks[1:] {
		last := &out[len(out)-1]
		if slices.Equal(last.Headings, next.Headings) {
			joined := last.Text + "\n" + next.Text
			if c.tokenizer.Count(joined) <= c.maxTokens {
				last.Text = joined
				last.DocItems = appendItems(last.DocItems, next.DocItems)
				continue
			}
		}
		out = append(out, next)
	}
	return out
}

// appendItems appends without duplicating an item shared by two split pieces
func appendItems(dst, src []models.DocItem) []models.DocItem {
	out := slices.Clone(dst)
	for _, it := range src {
		if len(out) > 0 && sameItem(out[len(out)-1], it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func sameItem(a, b models.DocItem) bool {
	return a.Label == b.Label && a.Text == b.Text &&
		slices.Equal(a.Headings, b.Headings) && slices.Equal(a.Pages, b.Pages)
}
