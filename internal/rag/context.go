package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

const (
	sourcePrefix = "Source: "
	titlePrefix  = "Title: "
)

// Searcher is the part of a table retrieval needs.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Chunk, error)
}

// GetContext retrieves the numResults closest chunks and renders them with their citations.
// An empty table yields "".
func GetContext(ctx context.Context, query string, table Searcher, numResults int) (string, error) {
	if numResults <= 0 {
		numResults = models.DefaultNumResults
	}
	chunks, err := table.Search(ctx, query, numResults)
	if err != nil {
		return "", fmt.Errorf("failed to search table: %w", err)
	}
	log.Debug().Str("query", query).Int("results", len(chunks)).Msg("Retrieved context")

	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		blocks = append(blocks, FormatChunk(c))
	}
	return strings.Join(blocks, models.ContextSeparator), nil
}

// FormatChunk renders "text\nSource: file - p. 1, 2" plus "\nTitle: t" when a title is set.
func FormatChunk(c models.Chunk) string {
	var parts []string
	if name := models.Deref(c.Metadata.Filename); name != "" {
		parts = append(parts, name)
	}
	if len(c.Metadata.PageNumbers) > 0 {
		pages := make([]string, len(c.Metadata.PageNumbers))
		for i, p := range c.Metadata.PageNumbers {
			pages[i] = strconv.Itoa(p)
		}
		parts = append(parts, "p. "+strings.Join(pages, ", "))
	}

	var sb strings.Builder
	sb.WriteString(c.Text)
	sb.WriteString("\n" + sourcePrefix)
	sb.WriteString(strings.Join(parts, " - "))
	if title := models.Deref(c.Metadata.Title); title != "" {
		sb.WriteString("\n" + titlePrefix + title)
	}
	return sb.String()
}

// Source is one retrieved block split back into its text and citation.
type Source struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Title  string `json:"title"`
}

// ParseContext reverses GetContext. Missing citations fall back to placeholder labels.
func ParseContext(retrieved string) []Source {
	if strings.TrimSpace(retrieved) == "" {
		return nil
	}

	var out []Source
	for _, block := range strings.Split(retrieved, models.ContextSeparator) {
		lines := strings.Split(block, "\n")
		src := Source{Source: models.UnknownSource, Title: models.UntitledSection}

		end := len(lines)
	scan:
		for end > 1 {
			line := lines[end-1]
			switch {
			case strings.HasPrefix(line, titlePrefix):
				if v := strings.TrimPrefix(line, titlePrefix); v != "" {
					src.Title = v
				}
			case strings.HasPrefix(line, sourcePrefix):
				if v := strings.TrimPrefix(line, sourcePrefix); v != "" {
					src.Source = v
				}
			default:
				break scan
			}
			end--
		}
		src.Text = strings.Join(lines[:end], "\n")
		out = append(out, src)
	}
	return out
}
