package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"document-qa/internal/config"
)

const defaultEncoding = "cl100k_base"

// Tokenizer counts tokens the way the embedding model does.
type Tokenizer interface {
	Count(text string) int
}

type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// WordTokenizer approximates tokens with whitespace separated words
type WordTokenizer struct{}

func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// NewTokenizer builds the tokenizer selected in the chunking config
func NewTokenizer(cfg *config.ChunkingConfig) (Tokenizer, error) {
	switch cfg.Tokenizer {
	case "words":
		return WordTokenizer{}, nil
	case "tiktoken", "":
		return NewTiktokenTokenizer(cfg.Encoding)
	default:
		return nil, fmt.Errorf("unsupported tokenizer: %s", cfg.Tokenizer)
	}
}
