package rag

import (
	"context"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/store"
)

// SystemPrompt instructs the model to answer only from the retrieved context.
func SystemPrompt(retrieved string) string {
	return fmt.Sprintf(models.SystemPromptTemplate, retrieved)
}

// Session is the conversation state carried between questions.
type Session struct {
	Messages       []models.Message `json:"messages"`
	ProcessedFiles []string         `json:"processed_files"`
}

// NewFiles drops the paths whose base name was already ingested in this session.
func (s Session) NewFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if !slices.Contains(s.ProcessedFiles, filepath.Base(p)) {
			out = append(out, p)
		}
	}
	return out
}

// MarkProcessed returns a copy of s that remembers the base names of paths.
func (s Session) MarkProcessed(paths []string) Session {
	files := slices.Clone(s.ProcessedFiles)
	for _, p := range paths {
		name := filepath.Base(p)
		if !slices.Contains(files, name) {
			files = append(files, name)
		}
	}
	s.ProcessedFiles = files
	return s
}

// ClearHistory returns a copy of s without messages.
func (s Session) ClearHistory() Session {
	s.Messages = nil
	return s
}

func (s Session) with(m models.Message) Session {
	s.Messages = append(slices.Clone(s.Messages), m)
	return s
}

// Answer is the outcome of one question.
type Answer struct {
	Text    string   `json:"text"`
	Context string   `json:"context"`
	Sources []Source `json:"sources"`
	Found   bool     `json:"found"`
}

// Engine answers questions over a chunk table.
type Engine struct {
	tables      *store.Manager
	llm         llms.Model
	numResults  int
	temperature float64
}

type Option func(*Engine)

func WithNumResults(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.numResults = n
		}
	}
}

func WithTemperature(t float64) Option {
	return func(e *Engine) {
		e.temperature = t
	}
}

func NewEngine(tables *store.Manager, llm llms.Model, opts ...Option) *Engine {
	e := &Engine{
		tables:      tables,
		llm:         llm,
		numResults:  models.DefaultNumResults,
		temperature: models.DefaultTemperature,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StreamChatResponse streams the answer to the last user message with the
// system prompt prepended.
func (e *Engine) StreamChatResponse(ctx context.Context, messages []models.Message, retrieved string) iter.Seq2[string, error] {
	withContext := make([]models.Message, 0, len(messages)+1)
	withContext = append(withContext, models.Message{Role: models.RoleSystem, Content: SystemPrompt(retrieved)})
	withContext = append(withContext, messages...)
	return llmservice.Stream(ctx, e.llm, withContext, e.temperature)
}

// GetChatResponse drains the stream into w, which may be nil, and returns the full reply.
func (e *Engine) GetChatResponse(ctx context.Context, messages []models.Message, retrieved string, w io.Writer) (string, error) {
	var sb strings.Builder
	for piece, err := range e.StreamChatResponse(ctx, messages, retrieved) {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(piece)
		if w != nil {
			if _, err := io.WriteString(w, piece); err != nil {
				return sb.String(), fmt.Errorf("failed to write response: %w", err)
			}
		}
	}
	return sb.String(), nil
}

// Ask retrieves context for question and answers it. On error the input session is returned unchanged.
func (e *Engine) Ask(ctx context.Context, s Session, question string, w io.Writer) (Session, Answer, error) {
	table, err := e.tables.Table(ctx)
	if err != nil {
		return s, Answer{}, err
	}
	retrieved, err := GetContext(ctx, question, table, e.numResults)
	if err != nil {
		return s, Answer{}, err
	}

	next := s.with(models.Message{Role: models.RoleUser, Content: question})
	answer := Answer{
		Context: retrieved,
		Sources: ParseContext(retrieved),
	}

	if strings.TrimSpace(retrieved) == "" {
		log.Info().Str("question", question).Msg("No relevant context found")
		answer.Text = models.NoContextResponse
		if w != nil {
			if _, err := io.WriteString(w, answer.Text); err != nil {
				return s, Answer{}, fmt.Errorf("failed to write response: %w", err)
			}
		}
	} else {
		text, err := e.GetChatResponse(ctx, next.Messages, retrieved, w)
		if err != nil {
			return s, Answer{}, err
		}
		answer.Text = text
		answer.Found = true
	}

	next = next.with(models.Message{Role: models.RoleAssistant, Content: answer.Text})
	return next, answer, nil
}
