package llmservice

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

var ErrStreamConsumed = errors.New("response stream already consumed")

// NewChatModel creates the chat completion client for the configured provider
func NewChatModel(cfg *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", cfg.Provider).Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating chat model")

	switch cfg.Provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama chat model: %w", err)
		}
		return llm, nil
	case "openai", "":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai chat model: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s", cfg.Provider)
	}
}

// ToMessageContent maps role/content messages onto langchaingo messages
func ToMessageContent(messages []models.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case models.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case models.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// Stream starts a streamed completion when first iterated and yields text
// fragments in arrival order. The sequence can be ranged over once; a second
// range yields ErrStreamConsumed. Breaking out early cancels the request.
func Stream(ctx context.Context, llm llms.Model, messages []models.Message, temperature float64) iter.Seq2[string, error] {
	var started atomic.Bool
	content := ToMessageContent(messages)

	return func(yield func(string, error) bool) {
		if !started.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		pieces := make(chan string)
		errc := make(chan error, 1)
		go func() {
			defer close(pieces)
			_, err := llm.GenerateContent(ctx, content,
				llms.WithTemperature(temperature),
				llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
					select {
					case pieces <- string(chunk):
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				}),
			)
			errc <- err
		}()

		for piece := range pieces {
			if piece == "" {
				continue
			}
			if !yield(piece, nil) {
				cancel()
				for range pieces {
				}
				<-errc
				return
			}
		}
		if err := <-errc; err != nil {
			yield("", fmt.Errorf("failed to generate response: %w", err))
		}
	}
}
