// Package llmtest provides a scripted llms.Model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Model replays Chunks through the streaming callback, then returns Err if set.
type Model struct {
	Chunks []string
	Err    error

	mu          sync.Mutex
	calls       int
	temperature float64
	messages    []llms.MessageContent
}

func (m *Model) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	m.calls++
	m.temperature = opts.Temperature
	m.messages = messages
	m.mu.Unlock()

	var full strings.Builder
	for _, c := range m.Chunks {
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
		full.WriteString(c)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full.String()}}}, nil
}

func (m *Model) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Model) Temperature() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.temperature
}

// Messages returns the messages of the last call.
func (m *Model) Messages() []llms.MessageContent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages
}
