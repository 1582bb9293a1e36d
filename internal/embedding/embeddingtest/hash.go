// Package embeddingtest provides a deterministic offline embedder for tests.
package embeddingtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// HashEmbedder maps words onto a fixed number of buckets. Texts sharing words
// end up close to each other, which is enough for ranking in tests.
type HashEmbedder struct {
	Dims int
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls int
}

func New(dims int) *HashEmbedder {
	return &HashEmbedder{Dims: dims}
}

// Calls returns the number of provider calls made so far.
func (h *HashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *HashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	h.count()
	if h.Err != nil {
		return nil, h.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	h.count()
	if h.Err != nil {
		return nil, h.Err
	}
	return h.vector(text), nil
}

func (h *HashEmbedder) count() {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
}

func (h *HashEmbedder) vector(text string) []float32 {
	if h.Dims <= 0 {
		return nil
	}
	vec := make([]float32, h.Dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[int(f.Sum32()%uint32(h.Dims))]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		vec[0] = 1
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// ErrProvider is a ready-made provider failure.
var ErrProvider = errors.New("embedding provider unreachable")
