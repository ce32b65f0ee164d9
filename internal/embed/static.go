package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// Weights for vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates deterministic embeddings via hash projection.
// It requires no model runtime or network access, so it serves as the
// module's zero-dependency default: runnable out of the box, and used by
// the eval harness and tests where reproducibility matters more than
// semantic quality.
type StaticEmbedder struct {
	dimensions int

	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a static embedder producing vectors of the
// given dimension. dim <= 0 falls back to DefaultDimensions.
func NewStaticEmbedder(dim int) *StaticEmbedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &StaticEmbedder{dimensions: dim}
}

// Embed generates a normalized embedding for a request. The task type
// perturbs the hash projection via a salt so that the same text embedded
// as a query and as a document land at a (deterministically) different
// point, matching spec.md §4.2's requirement that the backend may choose a
// different projection per task type.
func (e *StaticEmbedder) Embed(_ context.Context, req Request) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	e.mu.RUnlock()

	text := strings.TrimSpace(buildInput(req))
	if text == "" {
		return make([]float32, e.dimensions), nil
	}

	vector := e.generateVector(text, req.Task)
	return normalizeVector(vector), nil
}

func (e *StaticEmbedder) generateVector(text string, task TaskType) []float32 {
	vector := make([]float32, e.dimensions)
	salt := string(task)

	tokens := tokenize(text)
	for _, token := range tokens {
		index := hashToIndex(salt+":"+token, e.dimensions)
		vector[index] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	ngrams := extractNgrams(normalized, ngramSize)
	for _, ngram := range ngrams {
		index := hashToIndex(salt+":"+ngram, e.dimensions)
		vector[index] += ngramWeight
	}

	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if lower != "" {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

// EmbedBatch generates embeddings for multiple requests.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, reqs []Request) ([][]float32, error) {
	if len(reqs) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(reqs))
	for i, req := range reqs {
		emb, err := e.Embed(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to embed request %d: %w", i, err)
		}
		results[i] = emb
	}
	return results, nil
}

// Dimensions returns D.
func (e *StaticEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier used in cache keys.
func (e *StaticEmbedder) ModelName() string {
	return fmt.Sprintf("static-%d", e.dimensions)
}

// Available reports true until Close has been called.
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
