// Package embed defines the embedding backend adapter contract and ships a
// zero-dependency reference implementation plus caching/retry decorators.
package embed

import (
	"context"
	"math"
)

// TaskType is the role an embedding will play. Some backends project text
// differently depending on whether it will be matched against queries or
// stored as document content.
type TaskType string

const (
	TaskQuery    TaskType = "query"
	TaskDocument TaskType = "document"
)

// Default dimensionality, matching the teacher's EmbeddingGemma default.
const DefaultDimensions = 768

// Request is the input to Embed: a span of text plus the task it will be
// used for, and an optional page title that the backend should concatenate
// before the text so the embedding reflects topic as well as content.
type Request struct {
	Text  string
	Task  TaskType
	Title string
}

// Embedder produces L2-normalized embedding vectors. Implementations may
// run in-process, in a sibling worker, or in a side process; callers only
// depend on this contract.
type Embedder interface {
	// Embed generates a normalized embedding for a single request.
	Embed(ctx context.Context, req Request) ([]float32, error)

	// EmbedBatch generates normalized embeddings for multiple requests.
	EmbedBatch(ctx context.Context, reqs []Request) ([][]float32, error)

	// Dimensions returns D, the fixed embedding length for this backend.
	Dimensions() int

	// ModelName returns the model identifier, used in cache keys and
	// store compatibility checks.
	ModelName() string

	// Available reports whether the backend is ready to serve requests.
	Available(ctx context.Context) bool

	// Close releases backend resources.
	Close() error
}

// normTolerance is the maximum allowed deviation from unit norm before a
// vector is considered out of spec (still used, only logged).
const normTolerance = 0.01

// normalizeVector scales v to unit L2 norm. A zero vector is returned
// unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

// normDeviation returns how far ||v|| is from 1.0.
func normDeviation(v []float32) float64 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	return math.Abs(math.Sqrt(sumSquares) - 1.0)
}

// isNormalized reports whether v's L2 norm is within normTolerance of 1.0.
func isNormalized(v []float32) bool {
	return normDeviation(v) <= normTolerance
}

func buildInput(req Request) string {
	if req.Title == "" {
		return req.Text
	}
	return req.Title + "\n\n" + req.Text
}
