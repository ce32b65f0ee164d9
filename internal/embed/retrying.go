package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	herrors "github.com/historian-labs/historian/internal/errors"
)

// RetryingEmbedder wraps an Embedder with a per-call deadline and
// exponential-backoff retry, translating backend failures into the
// spec's EmbeddingUnavailable/EmbeddingTimeout error kinds.
type RetryingEmbedder struct {
	inner   Embedder
	timeout time.Duration
	retry   herrors.RetryConfig
	logger  *slog.Logger
	breaker *herrors.CircuitBreaker
}

// NewRetryingEmbedder wraps inner with the given per-call timeout. A zero
// timeout falls back to 30s, matching spec.md §4.2's default call deadline.
// A circuit breaker trips after repeated backend failures so a struggling
// embedder fails fast instead of retrying every call into the same timeout.
func NewRetryingEmbedder(inner Embedder, timeout time.Duration, logger *slog.Logger) *RetryingEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingEmbedder{
		inner:   inner,
		timeout: timeout,
		retry:   herrors.DefaultRetryConfig(),
		logger:  logger,
		breaker: herrors.NewCircuitBreaker("embedder-" + inner.ModelName()),
	}
}

// Embed enforces the call deadline and retries transient failures, then
// verifies the returned vector is normalized (warns, does not fail, on
// drift beyond tolerance).
func (e *RetryingEmbedder) Embed(ctx context.Context, req Request) ([]float32, error) {
	if !e.inner.Available(ctx) {
		return nil, herrors.EmbeddingUnavailable(fmt.Sprintf("backend %q is not available", e.inner.ModelName()), nil)
	}
	if !e.breaker.Allow() {
		return nil, herrors.EmbeddingUnavailable(fmt.Sprintf("backend %q circuit is open after repeated failures", e.inner.ModelName()), herrors.ErrCircuitOpen)
	}

	vec, err := herrors.RetryWithResult(ctx, e.retry, func() ([]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		v, embedErr := e.inner.Embed(callCtx, req)
		if embedErr != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return nil, herrors.EmbeddingTimeout(fmt.Sprintf("embed call exceeded %s", e.timeout), callCtx.Err())
			}
			return nil, embedErr
		}
		return v, nil
	})
	if err != nil {
		e.breaker.RecordFailure()
		if ctx.Err() != nil {
			return nil, herrors.Cancelled("embed", ctx.Err())
		}
		var he *herrors.HistorianError
		if errors.As(err, &he) && he.Code == herrors.ErrCodeEmbeddingTimeout {
			return nil, herrors.EmbeddingTimeout(fmt.Sprintf("backend %q timed out", e.inner.ModelName()), err)
		}
		return nil, herrors.EmbeddingUnavailable(fmt.Sprintf("backend %q failed", e.inner.ModelName()), err)
	}

	e.breaker.RecordSuccess()
	e.checkNorm(vec)
	return vec, nil
}

// EmbedBatch applies the same deadline/retry/verification discipline to
// each request in order. The batch stops at the first failing request and
// returns its error with no partial results.
func (e *RetryingEmbedder) EmbedBatch(ctx context.Context, reqs []Request) ([][]float32, error) {
	if len(reqs) == 0 {
		return [][]float32{}, nil
	}
	results := make([][]float32, len(reqs))
	for i, req := range reqs {
		vec, err := e.Embed(ctx, req)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (e *RetryingEmbedder) checkNorm(vec []float32) {
	if !isNormalized(vec) {
		e.logger.Warn("embedding norm out of tolerance",
			"deviation", normDeviation(vec),
			"model", e.inner.ModelName())
	}
}

// Dimensions passes through to the inner embedder.
func (e *RetryingEmbedder) Dimensions() int { return e.inner.Dimensions() }

// ModelName passes through to the inner embedder.
func (e *RetryingEmbedder) ModelName() string { return e.inner.ModelName() }

// Available passes through to the inner embedder.
func (e *RetryingEmbedder) Available(ctx context.Context) bool { return e.inner.Available(ctx) }

// Close closes the inner embedder.
func (e *RetryingEmbedder) Close() error { return e.inner.Close() }
