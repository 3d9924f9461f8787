package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/vlehtola/docmind/internal/types"
)

// EmbedderConfig represents the configuration for the embedding client.
type EmbedderConfig struct {
	Model     string
	BaseURL   string
	APIKey    string
	MaxChars  int // inputs beyond this are truncated, not rejected
	Retries   int
	RetryBase time.Duration
	RateLimit float64 // requests per second against the embedding service
}

// EmbeddingClient is the slice of the model client the embedder needs.
// langchaingo's openai.LLM satisfies it; tests substitute a fake.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder maps passages and queries to fixed-length vectors, with input
// truncation, request rate limiting, and a bounded retry budget.
type Embedder struct {
	config  EmbedderConfig
	client  EmbeddingClient
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	applyEmbedderDefaults(&config)

	opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	return NewEmbedderWithClient(config, client), nil
}

// NewEmbedderWithClient wires an explicit client, bypassing service setup.
func NewEmbedderWithClient(config EmbedderConfig, client EmbeddingClient) *Embedder {
	applyEmbedderDefaults(&config)
	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func applyEmbedderDefaults(config *EmbedderConfig) {
	if config.Model == "" {
		config.Model = "text-embedding-ada-002"
	}
	if config.MaxChars == 0 {
		config.MaxChars = 8000
	}
	if config.Retries == 0 {
		config.Retries = 3
	}
	if config.RetryBase == 0 {
		config.RetryBase = 500 * time.Millisecond
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts preserving input order. Oversized inputs are
// truncated and logged rather than rejected. Transient failures are retried
// with exponential backoff; an exhausted budget surfaces
// types.ErrEmbeddingUnavailable so the caller can re-queue.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	prepared := make([]string, len(texts))
	for i, t := range texts {
		if len(t) > e.config.MaxChars {
			log.Printf("embedder: truncating input %d from %d to %d chars", i, len(t), e.config.MaxChars)
			t = t[:e.config.MaxChars]
		}
		prepared[i] = t
	}

	var lastErr error
	for attempt := 0; attempt < e.config.Retries; attempt++ {
		if attempt > 0 {
			backoff := e.config.RetryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := e.client.CreateEmbedding(ctx, prepared)
		if err != nil {
			lastErr = err
			continue
		}
		if len(vectors) != len(texts) {
			lastErr = fmt.Errorf("embedding count mismatch: got %d for %d inputs", len(vectors), len(texts))
			continue
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", types.ErrEmbeddingUnavailable, e.config.Retries, lastErr)
}
