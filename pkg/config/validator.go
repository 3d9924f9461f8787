package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.EmbedRateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.embed_rate_limit",
			Message: "embed_rate_limit must be positive",
		})
	}

	if c.LLM.BaseURL != "" {
		if _, err := url.Parse(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Chunker.TableGroupRows < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.table_group_rows",
			Message: "table_group_rows must be positive",
		})
	}

	if c.Analyzer.AnomalyZScore <= 0 {
		errors = append(errors, ValidationError{
			Field:   "analyzer.anomaly_z_score",
			Message: "anomaly_z_score must be positive",
		})
	}

	if c.Analyzer.AnomalyMinSamples < 2 {
		errors = append(errors, ValidationError{
			Field:   "analyzer.anomaly_min_samples",
			Message: "anomaly_min_samples must be at least 2",
		})
	}

	if c.Analyzer.CorrelationFloor < 0 || c.Analyzer.CorrelationFloor > 1 {
		errors = append(errors, ValidationError{
			Field:   "analyzer.correlation_floor",
			Message: "correlation_floor must be between 0 and 1",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.SimilarityFloor < 0 || c.Retrieval.SimilarityFloor > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.similarity_floor",
			Message: "similarity_floor must be between 0 and 1",
		})
	}

	return errors
}
