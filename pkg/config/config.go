package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL        string  `yaml:"base_url"`
		APIKey         string  `yaml:"api_key"`
		ChatModel      string  `yaml:"chat_model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		EmbedRateLimit float64 `yaml:"embed_rate_limit"`
	} `yaml:"llm"`

	Database struct {
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Chunker struct {
		ChunkSize      int `yaml:"chunk_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
		MinChunkLength int `yaml:"min_chunk_length"`
		TableGroupRows int `yaml:"table_group_rows"`
	} `yaml:"chunker"`

	Analyzer struct {
		AnomalyZScore     float64 `yaml:"anomaly_z_score"`
		AnomalyMinSamples int     `yaml:"anomaly_min_samples"`
		CorrelationFloor  float64 `yaml:"correlation_floor"`
	} `yaml:"analyzer"`

	Retrieval struct {
		TopK            int     `yaml:"top_k"`
		SimilarityFloor float64 `yaml:"similarity_floor"`
	} `yaml:"retrieval"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docmind/config.yaml"),
			"/etc/docmind/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.ChatModel == "" {
		config.LLM.ChatModel = "gpt-4"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "text-embedding-ada-002"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 500
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}
	if config.LLM.EmbedRateLimit == 0 {
		config.LLM.EmbedRateLimit = 5.0
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 32
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1000
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 150
	}
	if config.Chunker.MinChunkLength == 0 {
		config.Chunker.MinChunkLength = 80
	}
	if config.Chunker.TableGroupRows == 0 {
		config.Chunker.TableGroupRows = 1
	}

	if config.Analyzer.AnomalyZScore == 0 {
		config.Analyzer.AnomalyZScore = 2.0
	}
	if config.Analyzer.AnomalyMinSamples == 0 {
		config.Analyzer.AnomalyMinSamples = 4
	}
	if config.Analyzer.CorrelationFloor == 0 {
		config.Analyzer.CorrelationFloor = 0.5
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}
	if config.Retrieval.SimilarityFloor == 0 {
		config.Retrieval.SimilarityFloor = 0.25
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}
