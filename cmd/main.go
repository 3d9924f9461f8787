package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
	"github.com/vlehtola/docmind/pkg/analyzer"
	"github.com/vlehtola/docmind/pkg/chunker"
	"github.com/vlehtola/docmind/pkg/config"
	"github.com/vlehtola/docmind/pkg/llm"
	"github.com/vlehtola/docmind/pkg/pipeline"
	"github.com/vlehtola/docmind/pkg/retriever"
	"github.com/vlehtola/docmind/pkg/store"
	"github.com/vlehtola/docmind/server"
)

type options struct {
	configPath string
	owner      string
	mode       string
	serve      bool
}

func main() {
	opts, files := parseFlags()

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg, opts, files); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() (options, []string) {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.owner, "owner", "local", "Owner scope for ingestion and queries")
	flag.StringVar(&opts.mode, "mode", "analytical", "Answer mode: analytical or conversational")
	flag.BoolVar(&opts.serve, "serve", false, "Start the HTTP server instead of the chat loop")
	flag.Parse()
	return opts, flag.Args()
}

func run(cfg *config.Config, opts options, files []string) error {
	ctx := context.Background()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbeddingModel,
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		RateLimit: cfg.LLM.EmbedRateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	synth, err := llm.NewSynthesizerWithConfig(llm.SynthesizerConfig{
		Model:           cfg.LLM.ChatModel,
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		SimilarityFloor: float32(cfg.Retrieval.SimilarityFloor),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize synthesizer: %w", err)
	}

	docStore, index, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	p := pipeline.NewWithConfig(
		pipeline.PipelineConfig{
			EmbedBatchSize: cfg.Database.BatchSize,
			TopK:           cfg.Retrieval.TopK,
		},
		chunker.NewWithConfig(chunker.ChunkerConfig{
			ChunkSize:      cfg.Chunker.ChunkSize,
			ChunkOverlap:   cfg.Chunker.ChunkOverlap,
			MinChunkLength: cfg.Chunker.MinChunkLength,
			TableGroupRows: cfg.Chunker.TableGroupRows,
		}),
		analyzer.NewWithConfig(analyzer.AnalyzerConfig{
			AnomalyZScore:     cfg.Analyzer.AnomalyZScore,
			AnomalyMinSamples: cfg.Analyzer.AnomalyMinSamples,
			CorrelationFloor:  cfg.Analyzer.CorrelationFloor,
		}),
		embedder,
		docStore,
		index,
		retriever.New(embedder, index),
		synth,
	)

	if opts.serve {
		return server.New(server.Config{Port: cfg.Server.Port}, p).ListenAndServe()
	}

	if len(files) > 0 {
		if err := ingestFiles(ctx, p, opts.owner, files); err != nil {
			return err
		}
	}

	return chatLoop(ctx, p, opts)
}

func buildStore(ctx context.Context, cfg *config.Config) (types.DocumentStore, types.VectorIndex, func(), error) {
	if cfg.Database.URL == "" {
		color.Yellow("no DATABASE_URL configured, using in-memory store (nothing survives exit)")
		mem := store.NewMemory()
		return mem, mem, func() {}, nil
	}

	pg, err := store.NewPostgresWithConfig(ctx, store.PostgresConfig{
		ConnString: cfg.Database.URL,
		VectorDim:  cfg.Database.VectorDim,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	return pg, pg, pg.Close, nil
}

func ingestFiles(ctx context.Context, p *pipeline.Pipeline, owner string, files []string) error {
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription(color.BlueString("Ingesting documents")),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		start := time.Now()
		receipt, err := p.Ingest(ctx, owner, content, "", filepath.Base(path))
		if err != nil {
			color.Red("\n%s: %v", path, err)
			bar.Add(1)
			continue
		}
		bar.Add(1)
		color.Green("\n✓ %s: %d passages, %d analytic signals (%.1fs)",
			filepath.Base(path), receipt.ChunkCount, receipt.AnalyticSignalCount,
			time.Since(start).Seconds())
	}
	bar.Finish()
	return nil
}

func chatLoop(ctx context.Context, p *pipeline.Pipeline, opts options) error {
	mode := models.ParseMode(opts.mode)

	color.Cyan("\nAsk questions about your documents (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		result, err := p.Answer(ctx, opts.owner, question, 0, mode)
		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		assistantPrompt("Assistant: %s\n", result.Answer)
		color.Blue("confidence: %.2f", result.Confidence)
		for i, src := range result.Sources {
			color.Blue("  [%d] %s (%.2f)", i+1, src.SourceName, src.Similarity)
		}
	}

	return nil
}
