package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
	"github.com/vlehtola/docmind/pkg/analyzer"
	"github.com/vlehtola/docmind/pkg/chunker"
	"github.com/vlehtola/docmind/pkg/extract"
)

type PipelineConfig struct {
	EmbedBatchSize   int
	EmbedConcurrency int
	TopK             int
}

// Pipeline wires the ingestion and query flows. All external handles are
// injected at construction and shared read-only across requests; both flows
// are stateless per call.
type Pipeline struct {
	config    PipelineConfig
	chunker   chunker.Chunker
	analyzer  analyzer.Analyzer
	embedder  types.Embedder
	store     types.DocumentStore
	index     types.VectorIndex
	retriever types.Retriever
	synth     types.Synthesizer
}

func NewWithConfig(
	config PipelineConfig,
	ch chunker.Chunker,
	an analyzer.Analyzer,
	embedder types.Embedder,
	store types.DocumentStore,
	index types.VectorIndex,
	retr types.Retriever,
	synth types.Synthesizer,
) *Pipeline {
	if config.EmbedBatchSize == 0 {
		config.EmbedBatchSize = 32
	}
	if config.EmbedConcurrency == 0 {
		config.EmbedConcurrency = 4
	}
	if config.TopK == 0 {
		config.TopK = 5
	}
	return &Pipeline{
		config:    config,
		chunker:   ch,
		analyzer:  an,
		embedder:  embedder,
		store:     store,
		index:     index,
		retriever: retr,
		synth:     synth,
	}
}

// IngestReceipt reports what one upload produced.
type IngestReceipt struct {
	DocumentID          string
	ChunkCount          int
	AnalyticSignalCount int
}

// Ingest runs one uploaded file through extraction, chunking, spreadsheet
// analytics, embedding, and indexing. Passages stream to the embedder in
// bounded-concurrency batches; passage ids are keyed by document id and
// sequence index so a retried batch upserts instead of duplicating. If any
// batch exhausts the embedding retry budget the document is left
// unfinalized (has_embeddings stays false) and the error is surfaced.
func (p *Pipeline) Ingest(ctx context.Context, ownerID string, content []byte, declaredType, originalName string) (*IngestReceipt, error) {
	typ, err := extract.Detect(declaredType, originalName)
	if err != nil {
		return nil, err
	}

	result, err := extract.File(content, typ, originalName)
	if err != nil {
		return nil, err
	}

	doc := models.Document{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		OriginalName: originalName,
		DeclaredType: typ,
		ByteSize:     int64(len(content)),
		UploadTime:   time.Now(),
	}

	next, signalCount := p.candidates(result)

	// Pull the first candidate before touching the store so an empty
	// document never leaves a record behind.
	first, ok := next()
	if !ok {
		return nil, types.ErrEmptyDocument
	}

	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.EmbedConcurrency)

	seq := 0
	total := 0
	batch := make([]models.Passage, 0, p.config.EmbedBatchSize)

	flush := func() {
		passages := batch
		batch = make([]models.Passage, 0, p.config.EmbedBatchSize)
		g.Go(func() error {
			return p.embedAndStore(gctx, passages)
		})
	}

	for cand, ok := first, true; ok; cand, ok = next() {
		batch = append(batch, models.Passage{
			ID:            fmt.Sprintf("%s_%d", doc.ID, seq),
			DocumentID:    doc.ID,
			OwnerID:       ownerID,
			SequenceIndex: seq,
			Text:          cand.Text,
			Kind:          cand.Kind,
			SourceLocator: cand.Locator,
		})
		seq++
		total++
		if len(batch) >= p.config.EmbedBatchSize {
			flush()
		}
	}
	if len(batch) > 0 {
		flush()
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indexing %s: %w", doc.ID, err)
	}

	if err := p.store.FinalizeDocument(ctx, doc.ID, total); err != nil {
		return nil, fmt.Errorf("failed to finalize document: %w", err)
	}

	return &IngestReceipt{
		DocumentID:          doc.ID,
		ChunkCount:          total,
		AnalyticSignalCount: signalCount,
	}, nil
}

// candidates returns a pull function over every passage the extraction
// result yields: prose chunks, then per table a sheet summary, the table-row
// passages, and one analytic-summary passage per computed signal.
func (p *Pipeline) candidates(result *extract.Result) (func() (chunker.Candidate, bool), int) {
	var scanners []*chunker.Scanner
	var extras []chunker.Candidate

	if result.Text != "" {
		scanners = append(scanners, p.chunker.Prose(result.Text))
	}

	signalCount := 0
	for _, table := range result.Tables {
		extras = append(extras, chunker.Candidate{
			Text:    p.analyzer.SheetSummary(table),
			Kind:    models.KindAnalyticSummary,
			Locator: table.Sheet,
		})
		scanners = append(scanners, p.chunker.Table(table))

		for _, sig := range p.analyzer.Analyze(table) {
			signalCount++
			extras = append(extras, chunker.Candidate{
				Text:    sig.Narrative,
				Kind:    models.KindAnalyticSummary,
				Locator: fmt.Sprintf("%s (%s %s)", table.Sheet, sig.Type, sig.Support),
			})
		}
	}

	si, ei := 0, 0
	next := func() (chunker.Candidate, bool) {
		for si < len(scanners) {
			if scanners[si].Next() {
				return scanners[si].Candidate(), true
			}
			si++
		}
		if ei < len(extras) {
			ei++
			return extras[ei-1], true
		}
		return chunker.Candidate{}, false
	}
	return next, signalCount
}

func (p *Pipeline) embedAndStore(ctx context.Context, passages []models.Passage) error {
	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	for i := range passages {
		passages[i].Embedding = vectors[i]
	}

	return p.index.UpsertPassages(ctx, passages)
}

// Answer runs one question through retrieval and synthesis, scoped to the
// owner.
func (p *Pipeline) Answer(ctx context.Context, ownerID, question string, maxResults int, mode models.AnswerMode) (*models.AnswerResult, error) {
	if maxResults <= 0 {
		maxResults = p.config.TopK
	}

	n, err := p.store.CountPassages(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}
	if n == 0 {
		return nil, types.ErrNoDocumentsIndexed
	}

	evidence, err := p.retriever.Retrieve(ctx, question, ownerID, maxResults)
	if err != nil {
		if errors.Is(err, types.ErrOwnerMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	result, err := p.synth.Synthesize(ctx, question, evidence, mode)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteDocument removes the document and every derived passage and vector.
func (p *Pipeline) DeleteDocument(ctx context.Context, ownerID, documentID string) (bool, error) {
	if err := p.store.DeleteDocument(ctx, ownerID, documentID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return true, nil
}

// ListDocuments returns the owner's documents, newest first.
func (p *Pipeline) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	return p.store.ListDocuments(ctx, ownerID)
}
