package types

import (
	"context"
	"errors"

	"github.com/vlehtola/docmind/internal/models"
)

// Error taxonomy of the pipeline. Input errors abort immediately and are
// never retried; *Unavailable errors mean a bounded retry budget was
// exhausted and the caller may re-queue; ErrOwnerMismatch is a programming
// level invariant violation and aborts the request.
var (
	ErrUnsupportedType      = errors.New("unsupported document type")
	ErrEmptyDocument        = errors.New("document has no extractable content")
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	ErrRetrievalUnavailable = errors.New("retrieval service unavailable")
	ErrNoDocumentsIndexed   = errors.New("owner has no indexed documents")
	ErrNotFound             = errors.New("document not found")
	ErrOwnerMismatch        = errors.New("retrieved passage outside owner scope")
)

// Embedder maps text to fixed-length vectors. Batch results preserve input
// order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex persists passage vectors and answers nearest-neighbor queries.
// Search must never return a passage whose owner differs from ownerID.
type VectorIndex interface {
	UpsertPassages(ctx context.Context, passages []models.Passage) error
	Search(ctx context.Context, vector []float32, ownerID string, k int) ([]models.ScoredPassage, error)
}

// DocumentStore holds document records. DeleteDocument purges the document's
// passages and vectors in the same transaction; a failed purge rolls the
// delete back.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc models.Document) error
	FinalizeDocument(ctx context.Context, documentID string, chunkCount int) error
	GetDocument(ctx context.Context, ownerID, documentID string) (models.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, ownerID, documentID string) error
	CountPassages(ctx context.Context, ownerID string) (int, error)
}

// Retriever turns a question into ranked evidence scoped to one owner.
type Retriever interface {
	Retrieve(ctx context.Context, question, ownerID string, k int) ([]models.RetrievedEvidence, error)
}

// Synthesizer produces a grounded answer from retrieved evidence.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, evidence []models.RetrievedEvidence, mode models.AnswerMode) (models.AnswerResult, error)
}
