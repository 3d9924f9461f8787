package models

import "time"

// DocumentType is the closed set of supported upload formats. Dispatch over
// it is an exhaustive switch; adding a format means adding a constant and a
// handler, not extending a conditional chain.
type DocumentType string

const (
	TypeText        DocumentType = "text"
	TypePDF         DocumentType = "pdf"
	TypeSpreadsheet DocumentType = "spreadsheet"
)

// Document is the metadata record for one uploaded file. ChunkCount and
// HasEmbeddings are written once, after indexing completes; everything else
// is immutable after ingestion.
type Document struct {
	ID            string
	OwnerID       string
	OriginalName  string
	DeclaredType  DocumentType
	ByteSize      int64
	UploadTime    time.Time
	ChunkCount    int
	HasEmbeddings bool
}

type PassageKind string

const (
	KindProse           PassageKind = "prose"
	KindTableRow        PassageKind = "table-row"
	KindAnalyticSummary PassageKind = "analytic-summary"
)

// Passage is the unit of retrieval: a bounded span of text extracted from a
// document, owned exclusively by that document and its owner.
type Passage struct {
	ID            string
	DocumentID    string
	OwnerID       string
	SequenceIndex int
	Text          string
	Kind          PassageKind
	SourceLocator string
	Embedding     []float32
}

type SignalType string

const (
	SignalTrend       SignalType = "trend"
	SignalGrowthRate  SignalType = "growth_rate"
	SignalCorrelation SignalType = "correlation"
	SignalAnomaly     SignalType = "anomaly"
)

// AnalyticSignal is one statistical finding over a spreadsheet column (or
// column pair). Narrative is what gets embedded and retrieved; the numeric
// fields exist so results are reproducible.
type AnalyticSignal struct {
	MetricName string
	ColumnRef  string
	Type       SignalType
	Value      float64
	Support    string
	Narrative  string
}

// Table is one parsed sheet of tabular input: a header row plus data rows,
// all cells as strings.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
}

// QueryRequest carries one question into the pipeline. It is transient;
// persistence of questions and answers belongs to the surrounding app.
type QueryRequest struct {
	OwnerID    string
	SessionID  string
	Question   string
	MaxResults int
}

// RetrievedEvidence is one ranked passage backing an answer.
type RetrievedEvidence struct {
	PassageID     string
	DocumentID    string
	SequenceIndex int
	Similarity    float32
	Text          string
	SourceName    string
}

// ScoredPassage pairs a stored passage with its similarity to a query vector.
type ScoredPassage struct {
	Passage    Passage
	Similarity float32
	SourceName string
}

// AnswerResult is the ephemeral outcome of one query: the grounded answer,
// a retrieval-derived confidence in [0,1], and its sources in rank order.
type AnswerResult struct {
	Answer     string
	Confidence float64
	Sources    []RetrievedEvidence
}

// AnswerMode selects the response persona. It never relaxes grounding.
type AnswerMode string

const (
	ModeAnalytical     AnswerMode = "analytical"
	ModeConversational AnswerMode = "conversational"
)

// ParseMode maps free-form mode strings onto the closed set, defaulting to
// analytical.
func ParseMode(s string) AnswerMode {
	if AnswerMode(s) == ModeConversational {
		return ModeConversational
	}
	return ModeAnalytical
}
