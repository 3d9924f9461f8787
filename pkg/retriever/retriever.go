package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
)

// Retriever embeds a question, queries the vector index inside the owner's
// scope, and maps the hits back to passage text and source names.
type Retriever struct {
	embedder types.Embedder
	index    types.VectorIndex
}

func New(embedder types.Embedder, index types.VectorIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns the top-k evidence for the question, most similar first,
// with similarity ties broken by sequence index so identical inputs always
// produce identical orderings. A passage outside the owner scope aborts the
// whole request; partial results must not leak.
func (r *Retriever) Retrieve(ctx context.Context, question, ownerID string, k int) ([]models.RetrievedEvidence, error) {
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	scored, err := r.index.Search(ctx, vector, ownerID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	evidence := make([]models.RetrievedEvidence, 0, len(scored))
	for _, sp := range scored {
		if sp.Passage.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: passage %s", types.ErrOwnerMismatch, sp.Passage.ID)
		}
		evidence = append(evidence, models.RetrievedEvidence{
			PassageID:     sp.Passage.ID,
			DocumentID:    sp.Passage.DocumentID,
			SequenceIndex: sp.Passage.SequenceIndex,
			Similarity:    sp.Similarity,
			Text:          sp.Passage.Text,
			SourceName:    sp.SourceName,
		})
	}

	// The index already orders results, but determinism is our contract, not
	// the backend's.
	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Similarity != evidence[j].Similarity {
			return evidence[i].Similarity > evidence[j].Similarity
		}
		return evidence[i].SequenceIndex < evidence[j].SequenceIndex
	})

	return evidence, nil
}
