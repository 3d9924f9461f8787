package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
	"github.com/vlehtola/docmind/pkg/store"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vector
	}
	return out, nil
}

type leakyIndex struct{}

func (leakyIndex) UpsertPassages(ctx context.Context, passages []models.Passage) error { return nil }

func (leakyIndex) Search(ctx context.Context, vector []float32, ownerID string, k int) ([]models.ScoredPassage, error) {
	return []models.ScoredPassage{
		{Passage: models.Passage{ID: "ok", OwnerID: ownerID}, Similarity: 0.9},
		{Passage: models.Passage{ID: "leaked", OwnerID: "someone-else"}, Similarity: 0.8},
	}, nil
}

func seed(t *testing.T, m *store.Memory, docID, owner, name string, embeddings ...[]float32) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, m.CreateDocument(ctx, models.Document{
		ID: docID, OwnerID: owner, OriginalName: name, DeclaredType: models.TypeText,
	}))
	for i, emb := range embeddings {
		require.NoError(t, m.UpsertPassages(ctx, []models.Passage{{
			ID: docID + "_" + string(rune('0'+i)), DocumentID: docID, OwnerID: owner,
			SequenceIndex: i, Text: "passage", Kind: models.KindProse, Embedding: emb,
		}}))
	}
	require.NoError(t, m.FinalizeDocument(ctx, docID, len(embeddings)))
}

func TestRetrieve(t *testing.T) {
	m := store.NewMemory()
	seed(t, m, "doc", "alice", "report.txt",
		[]float32{0, 1},
		[]float32{1, 0},
	)

	r := New(&stubEmbedder{vector: []float32{1, 0}}, m)
	evidence, err := r.Retrieve(context.Background(), "what happened?", "alice", 5)
	require.NoError(t, err)
	require.Len(t, evidence, 2)

	assert.Equal(t, 1, evidence[0].SequenceIndex)
	assert.InDelta(t, 1.0, float64(evidence[0].Similarity), 1e-6)
	assert.Equal(t, "report.txt", evidence[0].SourceName)
	assert.Equal(t, "doc", evidence[0].DocumentID)
}

func TestRetrieveOwnerScoped(t *testing.T) {
	m := store.NewMemory()
	seed(t, m, "mine", "alice", "mine.txt", []float32{1, 0})
	seed(t, m, "theirs", "bob", "theirs.txt", []float32{1, 0})

	r := New(&stubEmbedder{vector: []float32{1, 0}}, m)
	evidence, err := r.Retrieve(context.Background(), "q", "alice", 5)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, "mine", evidence[0].DocumentID)
}

func TestRetrieveTieBreakBySequence(t *testing.T) {
	m := store.NewMemory()
	seed(t, m, "doc", "alice", "a.txt",
		[]float32{3, 0},
		[]float32{2, 0},
		[]float32{1, 0},
	)

	r := New(&stubEmbedder{vector: []float32{1, 0}}, m)
	evidence, err := r.Retrieve(context.Background(), "q", "alice", 5)
	require.NoError(t, err)
	require.Len(t, evidence, 3)

	for i, ev := range evidence {
		assert.Equal(t, i, ev.SequenceIndex)
	}
}

func TestRetrieveEmbedFailure(t *testing.T) {
	r := New(&stubEmbedder{err: errors.New("down")}, store.NewMemory())

	_, err := r.Retrieve(context.Background(), "q", "alice", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed question")
}

func TestRetrieveRejectsForeignPassages(t *testing.T) {
	r := New(&stubEmbedder{vector: []float32{1, 0}}, leakyIndex{})

	evidence, err := r.Retrieve(context.Background(), "q", "alice", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrOwnerMismatch)
	assert.Nil(t, evidence, "no partial results on a scope violation")
}
