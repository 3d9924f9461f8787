package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
)

// Needs a running Postgres with the pgvector extension available.
func openTestStore(t *testing.T) *Postgres {
	t.Helper()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	pg, err := NewPostgresWithConfig(context.Background(), PostgresConfig{
		ConnString: connString,
		VectorDim:  3,
	})
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	return pg
}

func TestPostgresDocumentLifecycle(t *testing.T) {
	pg := openTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()
	docID := uuid.NewString()

	require.NoError(t, pg.CreateDocument(ctx, models.Document{
		ID: docID, OwnerID: owner, OriginalName: "report.txt",
		DeclaredType: models.TypeText, ByteSize: 42,
	}))

	require.NoError(t, pg.UpsertPassages(ctx, []models.Passage{
		{
			ID: docID + "_0", DocumentID: docID, OwnerID: owner, SequenceIndex: 0,
			Text: "first passage", Kind: models.KindProse, SourceLocator: "chars 0-13",
			Embedding: []float32{1, 0, 0},
		},
		{
			ID: docID + "_1", DocumentID: docID, OwnerID: owner, SequenceIndex: 1,
			Text: "second passage", Kind: models.KindProse, SourceLocator: "chars 10-24",
			Embedding: []float32{0, 1, 0},
		},
	}))
	require.NoError(t, pg.FinalizeDocument(ctx, docID, 2))

	doc, err := pg.GetDocument(ctx, owner, docID)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.ChunkCount)
	assert.True(t, doc.HasEmbeddings)

	results, err := pg.Search(ctx, []float32{1, 0, 0}, owner, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first passage", results[0].Passage.Text)
	assert.Equal(t, "report.txt", results[0].SourceName)
	assert.InDelta(t, 1.0, float64(results[0].Similarity), 1e-5)

	// other owners see nothing
	foreign, err := pg.Search(ctx, []float32{1, 0, 0}, "someone-else", 5)
	require.NoError(t, err)
	assert.Empty(t, foreign)

	count, err := pg.CountPassages(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, pg.DeleteDocument(ctx, owner, docID))
	_, err = pg.GetDocument(ctx, owner, docID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	count, err = pg.CountPassages(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPostgresUpsertIsIdempotent(t *testing.T) {
	pg := openTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()
	docID := uuid.NewString()

	require.NoError(t, pg.CreateDocument(ctx, models.Document{
		ID: docID, OwnerID: owner, OriginalName: "dup.txt", DeclaredType: models.TypeText,
	}))
	t.Cleanup(func() { _ = pg.DeleteDocument(ctx, owner, docID) })

	passage := models.Passage{
		ID: docID + "_0", DocumentID: docID, OwnerID: owner, SequenceIndex: 0,
		Text: "original", Kind: models.KindProse, Embedding: []float32{1, 0, 0},
	}
	require.NoError(t, pg.UpsertPassages(ctx, []models.Passage{passage}))

	passage.Text = "rewritten"
	require.NoError(t, pg.UpsertPassages(ctx, []models.Passage{passage}))

	count, err := pg.CountPassages(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := pg.Search(ctx, []float32{1, 0, 0}, owner, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rewritten", results[0].Passage.Text)
}

func TestPostgresDeleteWrongOwner(t *testing.T) {
	pg := openTestStore(t)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()
	docID := uuid.NewString()

	require.NoError(t, pg.CreateDocument(ctx, models.Document{
		ID: docID, OwnerID: owner, OriginalName: "keep.txt", DeclaredType: models.TypeText,
	}))
	t.Cleanup(func() { _ = pg.DeleteDocument(ctx, owner, docID) })

	assert.ErrorIs(t, pg.DeleteDocument(ctx, "intruder", docID), types.ErrNotFound)
}
