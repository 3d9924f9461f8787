package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
)

// Memory is a brute-force cosine-similarity store implementing the same
// document and vector ports as Postgres. It backs tests and database-less
// runs; the semantics (owner scoping, deterministic ordering, transactional
// document deletes) match the real store.
type Memory struct {
	mu        sync.RWMutex
	documents map[string]models.Document
	passages  map[string][]models.Passage // by document id
}

func NewMemory() *Memory {
	return &Memory{
		documents: make(map[string]models.Document),
		passages:  make(map[string][]models.Passage),
	}
}

func (m *Memory) CreateDocument(_ context.Context, doc models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc.ChunkCount = 0
	doc.HasEmbeddings = false
	if doc.UploadTime.IsZero() {
		doc.UploadTime = time.Now()
	}
	m.documents[doc.ID] = doc
	return nil
}

func (m *Memory) UpsertPassages(_ context.Context, passages []models.Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range passages {
		existing := m.passages[p.DocumentID]
		replaced := false
		for i, old := range existing {
			if old.SequenceIndex == p.SequenceIndex {
				existing[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, p)
		}
		m.passages[p.DocumentID] = existing
	}
	return nil
}

func (m *Memory) FinalizeDocument(_ context.Context, documentID string, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok {
		return types.ErrNotFound
	}
	doc.ChunkCount = chunkCount
	doc.HasEmbeddings = true
	m.documents[documentID] = doc
	return nil
}

func (m *Memory) Search(_ context.Context, vector []float32, ownerID string, k int) ([]models.ScoredPassage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []models.ScoredPassage
	for docID, passages := range m.passages {
		doc, ok := m.documents[docID]
		if !ok || doc.OwnerID != ownerID {
			continue
		}
		for _, p := range passages {
			if p.OwnerID != ownerID || len(p.Embedding) == 0 {
				continue
			}
			results = append(results, models.ScoredPassage{
				Passage:    p,
				Similarity: cosineSimilarity(vector, p.Embedding),
				SourceName: doc.OriginalName,
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Passage.SequenceIndex < results[j].Passage.SequenceIndex
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *Memory) GetDocument(_ context.Context, ownerID, documentID string) (models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[documentID]
	if !ok || doc.OwnerID != ownerID {
		return models.Document{}, types.ErrNotFound
	}
	return doc, nil
}

func (m *Memory) ListDocuments(_ context.Context, ownerID string) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var docs []models.Document
	for _, doc := range m.documents {
		if doc.OwnerID == ownerID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UploadTime.Equal(docs[j].UploadTime) {
			return docs[i].UploadTime.After(docs[j].UploadTime)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

func (m *Memory) DeleteDocument(_ context.Context, ownerID, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok || doc.OwnerID != ownerID {
		return types.ErrNotFound
	}
	delete(m.documents, documentID)
	delete(m.passages, documentID)
	return nil
}

func (m *Memory) CountPassages(_ context.Context, ownerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for docID, passages := range m.passages {
		if doc, ok := m.documents[docID]; ok && doc.OwnerID == ownerID {
			n += len(passages)
		}
	}
	return n, nil
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
