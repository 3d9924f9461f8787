package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/vlehtola/docmind/internal/models"
	"github.com/vlehtola/docmind/internal/types"
)

type PostgresConfig struct {
	ConnString string
	VectorDim  int
}

// Postgres is the system-of-record: document metadata and passages with
// their embeddings live in the same database, so a document delete and its
// vector purge commit or roll back together.
type Postgres struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

func NewPostgresWithConfig(ctx context.Context, config PostgresConfig) (*Postgres, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // text-embedding-ada-002
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Postgres{config: config, pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createDocuments := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			original_name TEXT NOT NULL,
			declared_type TEXT NOT NULL,
			byte_size BIGINT NOT NULL DEFAULT 0,
			upload_time TIMESTAMPTZ NOT NULL DEFAULT now(),
			chunk_count INTEGER NOT NULL DEFAULT 0,
			has_embeddings BOOLEAN NOT NULL DEFAULT false
		)`
	if _, err := s.pool.Exec(ctx, createDocuments); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	createPassages := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS passages (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			owner_id TEXT NOT NULL,
			sequence_index INTEGER NOT NULL,
			kind TEXT NOT NULL,
			source_locator TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			embedding vector(%d),
			UNIQUE (document_id, sequence_index)
		)`, s.config.VectorDim)
	if _, err := s.pool.Exec(ctx, createPassages); err != nil {
		return fmt.Errorf("failed to create passages table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (owner_id)",
		"CREATE INDEX IF NOT EXISTS passages_owner_idx ON passages (owner_id)",
		`CREATE INDEX IF NOT EXISTS passages_embedding_idx
			ON passages USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}
	for _, stmt := range indexes {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func (s *Postgres) CreateDocument(ctx context.Context, doc models.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDocument(ctx, tx, doc.ID); err != nil {
		return err
	}

	// Re-ingest of the same document id resets the indexing state; passages
	// are re-upserted under the same (document_id, sequence_index) keys.
	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, owner_id, original_name, declared_type, byte_size, chunk_count, has_embeddings)
		VALUES ($1, $2, $3, $4, $5, 0, false)
		ON CONFLICT (id) DO UPDATE SET
			byte_size = EXCLUDED.byte_size,
			chunk_count = 0,
			has_embeddings = false`,
		doc.ID, doc.OwnerID, sanitizeUTF8(doc.OriginalName), string(doc.DeclaredType), doc.ByteSize)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Postgres) UpsertPassages(ctx context.Context, passages []models.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDocument(ctx, tx, passages[0].DocumentID); err != nil {
		return err
	}

	stmt := `
		INSERT INTO passages (id, document_id, owner_id, sequence_index, kind, source_locator, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id, sequence_index) DO UPDATE SET
			kind = EXCLUDED.kind,
			source_locator = EXCLUDED.source_locator,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`

	for _, p := range passages {
		_, err := tx.Exec(ctx, stmt,
			p.ID, p.DocumentID, p.OwnerID, p.SequenceIndex,
			string(p.Kind), p.SourceLocator, sanitizeUTF8(p.Text),
			pgvector.NewVector(p.Embedding))
		if err != nil {
			return fmt.Errorf("failed to upsert passage %s: %w", p.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Postgres) FinalizeDocument(ctx context.Context, documentID string, chunkCount int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE documents SET chunk_count = $2, has_embeddings = true WHERE id = $1`,
		documentID, chunkCount)
	if err != nil {
		return fmt.Errorf("failed to finalize document: %w", err)
	}
	return nil
}

// Search returns the k nearest passages for the owner, most similar first.
// Similarity is 1 minus cosine distance. The owner filter is part of the
// query itself, never applied after the fact.
func (s *Postgres) Search(ctx context.Context, vector []float32, ownerID string, k int) ([]models.ScoredPassage, error) {
	query := `
		SELECT p.id, p.document_id, p.owner_id, p.sequence_index, p.kind, p.source_locator, p.content,
		       1 - (p.embedding <=> $1) AS similarity,
		       d.original_name
		FROM passages p
		JOIN documents d ON d.id = p.document_id
		WHERE p.owner_id = $2 AND p.embedding IS NOT NULL
		ORDER BY p.embedding <=> $1, p.sequence_index
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), ownerID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredPassage
	for rows.Next() {
		var sp models.ScoredPassage
		var kind string
		var similarity float64
		err := rows.Scan(
			&sp.Passage.ID, &sp.Passage.DocumentID, &sp.Passage.OwnerID,
			&sp.Passage.SequenceIndex, &kind, &sp.Passage.SourceLocator,
			&sp.Passage.Text, &similarity, &sp.SourceName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sp.Passage.Kind = models.PassageKind(kind)
		sp.Similarity = float32(similarity)
		results = append(results, sp)
	}
	return results, rows.Err()
}

func (s *Postgres) GetDocument(ctx context.Context, ownerID, documentID string) (models.Document, error) {
	var doc models.Document
	var declared string
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, original_name, declared_type, byte_size, upload_time, chunk_count, has_embeddings
		FROM documents WHERE id = $1 AND owner_id = $2`,
		documentID, ownerID).Scan(
		&doc.ID, &doc.OwnerID, &doc.OriginalName, &declared,
		&doc.ByteSize, &doc.UploadTime, &doc.ChunkCount, &doc.HasEmbeddings)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, types.ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	doc.DeclaredType = models.DocumentType(declared)
	return doc, nil
}

func (s *Postgres) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, original_name, declared_type, byte_size, upload_time, chunk_count, has_embeddings
		FROM documents WHERE owner_id = $1
		ORDER BY upload_time DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		var declared string
		err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.OriginalName, &declared,
			&doc.ByteSize, &doc.UploadTime, &doc.ChunkCount, &doc.HasEmbeddings)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc.DeclaredType = models.DocumentType(declared)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document and all of its passages in one
// transaction, so a failed purge never leaves orphaned vectors behind.
func (s *Postgres) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDocument(ctx, tx, documentID); err != nil {
		return err
	}

	var owner string
	err = tx.QueryRow(ctx, "SELECT owner_id FROM documents WHERE id = $1", documentID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != ownerID) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up document: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM passages WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("failed to delete passages: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM documents WHERE id = $1", documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Postgres) CountPassages(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM passages WHERE owner_id = $1", ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count passages: %w", err)
	}
	return n, nil
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// lockDocument serializes ingest and delete of the same document for the
// duration of the transaction. Concurrent work on different documents is
// unaffected.
func lockDocument(ctx context.Context, tx pgx.Tx, documentID string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", documentID); err != nil {
		return fmt.Errorf("failed to lock document: %w", err)
	}
	return nil
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
