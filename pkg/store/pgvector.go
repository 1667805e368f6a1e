package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/jteo/copra/internal/models"
)

type VectorStoreConfig struct {
	ConnString  string
	TableName   string
	VectorDim   int
	BatchSize   int
	SearchLimit int
}

// VectorStore is the persistent knowledge index over the regulatory
// corpus: pgvector-backed semantic search plus exact cross-reference
// metadata lookups. The handle is read-only at query time and safe to
// share across sessions.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "corpus_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			page INTEGER NOT NULL DEFAULT 1,
			content TEXT NOT NULL,
			annex_refs JSONB NOT NULL DEFAULT '[]',
			figure_label_norm TEXT NOT NULL DEFAULT '',
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Store upserts pre-embedded corpus chunks in one transaction. Only the
// ingestion pipeline writes; the answering path never does.
func (vs *VectorStore) Store(ctx context.Context, docs []models.RetrievedDocument) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, page, content, annex_refs, figure_label_norm, embedding)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			page = EXCLUDED.page,
			content = EXCLUDED.content,
			annex_refs = EXCLUDED.annex_refs,
			figure_label_norm = EXCLUDED.figure_label_norm,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for _, doc := range docs {
		refs := doc.AnnexRefs
		if refs == nil {
			refs = []string{}
		}
		refsJSON, err := json.Marshal(refs)
		if err != nil {
			return fmt.Errorf("failed to encode annex refs: %v", err)
		}

		_, err = tx.Exec(ctx, stmt,
			doc.ID,
			doc.Source,
			doc.Page,
			doc.Content,
			string(refsJSON),
			doc.FigureLabelNorm,
			pgvector.NewVector(doc.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %v", doc.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Query returns the limit nearest chunks by cosine distance. Stored
// embeddings are included in the results so callers can re-rank.
func (vs *VectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.RetrievedDocument, error) {
	if limit == 0 {
		limit = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, source, page, content, annex_refs, figure_label_norm, embedding
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}
	defer rows.Close()

	var docs []models.RetrievedDocument
	for rows.Next() {
		var doc models.RetrievedDocument
		var refsJSON []byte
		var embedding pgvector.Vector
		err := rows.Scan(
			&doc.ID,
			&doc.Source,
			&doc.Page,
			&doc.Content,
			&refsJSON,
			&doc.FigureLabelNorm,
			&embedding,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		if err := json.Unmarshal(refsJSON, &doc.AnnexRefs); err != nil {
			return nil, fmt.Errorf("failed to decode annex refs: %v", err)
		}
		doc.Embedding = embedding.Slice()
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// FetchByRefs returns every chunk whose annex_refs list contains any of
// the given references or whose figure_label_norm equals any of them.
// One combined filter query covers the whole reference set; no
// per-reference round trips.
func (vs *VectorStore) FetchByRefs(ctx context.Context, refs []string) ([]models.RetrievedDocument, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, source, page, content, annex_refs, figure_label_norm
		FROM %s
		WHERE annex_refs ?| $1 OR figure_label_norm = ANY($1)`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch by refs: %v", err)
	}
	defer rows.Close()

	var docs []models.RetrievedDocument
	for rows.Next() {
		var doc models.RetrievedDocument
		var refsJSON []byte
		err := rows.Scan(
			&doc.ID,
			&doc.Source,
			&doc.Page,
			&doc.Content,
			&refsJSON,
			&doc.FigureLabelNorm,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		if err := json.Unmarshal(refsJSON, &doc.AnnexRefs); err != nil {
			return nil, fmt.Errorf("failed to decode annex refs: %v", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
