// Package repositories implements the PostgreSQL-backed stores.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/turtacn/LegalLens/internal/infrastructure/database/postgres"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const knowledgeSourceColumns = `id, domain, source, collection, chunk_count, content_hash, metadata, ingested_at, updated_at`

// KnowledgeSourceRepo is the registry of ingested knowledge documents.
type KnowledgeSourceRepo struct {
	conn *postgres.Connection
	tx   *sql.Tx
	log  logging.Logger
}

func NewKnowledgeSourceRepo(conn *postgres.Connection, log logging.Logger) *KnowledgeSourceRepo {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &KnowledgeSourceRepo{conn: conn, log: log}
}

// WithTx returns a copy of the repository bound to tx.
func (r *KnowledgeSourceRepo) WithTx(tx *sql.Tx) *KnowledgeSourceRepo {
	return &KnowledgeSourceRepo{conn: r.conn, tx: tx, log: r.log}
}

func (r *KnowledgeSourceRepo) executor() queryExecutor {
	if r.tx != nil {
		return r.tx
	}
	return r.conn.DB()
}

// Upsert inserts ks or, when (domain, source) exists, replaces its
// collection, chunk count, hash and metadata. ID and timestamps are filled
// from the stored row.
func (r *KnowledgeSourceRepo) Upsert(ctx context.Context, ks *legal.KnowledgeSource) error {
	query := `
		INSERT INTO knowledge_sources (
			domain, source, collection, chunk_count, content_hash, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (domain, source) DO UPDATE SET
			collection = EXCLUDED.collection,
			chunk_count = EXCLUDED.chunk_count,
			content_hash = EXCLUDED.content_hash,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id, ingested_at, updated_at
	`
	meta, err := json.Marshal(ks.Metadata)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode knowledge source metadata")
	}
	err = r.executor().QueryRowContext(ctx, query,
		ks.Domain, ks.Source, ks.Collection, ks.ChunkCount, ks.ContentHash, meta,
	).Scan(&ks.ID, &ks.IngestedAt, &ks.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert knowledge source")
	}
	r.log.Debug("knowledge source registered",
		logging.String("domain", ks.Domain),
		logging.String("source", ks.Source),
		logging.Int("chunks", ks.ChunkCount))
	return nil
}

func (r *KnowledgeSourceRepo) GetBySource(ctx context.Context, domain, source string) (*legal.KnowledgeSource, error) {
	query := `SELECT ` + knowledgeSourceColumns + ` FROM knowledge_sources WHERE domain = $1 AND source = $2`
	return scanKnowledgeSource(r.executor().QueryRowContext(ctx, query, domain, source))
}

// List returns the sources of domain, or of every domain when domain is
// empty, newest first.
func (r *KnowledgeSourceRepo) List(ctx context.Context, domain string, limit, offset int) ([]*legal.KnowledgeSource, error) {
	query := `SELECT ` + knowledgeSourceColumns + ` FROM knowledge_sources`
	args := []interface{}{}
	if domain != "" {
		query += ` WHERE domain = $1`
		args = append(args, domain)
	}
	if limit <= 0 {
		limit = 100
	}
	if len(args) == 0 {
		query += ` ORDER BY updated_at DESC LIMIT $1 OFFSET $2`
	} else {
		query += ` ORDER BY updated_at DESC LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	rows, err := r.executor().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list knowledge sources")
	}
	defer rows.Close()

	var out []*legal.KnowledgeSource
	for rows.Next() {
		ks, err := scanKnowledgeSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ks)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate knowledge sources")
	}
	return out, nil
}

// CountByDomain tallies sources and chunks per domain, ordered by domain.
func (r *KnowledgeSourceRepo) CountByDomain(ctx context.Context) ([]legal.DomainCount, error) {
	query := `
		SELECT domain, COUNT(*), COALESCE(SUM(chunk_count), 0)
		FROM knowledge_sources
		GROUP BY domain
		ORDER BY domain
	`
	rows, err := r.executor().QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count knowledge sources")
	}
	defer rows.Close()

	var out []legal.DomainCount
	for rows.Next() {
		var c legal.DomainCount
		if err := rows.Scan(&c.Domain, &c.Sources, &c.Chunks); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan knowledge source count")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *KnowledgeSourceRepo) Delete(ctx context.Context, domain, source string) error {
	res, err := r.executor().ExecContext(ctx,
		`DELETE FROM knowledge_sources WHERE domain = $1 AND source = $2`, domain, source)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to delete knowledge source")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.New(errors.ErrCodeNotFound, "knowledge source not found").
			WithDetail(domain + "/" + source)
	}
	return nil
}

func scanKnowledgeSource(row scanner) (*legal.KnowledgeSource, error) {
	ks := &legal.KnowledgeSource{}
	var meta []byte
	err := row.Scan(
		&ks.ID, &ks.Domain, &ks.Source, &ks.Collection, &ks.ChunkCount, &ks.ContentHash,
		&meta, &ks.IngestedAt, &ks.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeNotFound, "knowledge source not found")
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan knowledge source")
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &ks.Metadata)
	}
	return ks, nil
}
