// Package postgres implements store.Backend on a single JSONB table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/assetinventory/internal/store"
)

// Schema creates the entities table and its indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    kind       TEXT        NOT NULL,
    id         UUID        NOT NULL,
    data       JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (kind, id)
);
CREATE INDEX IF NOT EXISTS entities_kind_created_idx ON entities (kind, created_at);
CREATE INDEX IF NOT EXISTS entities_data_gin_idx ON entities USING GIN (data jsonb_path_ops);
`

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Backend stores documents in the entities table.
type Backend struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool, now: time.Now}
}

var _ store.Backend = (*Backend)(nil)

// EnsureSchema creates the entities table if it does not exist.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// List returns documents of kind ordered by opts.Sort.
func (b *Backend) List(ctx context.Context, kind string, opts store.ListOptions) ([]json.RawMessage, error) {
	query, args, err := listQuery(kind, opts)
	if err != nil {
		return nil, err
	}
	return queryDocs(ctx, b.pool, query, args...)
}

// listQuery builds the List statement. The sort field is validated by
// store.ParseSort and passed as a parameter, never interpolated.
func listQuery(kind string, opts store.ListOptions) (string, []any, error) {
	field, desc, err := store.ParseSort(opts.Sort)
	if err != nil {
		return "", nil, err
	}

	args := []any{kind}
	query := `SELECT data FROM entities WHERE kind = $1`

	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	if field != "" {
		args = append(args, field)
		query += fmt.Sprintf(` ORDER BY data->>$2 %s NULLS LAST, created_at`, dir)
	} else {
		query += ` ORDER BY created_at, id`
	}

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return query, args, nil
}

// Filter returns documents containing every field in match.
func (b *Backend) Filter(ctx context.Context, kind string, match map[string]any) ([]json.RawMessage, error) {
	if len(match) == 0 {
		return b.List(ctx, kind, store.ListOptions{})
	}
	contains, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return queryDocs(ctx, b.pool,
		`SELECT data FROM entities WHERE kind = $1 AND data @> $2::jsonb ORDER BY created_at, id`,
		kind, string(contains))
}

// Get returns a document or store.ErrNotFound.
func (b *Backend) Get(ctx context.Context, kind, id string) (json.RawMessage, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	var data []byte
	err = b.pool.QueryRow(ctx, `SELECT data FROM entities WHERE kind = $1 AND id = $2`, kind, uid).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return json.RawMessage(data), nil
}

// Create inserts a document under a new id.
func (b *Backend) Create(ctx context.Context, kind string, doc json.RawMessage) (json.RawMessage, error) {
	return insertDoc(ctx, b.pool, kind, doc, b.now())
}

// BulkCreate inserts every document in one transaction. Any failure rolls
// the whole call back.
func (b *Backend) BulkCreate(ctx context.Context, kind string, docs []json.RawMessage) ([]json.RawMessage, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := b.now()
	batch := &pgx.Batch{}
	stamped := make([]json.RawMessage, 0, len(docs))
	for i, doc := range docs {
		id := uuid.New()
		out, err := store.Stamp(doc, id.String(), now)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		stamped = append(stamped, out)
		batch.Queue(`INSERT INTO entities (kind, id, data, created_at) VALUES ($1, $2, $3, $4)`,
			kind, id, []byte(out), now)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range stamped {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stamped, nil
}

// Update merges patch into the stored document with the jsonb || operator.
func (b *Backend) Update(ctx context.Context, kind, id string, patch json.RawMessage) (json.RawMessage, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	// Strip owned fields before the merge.
	clean, err := store.Merge(json.RawMessage(`{}`), patch)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = b.pool.QueryRow(ctx,
		`UPDATE entities SET data = data || $3::jsonb WHERE kind = $1 AND id = $2 RETURNING data`,
		kind, uid, string(clean)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}
	return json.RawMessage(data), nil
}

// Delete removes a document.
func (b *Backend) Delete(ctx context.Context, kind, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	tag, err := b.pool.Exec(ctx, `DELETE FROM entities WHERE kind = $1 AND id = $2`, kind, uid)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func insertDoc(ctx context.Context, db DBTX, kind string, doc json.RawMessage, now time.Time) (json.RawMessage, error) {
	id := uuid.New()
	out, err := store.Stamp(doc, id.String(), now)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(ctx,
		`INSERT INTO entities (kind, id, data, created_at) VALUES ($1, $2, $3, $4)`,
		kind, id, []byte(out), now); err != nil {
		return nil, fmt.Errorf("insert %s: %w", kind, err)
	}
	return out, nil
}

func queryDocs(ctx context.Context, db DBTX, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
