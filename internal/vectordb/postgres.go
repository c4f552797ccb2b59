package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/rag"
)

const defaultQueryLimit = 10

// tableNameRe keeps collection names usable as unquoted identifiers.
var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// PostgresStore implements rag.VectorStore on Postgres with the pgvector
// extension. One collection maps to one table; the vector column dimension
// is fixed when the table is created.
type PostgresStore struct {
	db       *sql.DB
	table    string
	dim      int
	embedder rag.Embedder
	limit    int
}

// PostgresConfig holds the connection and collection settings for
// constructing a PostgresStore.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Collection names the table holding the documents. Lower-case
	// letters, digits and underscores only.
	Collection string
	// Dimensions fixes the vector column size. Required on first use of a
	// collection; later instances must agree with it. Zero skips schema
	// creation, for read paths (label inventory, Get) over an existing
	// table.
	Dimensions int
	// Embedder computes vectors for documents and queries that arrive
	// without one. Needed by Add and Query; pgvector has no server-side
	// embedding. Read paths work without one.
	Embedder rag.Embedder
	// QueryLimit is the default result count for Query. Defaults to 10.
	QueryLimit int
}

// NewPostgresStore connects, verifies the server is reachable, and creates
// the extension, table and index if missing. Construction fails fast so a
// misconfigured store never reaches a live session.
func NewPostgresStore(ctx context.Context, cfg *PostgresConfig) (*PostgresStore, error) {
	table := strings.ToLower(cfg.Collection)
	if table == "" {
		table = "adotbcollection"
	}
	if !tableNameRe.MatchString(table) {
		return nil, apperrors.Malformed(fmt.Sprintf("invalid collection name %q", cfg.Collection))
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, apperrors.Store("could not open database", fmt.Errorf("postgres: open: %w", err), true)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Store("could not reach database", fmt.Errorf("postgres: ping %s:%d: %w", cfg.Host, cfg.Port, err), true)
	}

	limit := cfg.QueryLimit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	s := &PostgresStore{db: db, table: table, dim: cfg.Dimensions, embedder: cfg.Embedder, limit: limit}
	// Without a dimension the schema cannot be created; the store then only
	// serves reads against an existing table (label inventory, Get).
	if s.dim > 0 {
		if err := s.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '%s',
			links JSONB NOT NULL DEFAULT '[]',
			media JSONB NOT NULL DEFAULT '[]',
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, s.table, rag.DefaultLabel, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_label_idx ON %s (label)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.Store("could not prepare collection", fmt.Errorf("postgres: migrate %s: %w", s.table, err), true)
		}
	}
	return nil
}

// Add upserts documents by ID inside one transaction, embedding any that
// arrive without a vector. Vectors of the wrong size are rejected before
// anything is written.
func (s *PostgresStore) Add(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var missing []int
	for i := range docs {
		docs[i].Normalize()
		if docs[i].ID == "" {
			return apperrors.Malformed("document with empty id")
		}
		if docs[i].Embedding == nil {
			missing = append(missing, i)
		} else if s.dim > 0 && len(docs[i].Embedding) != s.dim {
			return apperrors.Malformed(fmt.Sprintf("embedding dimension %d does not match collection dimension %d", len(docs[i].Embedding), s.dim))
		}
	}
	if len(missing) > 0 {
		if s.embedder == nil {
			return apperrors.Malformed("no embedding provider configured")
		}
		pending := make([]rag.Document, len(missing))
		for j, i := range missing {
			pending[j] = docs[i]
		}
		if err := s.embedder.Embed(ctx, pending); err != nil {
			return err
		}
		for j, i := range missing {
			if s.dim > 0 && len(pending[j].Embedding) != s.dim {
				return apperrors.Malformed(fmt.Sprintf("embedding dimension %d does not match collection dimension %d", len(pending[j].Embedding), s.dim))
			}
			docs[i].Embedding = pending[j].Embedding
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Store("could not add documents", fmt.Errorf("postgres: begin: %w", err), false)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, text, label, links, media, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			label = EXCLUDED.label,
			links = EXCLUDED.links,
			media = EXCLUDED.media,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, s.table)

	for i := range docs {
		doc := &docs[i]
		links, media, meta, err := marshalDocJSON(doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, stmt,
			doc.ID, doc.Text, doc.Label, links, media, meta, pgvector.NewVector(doc.Embedding))
		if err != nil {
			return apperrors.Store("could not add documents", fmt.Errorf("postgres: upsert %s: %w", doc.ID, err), false)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Store("could not add documents", fmt.Errorf("postgres: commit: %w", err), false)
	}
	return nil
}

// Query embeds the query text and ranks by cosine similarity, optionally
// restricted to the given labels.
func (s *PostgresStore) Query(ctx context.Context, text string, labels []string, limit int) ([]rag.Document, error) {
	if limit <= 0 {
		limit = s.limit
	}

	if s.embedder == nil {
		return nil, apperrors.Malformed("no embedding provider configured")
	}
	query := []rag.Document{{ID: "query", Text: text}}
	if err := s.embedder.Embed(ctx, query); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(query[0].Embedding)

	var (
		sb   strings.Builder
		args = []any{vec}
	)
	fmt.Fprintf(&sb, `SELECT id, text, label, links, media, metadata, 1 - (embedding <=> $1) AS score FROM %s`, s.table)
	if len(labels) > 0 {
		placeholders := make([]string, len(labels))
		for i, l := range labels {
			args = append(args, l)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		fmt.Fprintf(&sb, ` WHERE label IN (%s)`, strings.Join(placeholders, ", "))
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, ` ORDER BY embedding <=> $1 LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, apperrors.Store("similarity search failed", fmt.Errorf("postgres: query: %w", err), false)
	}
	defer rows.Close()
	return scanDocs(rows, true)
}

// Labels returns the distinct labels present in the collection.
func (s *PostgresStore) Labels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT DISTINCT label FROM %s ORDER BY label`, s.table))
	if err != nil {
		return nil, apperrors.Store("could not list labels", fmt.Errorf("postgres: labels: %w", err), false)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, apperrors.Store("could not list labels", fmt.Errorf("postgres: labels scan: %w", err), false)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Get fetches documents by ID, in the order requested.
func (s *PostgresStore) Get(ctx context.Context, ids []string) ([]rag.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	stmt := fmt.Sprintf(`SELECT id, text, label, links, media, metadata FROM %s WHERE id IN (%s)`,
		s.table, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, apperrors.Store("could not fetch documents", fmt.Errorf("postgres: get: %w", err), false)
	}
	defer rows.Close()

	docs, err := scanDocs(rows, false)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]rag.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	ordered := make([]rag.Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

// Persist is a no-op: every Add commits a transaction.
func (s *PostgresStore) Persist(context.Context) error { return nil }

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }

func marshalDocJSON(doc *rag.Document) (links, media, meta []byte, err error) {
	if links, err = json.Marshal(emptyIfNil(doc.Links)); err == nil {
		if media, err = json.Marshal(emptyIfNil(doc.Media)); err == nil {
			if doc.Metadata == nil {
				meta = []byte("{}")
			} else {
				meta, err = json.Marshal(doc.Metadata)
			}
		}
	}
	if err != nil {
		return nil, nil, nil, apperrors.Malformed(fmt.Sprintf("document %s has unserialisable metadata", doc.ID))
	}
	return links, media, meta, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanDocs(rows *sql.Rows, withScore bool) ([]rag.Document, error) {
	var docs []rag.Document
	for rows.Next() {
		var (
			d                  rag.Document
			links, media, meta []byte
		)
		dest := []any{&d.ID, &d.Text, &d.Label, &links, &media, &meta}
		if withScore {
			dest = append(dest, &d.Score)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, apperrors.Store("could not read documents", fmt.Errorf("postgres: scan: %w", err), false)
		}
		if err := json.Unmarshal(links, &d.Links); err != nil {
			d.Links = []string{}
		}
		if err := json.Unmarshal(media, &d.Media); err != nil {
			d.Media = []string{}
		}
		_ = json.Unmarshal(meta, &d.Metadata)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
