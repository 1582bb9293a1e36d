package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/models"
)

// Chunk is one row of a pgvector chunk table
type Chunk struct {
	bun.BaseModel `bun:"alias:c"`
	ID            int64                `bun:"id,pk,autoincrement"`
	Text          string               `bun:"text,notnull"`
	Vector        pgvector.Vector      `bun:"vector,notnull"`
	Metadata      models.ChunkMetadata `bun:"metadata,type:jsonb"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with the configured driver
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	case "pgx":
		return sql.Open("pgx", cfg.DSN)
	case "pgdriver", "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// VectorTable is a chunk table stored in Postgres with the pgvector extension.
type VectorTable struct {
	db       *bun.DB
	embedder embeddings.Embedder
	schema   models.TableSchema
}

// Open connects and opens the named table, creating it with a probed vector size if absent.
func Open(ctx context.Context, cfg *config.StorageConfig, embedder embeddings.Embedder, embeddingModel string) (*VectorTable, error) {
	sqldb, err := ConnectDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	t := &VectorTable{
		db:       NewDB(sqldb, cfg.Database.Debug),
		embedder: embedder,
	}
	if err := t.db.PingContext(ctx); err != nil {
		_ = t.db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := t.getOrCreate(ctx, cfg.Table, embeddingModel); err != nil {
		_ = t.db.Close()
		return nil, err
	}
	return t, nil
}

func (t *VectorTable) getOrCreate(ctx context.Context, name, model string) error {
	dims, err := t.existingDimensions(ctx, name)
	if err != nil {
		return err
	}
	if dims > 0 {
		t.schema = models.NewTableSchema(name, dims, model)
		log.Debug().Str("table", name).Int("dimensions", dims).Msg("Opened existing table")
		return nil
	}

	dims, err = embedding.Dimensions(ctx, t.embedder)
	if err != nil {
		return err
	}
	if err := InitDB(ctx, t.db, name, dims); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	t.schema = models.NewTableSchema(name, dims, model)
	log.Info().Str("table", name).Int("dimensions", dims).Msg("Created table")
	return nil
}

// existingDimensions returns the vector column size of name, or 0 when the table does not exist
func (t *VectorTable) existingDimensions(ctx context.Context, name string) (int, error) {
	var dims []int
	if err := dimensionsQuery(t.db, name).Scan(ctx, &dims); err != nil {
		return 0, fmt.Errorf("failed to inspect table %s: %w", name, err)
	}
	if len(dims) == 0 {
		return 0, nil
	}
	return dims[0], nil
}

// dimensionsQuery reads the vector column typmod, which pgvector sets to the dimension count
func dimensionsQuery(db *bun.DB, name string) *bun.SelectQuery {
	return db.NewSelect().
		TableExpr("pg_attribute AS a").
		ColumnExpr("a.atttypmod").
		Join("JOIN pg_class AS cl ON cl.oid = a.attrelid").
		Join("JOIN pg_namespace AS n ON n.oid = cl.relnamespace").
		Where("cl.relname = ?", name).
		Where("n.nspname = current_schema()").
		Where("a.attname = ?", models.VectorField).
		Where("NOT a.attisdropped")
}

// InitDB creates the extension and the chunk table
func InitDB(ctx context.Context, db *bun.DB, name string, dims int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, createTableSQL(db, name, dims))
	return err
}

func createTableSQL(db *bun.DB, name string, dims int) string {
	return db.Formatter().FormatQuery(`CREATE TABLE IF NOT EXISTS ? (
		id bigserial PRIMARY KEY,
		text text NOT NULL,
		vector vector(?) NOT NULL,
		metadata jsonb NOT NULL DEFAULT '{}'
	)`, bun.Ident(name), dims)
}

func (t *VectorTable) tableExpr() (string, bun.Ident) {
	return "? AS c", bun.Ident(t.schema.Name)
}

func (t *VectorTable) Name() string {
	return t.schema.Name
}

func (t *VectorTable) Schema() models.TableSchema {
	return t.schema
}

// Add embeds the chunks that carry no vector in one provider call and inserts the batch.
func (t *VectorTable) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var (
		texts   []string
		missing []int
	)
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		if len(c.Vector) > 0 {
			vectors[i] = c.Vector
			continue
		}
		texts = append(texts, c.Text)
		missing = append(missing, i)
	}
	if len(texts) > 0 {
		embedded, err := t.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embedded) != len(texts) {
			return fmt.Errorf("failed to embed chunks: got %d vectors for %d texts", len(embedded), len(texts))
		}
		for j, i := range missing {
			vectors[i] = embedded[j]
		}
	}

	rows, err := toRows(chunks, vectors, t.schema)
	if err != nil {
		return err
	}
	if _, err := t.insertQuery(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

func (t *VectorTable) insertQuery(rows *[]Chunk) *bun.InsertQuery {
	expr, ident := t.tableExpr()
	return t.db.NewInsert().Model(rows).ModelTableExpr(expr, ident)
}

func toRows(chunks []models.Chunk, vectors [][]float32, schema models.TableSchema) ([]Chunk, error) {
	rows := make([]Chunk, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != schema.Dimensions {
			return nil, fmt.Errorf("%w: got %d, table %s expects %d",
				models.ErrDimensionMismatch, len(vectors[i]), schema.Name, schema.Dimensions)
		}
		rows[i] = Chunk{
			Text:     c.Text,
			Vector:   pgvector.NewVector(vectors[i]),
			Metadata: c.Metadata,
		}
	}
	return rows, nil
}

// Search returns up to limit chunks by L2 distance, nearest first.
func (t *VectorTable) Search(ctx context.Context, query string, limit int) ([]models.Chunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	vec, err := t.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) != t.schema.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, table %s expects %d",
			models.ErrDimensionMismatch, len(vec), t.schema.Name, t.schema.Dimensions)
	}

	var rows []Chunk
	if err := t.searchQuery(&rows, vec, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	return fromRows(rows), nil
}

// searchQuery orders by L2 distance to vec, nearest first
func (t *VectorTable) searchQuery(rows *[]Chunk, vec []float32, limit int) *bun.SelectQuery {
	expr, ident := t.tableExpr()
	return t.db.NewSelect().
		Model(rows).
		ModelTableExpr(expr, ident).
		Column("text", "vector", "metadata").
		OrderExpr("c.vector <-> ?", pgvector.NewVector(vec)).
		Limit(limit)
}

func fromRows(rows []Chunk) []models.Chunk {
	out := make([]models.Chunk, 0, len(rows))
	for _, r := range rows {
		md := r.Metadata
		md.PageNumbers = models.NormalizePages(md.PageNumbers)
		out = append(out, models.Chunk{
			Text:     r.Text,
			Vector:   r.Vector.Slice(),
			Metadata: md,
		})
	}
	return out
}

func (t *VectorTable) CountRows(ctx context.Context) (int, error) {
	n, err := t.countQuery().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (t *VectorTable) countQuery() *bun.SelectQuery {
	expr, ident := t.tableExpr()
	return t.db.NewSelect().Model((*Chunk)(nil)).ModelTableExpr(expr, ident)
}

// Filenames lists the distinct non-null filenames, sorted.
func (t *VectorTable) Filenames(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := t.filenamesQuery().Scan(ctx, &names); err != nil {
		return nil, fmt.Errorf("failed to list filenames: %w", err)
	}
	return names, nil
}

func (t *VectorTable) filenamesQuery() *bun.SelectQuery {
	expr, ident := t.tableExpr()
	return t.db.NewSelect().
		TableExpr(expr, ident).
		ColumnExpr("DISTINCT c.metadata->>'filename' AS filename").
		Where("c.metadata->>'filename' IS NOT NULL").
		OrderExpr("filename")
}

func (t *VectorTable) Close() error {
	return t.db.Close()
}
