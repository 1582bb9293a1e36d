package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"gopkg.in/yaml.v3"

	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

// VectorDBManager is a chunk table backed by a persistent chromem collection.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder
	schema     models.TableSchema
	dbPath     string
	compress   bool
}

// Options configure Open. An empty Path keeps the database in memory.
type Options struct {
	Path           string
	Table          string
	Compress       bool
	EmbeddingModel string
}

// Open opens the named collection, creating it with a probed vector size if absent.
func Open(ctx context.Context, opts Options, embedder embeddings.Embedder) (*VectorDBManager, error) {
	var (
		db  *chromem.DB
		err error
	)
	if opts.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(opts.Path); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:       db,
		embedder: embedder,
		dbPath:   opts.Path,
		compress: opts.Compress,
	}
	if err := m.getOrCreateCollection(ctx, opts.Table, opts.EmbeddingModel); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VectorDBManager) schemaPath(name string) string {
	return filepath.Join(m.dbPath, name+".schema.yaml")
}

func (m *VectorDBManager) getOrCreateCollection(ctx context.Context, name, model string) error {
	embedFn := embedding.EmbeddingFunc(m.embedder)

	if c := m.db.GetCollection(name, embedFn); c != nil {
		m.collection = c
		schema, err := m.readSchema(name)
		if err == nil {
			m.schema = schema
			log.Debug().Str("table", name).Int("dimensions", schema.Dimensions).Msg("Opened existing table")
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		// collection written without a schema file
		dims, err := embedding.Dimensions(ctx, m.embedder)
		if err != nil {
			return err
		}
		m.schema = models.NewTableSchema(name, dims, model)
		return m.writeSchema()
	}

	dims, err := embedding.Dimensions(ctx, m.embedder)
	if err != nil {
		return err
	}
	c, err := m.db.CreateCollection(name, map[string]string{"embedding_model": model}, embedFn)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	m.collection = c
	m.schema = models.NewTableSchema(name, dims, model)
	if err := m.writeSchema(); err != nil {
		return err
	}
	log.Info().Str("table", name).Int("dimensions", dims).Msg("Created table")
	return nil
}

func (m *VectorDBManager) readSchema(name string) (models.TableSchema, error) {
	var schema models.TableSchema
	if m.dbPath == "" {
		return schema, os.ErrNotExist
	}
	data, err := os.ReadFile(m.schemaPath(name))
	if err != nil {
		return schema, err
	}
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return schema, fmt.Errorf("failed to parse table schema: %w", err)
	}
	if schema.Dimensions <= 0 {
		return schema, fmt.Errorf("table schema %s has no dimensions", name)
	}
	return schema, nil
}

func (m *VectorDBManager) writeSchema() error {
	if m.dbPath == "" {
		return nil
	}
	data, err := yaml.Marshal(m.schema)
	if err != nil {
		return fmt.Errorf("failed to encode table schema: %w", err)
	}
	if err := os.WriteFile(m.schemaPath(m.schema.Name), data, 0o644); err != nil {
		return fmt.Errorf("failed to write table schema: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Name() string {
	return m.schema.Name
}

func (m *VectorDBManager) Schema() models.TableSchema {
	return m.schema
}

// Add embeds the chunks that carry no vector in one provider call and stores the batch.
func (m *VectorDBManager) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, len(chunks))
	var (
		texts   []string
		missing []int
	)
	for i, c := range chunks {
		if len(c.Vector) > 0 {
			vectors[i] = c.Vector
			continue
		}
		texts = append(texts, c.Text)
		missing = append(missing, i)
	}
	if len(texts) > 0 {
		embedded, err := m.embedder.EmbedDocuments(ctx, texts)
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

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != m.schema.Dimensions {
			return fmt.Errorf("%w: got %d, table %s expects %d",
				models.ErrDimensionMismatch, len(vectors[i]), m.schema.Name, m.schema.Dimensions)
		}
		id, err := helper.GenerateUUID()
		if err != nil {
			return err
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   c.Text,
			Metadata:  encodeMetadata(c.Metadata),
			Embedding: vectors[i],
		}
	}
	return m.CreateDocs(ctx, docs)
}

// CreateDocs adds prepared documents to the collection
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	if err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search returns up to limit chunks closest to query, best first.
func (m *VectorDBManager) Search(ctx context.Context, query string, limit int) ([]models.Chunk, error) {
	total := m.collection.Count()
	if total == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > total {
		limit = total
	}

	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vec) != m.schema.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, table %s expects %d",
			models.ErrDimensionMismatch, len(vec), m.schema.Name, m.schema.Dimensions)
	}

	results, err := m.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vec,
		NResults:       limit,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, models.Chunk{
			Text:     r.Content,
			Vector:   r.Embedding,
			Metadata: decodeMetadata(r.Metadata),
		})
	}
	return chunks, nil
}

// SearchWithQueryOptions runs a raw similarity query
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func (m *VectorDBManager) CountRows(ctx context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Filenames scans every row and returns the distinct filenames, sorted.
func (m *VectorDBManager) Filenames(ctx context.Context) ([]string, error) {
	total := m.collection.Count()
	if total == 0 {
		return []string{}, nil
	}

	probe := make([]float32, m.schema.Dimensions)
	probe[0] = 1
	results, err := m.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: probe,
		NResults:       total,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	names := []string{}
	for _, r := range results {
		name, ok := r.Metadata[keyFilename]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Export writes the collection to an encrypted file
func (m *VectorDBManager) Export(filePath, encryptionKey string) error {
	if encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	log.Debug().Str("table", m.schema.Name).Str("file", filePath).Bool("compress", m.compress).Msg("Exporting table")
	if err := m.db.ExportToFile(filePath, m.compress, encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the collection's rows with the ones in a file written by Export.
// The backup is checked before the current rows are dropped.
func (m *VectorDBManager) Import(filePath, encryptionKey string) error {
	if encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	name := m.collection.Name

	check := chromem.NewDB()
	if err := check.ImportFromFile(filePath, encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	if _, ok := check.ListCollections()[name]; !ok {
		return fmt.Errorf("backup %s has no table %s", filePath, name)
	}

	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop table %s before import: %w", name, err)
	}
	if err := m.db.ImportFromFile(filePath, encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(name, embedding.EmbeddingFunc(m.embedder))
	if c == nil {
		return fmt.Errorf("collection %s missing after import", m.schema.Name)
	}
	m.collection = c
	log.Info().Str("table", name).Int("rows", c.Count()).Str("file", filePath).Msg("Imported table")
	return nil
}

// Close is a no-op; chromem persists every write immediately.
func (m *VectorDBManager) Close() error {
	return nil
}
