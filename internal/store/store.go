package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/models"
)

var (
	ErrUnknownBackend    = errors.New("unknown storage backend")
	ErrDimensionMismatch = models.ErrDimensionMismatch
	ErrClosed            = errors.New("table manager is closed")
)

// Table is a persistent collection of embedded chunks.
type Table interface {
	Name() string
	Schema() models.TableSchema
	// Add embeds and stores a batch. Vectors must match the schema dimension.
	Add(ctx context.Context, chunks []models.Chunk) error
	// Search returns at most limit chunks, best match first.
	Search(ctx context.Context, query string, limit int) ([]models.Chunk, error)
	CountRows(ctx context.Context) (int, error)
	// Filenames lists distinct non-null filenames.
	Filenames(ctx context.Context) ([]string, error)
	Close() error
}

var (
	_ Table = (*chromemdb.VectorDBManager)(nil)
	_ Table = (*db.VectorTable)(nil)
)

// GetOrCreateTable opens the configured table, creating it when absent.
func GetOrCreateTable(ctx context.Context, cfg *config.StorageConfig, embedder embeddings.Embedder, embeddingModel string) (Table, error) {
	switch cfg.Backend {
	case "chromem", "":
		t, err := chromemdb.Open(ctx, chromemdb.Options{
			Path:           cfg.Path,
			Table:          cfg.Table,
			Compress:       cfg.Compress,
			EmbeddingModel: embeddingModel,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to open table %s: %w", cfg.Table, err)
		}
		return t, nil
	case "pgvector":
		t, err := db.Open(ctx, cfg, embedder, embeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to open table %s: %w", cfg.Table, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// Manager owns the table handle for the lifetime of a process or session.
type Manager struct {
	cfg            config.StorageConfig
	embedder       embeddings.Embedder
	embeddingModel string
	table          Table
	closed         bool
}

func NewManager(cfg *config.StorageConfig, embedder embeddings.Embedder, embeddingModel string) *Manager {
	return &Manager{
		cfg:            *cfg,
		embedder:       embedder,
		embeddingModel: embeddingModel,
	}
}

// Open opens or creates the table and caches the handle.
func (m *Manager) Open(ctx context.Context) (Table, error) {
	if m.closed {
		return nil, ErrClosed
	}
	t, err := GetOrCreateTable(ctx, &m.cfg, m.embedder, m.embeddingModel)
	if err != nil {
		return nil, err
	}
	if m.table != nil {
		_ = m.table.Close()
	}
	m.table = t
	return t, nil
}

// Table returns the cached handle, opening it on first use.
func (m *Manager) Table(ctx context.Context) (Table, error) {
	if m.table != nil {
		return m.table, nil
	}
	return m.Open(ctx)
}

// Reopen drops the cached handle so the next read sees the latest writes.
func (m *Manager) Reopen(ctx context.Context) (Table, error) {
	log.Debug().Str("table", m.cfg.Table).Msg("Reopening table")
	return m.Open(ctx)
}

func (m *Manager) Close() error {
	m.closed = true
	if m.table == nil {
		return nil
	}
	err := m.table.Close()
	m.table = nil
	return err
}
