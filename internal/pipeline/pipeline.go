package pipeline

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
	"document-qa/internal/store"
)

// Converter parses a file. A nil document with a nil error means nothing could be extracted.
type Converter interface {
	Convert(ctx context.Context, filePath string) (*models.Document, error)
}

type Chunker interface {
	Chunk(doc *models.Document) ([]models.DocChunk, error)
}

// Pipeline converts, chunks, embeds and stores documents.
type Pipeline struct {
	converter Converter
	chunker   Chunker
	tables    *store.Manager
}

func New(converter Converter, chunker Chunker, tables *store.Manager) *Pipeline {
	return &Pipeline{
		converter: converter,
		chunker:   chunker,
		tables:    tables,
	}
}

// ProcessDocuments ingests paths in order. A failing file is recorded and skipped;
// only a failure to provision the table is returned as an error.
func (p *Pipeline) ProcessDocuments(ctx context.Context, paths []string) (models.ProcessingStats, error) {
	stats := models.NewProcessingStats()

	table, err := p.tables.Table(ctx)
	if err != nil {
		return stats, err
	}

	for _, path := range paths {
		name := filepath.Base(path)

		chunks, ok, err := p.prepare(ctx, path)
		if err == nil && ok {
			err = table.Add(ctx, chunks)
		}

		switch {
		case err != nil:
			status := models.FailedStatus(err)
			stats.FailedFiles = append(stats.FailedFiles, path)
			stats.PerFileStats = append(stats.PerFileStats, models.FileStat{
				Filename: name,
				Chunks:   0,
				Status:   status,
			})
			log.Error().Err(err).Str("file", name).Int("chunks", 0).Str("status", status).Msg("Failed to process file")
		case !ok:
			stats.FailedFiles = append(stats.FailedFiles, path)
			log.Warn().Str("file", name).Int("chunks", 0).Msg("No content extracted")
		default:
			stats.FilesProcessed++
			stats.TotalChunks += len(chunks)
			stats.PerFileStats = append(stats.PerFileStats, models.FileStat{
				Filename: name,
				Chunks:   len(chunks),
				Status:   models.StatusSuccess,
			})
			log.Info().Str("file", name).Int("chunks", len(chunks)).Str("status", models.StatusSuccess).Msg("Processed file")
		}
	}

	log.Info().
		Int("files_processed", stats.FilesProcessed).
		Int("total_chunks", stats.TotalChunks).
		Int("failed", len(stats.FailedFiles)).
		Msg("Ingestion finished")
	return stats, nil
}

// prepare converts and chunks one file. ok is false when the file yielded no chunks.
// Converter and chunker errors are returned as is so the recorded status keeps their text.
func (p *Pipeline) prepare(ctx context.Context, path string) ([]models.Chunk, bool, error) {
	doc, err := p.converter.Convert(ctx, path)
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return nil, false, nil
	}

	docChunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return nil, false, err
	}
	if len(docChunks) == 0 {
		return nil, false, nil
	}

	chunks := make([]models.Chunk, 0, len(docChunks))
	for _, dc := range docChunks {
		chunks = append(chunks, models.Chunk{
			Text:     dc.Text,
			Metadata: chunkMetadata(dc, path),
		})
	}
	return chunks, true, nil
}

func chunkMetadata(dc models.DocChunk, path string) models.ChunkMetadata {
	filename := dc.Origin.Filename
	if filename == "" {
		filename = filepath.Base(path)
	}

	var pages []int
	for _, item := range dc.DocItems {
		pages = append(pages, item.Pages...)
	}

	var title *string
	if len(dc.Headings) > 0 {
		title = models.StringPtr(dc.Headings[0])
	}

	return models.ChunkMetadata{
		Filename:    models.StringPtr(filename),
		PageNumbers: models.NormalizePages(pages),
		Title:       title,
	}
}

// GetTableStats reports the row count and distinct filenames. Any failure yields empty stats.
func GetTableStats(ctx context.Context, tables *store.Manager) models.TableStats {
	empty := models.TableStats{TotalRows: 0, UniqueFiles: []string{}}

	table, err := tables.Table(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Table stats unavailable")
		return empty
	}
	total, err := table.CountRows(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to count rows")
		return empty
	}
	files, err := table.Filenames(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to list filenames")
		return empty
	}
	sort.Strings(files)
	if files == nil {
		files = []string{}
	}
	return models.TableStats{TotalRows: total, UniqueFiles: files}
}
