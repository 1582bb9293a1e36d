package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/parser"
	"document-qa/internal/pipeline"
	"document-qa/internal/rag"
	"document-qa/internal/store"
)

const configFilePath = "./configs/config.yaml"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents",
	Long: `docqa converts PDF, DOCX, PPTX, XLSX, Markdown, HTML and text files into
structure-aware chunks, stores their embeddings in a vector table and answers
questions with citations to the source file, pages and section.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configFilePath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the wired components for one command invocation
type app struct {
	cfg      *config.Config
	tables   *store.Manager
	pipeline *pipeline.Pipeline
	engine   *rag.Engine
}

func newApp(withChat bool) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	helper.SetupLogger(level, cfg.Log.Console)
	log.Debug().Str("config", configPath).Str("backend", cfg.Storage.Backend).Msg("Loaded config")

	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	tokenizer, err := chunker.NewTokenizer(&cfg.Chunking)
	if err != nil {
		return nil, err
	}

	tables := store.NewManager(&cfg.Storage, embedder, cfg.Embedding.Model)
	a := &app{
		cfg:    cfg,
		tables: tables,
		pipeline: pipeline.New(
			parser.NewDocumentConverter(),
			chunker.NewHybridChunker(tokenizer,
				chunker.WithMaxTokens(cfg.Chunking.MaxTokens),
				chunker.WithMergePeers(cfg.Chunking.MergePeers),
			),
			tables,
		),
	}

	if withChat {
		llm, err := llmservice.NewChatModel(&cfg.Chat.LLMConfig)
		if err != nil {
			return nil, err
		}
		a.engine = rag.NewEngine(tables, llm,
			rag.WithNumResults(cfg.Retrieval.NumResults),
			rag.WithTemperature(cfg.Chat.Temperature),
		)
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.tables.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close table")
	}
}

func printSources(cmd *cobra.Command, sources []rag.Source) {
	if len(sources) == 0 {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nSources:")
	for i, s := range sources {
		fmt.Fprintf(out, "  [%d] %s (%s)\n", i+1, s.Source, s.Title)
	}
}
