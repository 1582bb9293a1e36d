package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/chromemdb"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/pipeline"
	"document-qa/internal/rag"
)

var (
	jsonOutput  bool
	showSources bool
	backupKey   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Convert, chunk, embed and store documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		paths, err := helper.StageFiles(a.cfg.Uploads.Dir, args)
		if err != nil {
			return err
		}
		stats, err := a.pipeline.ProcessDocuments(cmd.Context(), paths)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			helper.PrettyPrint(out, stats)
			return nil
		}
		for _, fs := range stats.PerFileStats {
			fmt.Fprintf(out, "%-40s %5d chunks  %s\n", fs.Filename, fs.Chunks, fs.Status)
		}
		for _, f := range stats.FailedFiles {
			fmt.Fprintf(out, "failed: %s\n", f)
		}
		fmt.Fprintf(out, "%d file(s) processed, %d chunk(s) stored\n", stats.FilesProcessed, stats.TotalChunks)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a single question from the stored documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		question := strings.Join(args, " ")
		_, answer, err := a.engine.Ask(cmd.Context(), rag.Session{}, question, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout())
		if showSources {
			printSources(cmd, answer.Sources)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row count and stored files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		stats := pipeline.GetTableStats(cmd.Context(), a.tables)
		out := cmd.OutOrStdout()
		if jsonOutput {
			helper.PrettyPrint(out, stats)
			return nil
		}
		fmt.Fprintf(out, "Total chunks: %d\n", stats.TotalRows)
		fmt.Fprintf(out, "Files (%d):\n", len(stats.UniqueFiles))
		for _, f := range stats.UniqueFiles {
			fmt.Fprintf(out, "  %s\n", f)
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question answering session",
	Long: `Starts a chat over the stored documents. Besides questions the prompt accepts:
  :ingest FILE...  add documents to the table
  :stats           show table statistics
  :clear           forget the conversation history
  :quit            leave`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.chat(cmd)
	},
}

func (a *app) chat(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	var session rag.Session

	if stats := pipeline.GetTableStats(ctx, a.tables); stats.TotalRows == 0 {
		fmt.Fprintln(out, models.EmptyTableHint)
	}

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)

		switch {
		case line == "":
			continue
		case line == ":quit" || line == ":q":
			return nil
		case line == ":clear":
			session = session.ClearHistory()
			fmt.Fprintln(out, "History cleared.")
		case line == ":stats":
			stats := pipeline.GetTableStats(ctx, a.tables)
			fmt.Fprintf(out, "%d chunks from %d file(s)\n", stats.TotalRows, len(stats.UniqueFiles))
		case fields[0] == ":ingest":
			fresh := session.NewFiles(fields[1:])
			if len(fresh) == 0 {
				fmt.Fprintln(out, "Nothing new to ingest.")
				continue
			}
			paths, err := helper.StageFiles(a.cfg.Uploads.Dir, fresh)
			if err != nil {
				return err
			}
			stats, err := a.pipeline.ProcessDocuments(ctx, paths)
			if err != nil {
				return err
			}
			var done []string
			for _, fs := range stats.PerFileStats {
				if fs.Succeeded() {
					done = append(done, fs.Filename)
				}
			}
			session = session.MarkProcessed(done)
			if _, err := a.tables.Reopen(ctx); err != nil {
				return err
			}
			fmt.Fprintf(out, "Stored %d chunk(s) from %d file(s); %d failed.\n",
				stats.TotalChunks, stats.FilesProcessed, len(stats.FailedFiles))
		case strings.HasPrefix(line, ":"):
			fmt.Fprintf(out, "Unknown command %s\n", fields[0])
		default:
			next, answer, err := a.engine.Ask(ctx, session, line, out)
			fmt.Fprintln(out)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Msg("Failed to answer")
				continue
			}
			session = next
			if answer.Found {
				printSources(cmd, answer.Sources)
			}
		}
	}
}

var exportCmd = &cobra.Command{
	Use:   "export FILE",
	Short: "Write an encrypted backup of the chromem table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChromemTable(cmd.Context(), func(t *chromemdb.VectorDBManager) error {
			return t.Export(args[0], backupKey)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Restore the chromem table from a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withChromemTable(cmd.Context(), func(t *chromemdb.VectorDBManager) error {
			return t.Import(args[0], backupKey)
		})
	},
}

func withChromemTable(ctx context.Context, fn func(*chromemdb.VectorDBManager) error) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	table, err := a.tables.Table(ctx)
	if err != nil {
		return err
	}
	t, ok := table.(*chromemdb.VectorDBManager)
	if !ok {
		return fmt.Errorf("backups are only supported by the chromem backend, table %s uses %s",
			table.Name(), a.cfg.Storage.Backend)
	}
	return fn(t)
}

func init() {
	ingestCmd.Flags().BoolVar(&jsonOutput, "json", false, "print processing stats as JSON")
	statsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print table stats as JSON")
	askCmd.Flags().BoolVar(&showSources, "sources", true, "list the retrieved sources after the answer")
	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().StringVar(&backupKey, "key", "", "32 byte encryption key")
		_ = c.MarkFlagRequired("key")
	}

	rootCmd.AddCommand(ingestCmd, askCmd, statsCmd, chatCmd, exportCmd, importCmd)
}
