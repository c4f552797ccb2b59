package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adotb/adotb-go/internal/fileproc"
	"github.com/adotb/adotb-go/internal/logging"
	"github.com/adotb/adotb-go/internal/pipeline"
	"github.com/adotb/adotb-go/internal/rag"
)

// NewIngestCmd constructs the `adotb ingest` command, which loads local
// files into the vector store without going through the HTTP API.
func NewIngestCmd() *cobra.Command {
	var label string
	var processor string
	var delimiter string
	var files []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load local document files into the vector store",
		Long: `Chunk, embed, and store local files in the configured vector store.

Text and markdown files are chunked by the selected processor. CSV files
carry pre-chunked documents, one row per document, with columns
id,text,label,links,medialinks.

Required environment variables:
  VECTORDB_TYPE        Vector store backend: chroma, postgres, qdrant (default: chroma)
  CHROMA_DB_PATH       Chroma store directory (default: chromadb_store)
  EMBEDDING_PROVIDER   Embedding backend: openai, ollama (default: openai)
  OPENAI_API_KEY       API key for the default embedding backend

Examples:
  adotb ingest --file notes.txt --label open-access
  adotb ingest --file translation.csv
  adotb ingest --processor langchain --file ch01.md --file ch02.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(files) == 0 {
				return fmt.Errorf("ingest: at least one --file is required")
			}

			delim, err := delimiterRune(delimiter)
			if err != nil {
				return err
			}

			embCfg := embeddingConfigFromEnv()
			pipe := pipeline.NewUploadPipeline()
			if err := pipe.SetEmbedding(embCfg); err != nil {
				return fmt.Errorf("ingest: embedding provider: %w", err)
			}
			if err := pipe.SetVectorDB(ctx, vectorDBConfigFromEnv(embCfg.ResolvedDimensions())); err != nil {
				return fmt.Errorf("ingest: vector store: %w", err)
			}
			defer func() { _ = pipe.Close() }()

			if err := pipe.SetFileProcessor(fileproc.Kind(processor)); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			total := 0
			for _, path := range files {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}

				var docs []rag.Document
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				if strings.EqualFold(filepath.Ext(path), ".csv") {
					docs, err = fileproc.ProcessCSV(f, delim)
				} else {
					docs, err = pipe.Processor().ProcessText(f, name, label, nil)
				}
				_ = f.Close()
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				if err := pipe.Ingest(ctx, docs); err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				total += len(docs)
				log.Info("file ingested", slog.String("file", path), slog.Int("documents", len(docs)))
			}

			log.Info("ingestion complete", slog.Int("files", len(files)), slog.Int("documents", total))
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "Access label applied to every chunk (default: open-access)")
	cmd.Flags().StringVar(&processor, "processor", string(fileproc.KindVanilla), "Text chunking strategy (vanilla, langchain)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "comma", "CSV field delimiter (comma, tab)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "File to ingest (repeatable)")

	return cmd
}

// delimiterRune maps the --delimiter flag to a CSV delimiter rune.
func delimiterRune(name string) (rune, error) {
	switch name {
	case "", "comma":
		return ',', nil
	case "tab":
		return '\t', nil
	default:
		return 0, fmt.Errorf("ingest: unknown delimiter %q (want comma or tab)", name)
	}
}
