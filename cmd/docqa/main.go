// Package main implements the docqa CLI: index a folder of documents once,
// then answer questions about them from the persisted vector store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docqa/internal/config"
	"docqa/internal/domain"
	embopenai "docqa/internal/embedding/openai"
	llmopenai "docqa/internal/llm/openai"
	"docqa/internal/loader"
	"docqa/internal/logging"
	"docqa/internal/repl"
	"docqa/internal/retriever"
	"docqa/internal/retry"
	"docqa/internal/service"
	"docqa/internal/splitter"
	"docqa/internal/tui"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/chromem"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/qdrant"
)

var version = "dev"

type options struct {
	configPath   string
	forceRebuild bool
	useTUI       bool
	logLevel     string
}

func main() {
	os.Exit(runMain(os.Args[1:]))
}

// runMain returns the process exit code so deferred cleanup runs before exit.
func runMain(args []string) int {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "docqa",
		Short: "Ask questions about a folder of PDF and text documents",
		Long: `docqa indexes the PDF and .txt files in DOCS_DIR into a persisted vector
store on first run, then answers questions using only the retrieved passages.

Examples:
  # Build the index if needed and start asking questions
  docqa

  # Re-read every document and rebuild the index
  docqa --force-rebuild

  # Use the full-screen interface
  docqa --tui`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.forceRebuild, "force-rebuild", false, "delete the persisted vector store and rebuild it from DOCS_DIR")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "use the interactive terminal UI instead of the line prompt")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config file (default ./config.yaml or ~/.config/docqa/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func loadConfig(opts *options) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	policy := retry.PolicyFromConfig(cfg.Retry)
	embClient, err := embopenai.NewClient(embopenai.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey,
		Model:     cfg.Embedder.Model,
		BatchSize: cfg.Embedder.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	embedder := retry.WrapEmbedder(embClient, policy, logger)

	llmClient, err := llmopenai.NewClient(llmopenai.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("creating chat model: %w", err)
	}
	llm := retry.WrapChatModel(llmClient, policy, logger)

	backend, closeBackend, err := newBackend(cfg, embedder, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn("closing vector store", zap.Error(err))
		}
	}()

	sp, err := splitter.New(cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap)
	if err != nil {
		return err
	}
	indexer := service.NewIndexer(
		loader.New(cfg.DocsDir, loader.WithLogger(logger)),
		sp,
		vectorstore.NewManager(backend, logger),
		embedder,
		logger,
	)
	store, err := indexer.BuildOrLoad(ctx, opts.forceRebuild)
	if err != nil {
		logger.Error("preparing vector store failed", zap.Error(err))
		return err
	}
	defer func() { _ = store.Close() }()

	qa := service.NewQAService(
		retriever.New(embedder, store, cfg.Retriever.TopK, logger),
		llm,
		service.WithTimeout(time.Duration(cfg.Orchestrator.TimeoutSecs)*time.Second),
		service.WithLogger(logger),
	)

	if opts.useTUI {
		_, err := tea.NewProgram(tui.New(ctx, qa), tea.WithAltScreen()).Run()
		return err
	}
	err = repl.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), qa)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newBackend selects the vector store backend. The returned func releases
// any connection it holds.
func newBackend(cfg *config.AppConfig, embedder domain.EmbeddingProvider, logger *zap.Logger) (vectorstore.Backend, func() error, error) {
	noop := func() error { return nil }
	vs := cfg.VectorStore
	switch vs.Type {
	case config.StoreChromem:
		b, err := chromem.NewBackend(chromem.Config{
			PersistDir: vs.PersistDir,
			Collection: vs.Collection,
			Compress:   vs.Compress,
		}, embedder, logger)
		if err != nil {
			return nil, noop, err
		}
		return b, noop, nil
	case config.StoreQdrant:
		b, err := qdrant.NewBackend(qdrant.Config{
			Host:       vs.Qdrant.Host,
			Port:       vs.Qdrant.Port,
			APIKey:     vs.Qdrant.APIKey,
			UseTLS:     vs.Qdrant.UseTLS,
			Collection: vs.Collection,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	case config.StoreMemory:
		return memory.NewBackend(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown vector store: %s", vs.Type)
	}
}
