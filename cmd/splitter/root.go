package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"invoicesplit/internal/config"
	"invoicesplit/internal/document"
	"invoicesplit/internal/logging"
	"invoicesplit/internal/parser"
	"invoicesplit/internal/parser/claude"
	"invoicesplit/internal/parser/openai"
	"invoicesplit/internal/port"
	"invoicesplit/internal/repository/memory"
	"invoicesplit/internal/service"
	s3storage "invoicesplit/internal/storage/s3"
)

var (
	cfgFile string
	verbose bool

	// cfg is populated by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "splitter",
	Short: "Split an invoice's line items between two people",
	Long: `splitter reads a PDF invoice, extracts its line items with a language
model and works out who owes whom once every item has been assigned.

Run "splitter serve" for the interactive form and JSON API, or
"splitter process" to split a single document from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		logging.Setup(loaded.Log)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	parser.RegisterProvider("openrouter", openai.Factory)
	parser.RegisterProvider("openai", openai.Factory)
	parser.RegisterProvider("claude", claude.Factory)
}

// app holds the wired dependencies shared by the serve and process commands.
type app struct {
	completer port.TextCompleter
	storage   port.ObjectStorage
	svc       service.SplitService
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	reader, err := document.NewReader(cfg.Extractor)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document reader: %w", err)
	}
	extractor := document.NewExtractor(reader, cfg.Extractor)

	completer, err := parser.NewCompleterChain(&cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completer: %w", err)
	}
	if err := completer.CheckCredential(); err != nil {
		slog.Warn("parser.no_credential", "error", err)
	}
	structurer := parser.NewStructurer(completer, cfg.Parser)

	var storage port.ObjectStorage
	if s3Enabled(&cfg.S3) {
		storage, err = s3storage.NewS3Client(ctx, &cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	repo := memory.NewSessionRepo(
		memory.WithTTL(cfg.Split.SessionTTL),
		memory.WithMaxSessions(cfg.Split.MaxSessions),
	)
	svc := service.NewSplitService(repo, extractor, structurer, storage, cfg.Split)

	return &app{completer: completer, storage: storage, svc: svc}, nil
}

func s3Enabled(c *config.S3Config) bool {
	return c.Bucket != "" || c.Endpoint != "" || c.AccessKey != ""
}
