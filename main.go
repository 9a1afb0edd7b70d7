package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"auto_note_article_publisher/auth"
	"auto_note_article_publisher/executor"
	"auto_note_article_publisher/generator"
	"auto_note_article_publisher/publisher"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    publisher.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "note-poster",
	Short: "Post Markdown articles to note.com as drafts",
	Long: `note-poster logs in to note.com with a headless browser, creates a draft
from Markdown, attaches an optional eyecatch image and saves it.

Credentials are read from NOTE_EMAIL and NOTE_PASSWORD.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = publisher.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger, err = buildLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(postCmd, githubCmd, scheduleCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildLogger writes JSON to stderr and, when configured, to the log file.
func buildLogger(lc publisher.LogConfig, debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if lc.File != "" {
		config.OutputPaths = append(config.OutputPaths, lc.File)
	}
	return config.Build()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newPublisher checks the identity first so a missing credential fails
// before any browser or network activity.
func newPublisher(exec *executor.Executor) (*publisher.Publisher, error) {
	id, err := publisher.IdentityFromEnv()
	if err != nil {
		return nil, err
	}
	return publisher.New(cfg, id, publisher.Deps{
		Acquirer: auth.NewRodAcquirer(cfg.RodConfig(), logger),
		Executor: exec,
		Logger:   logger,
	})
}

func newExecutor() *executor.Executor {
	return executor.New(cfg.ExecutorConfig(), nil, logger)
}

func newAgent() (*generator.Agent, error) {
	var settings *generator.LLMSettings
	if cfg.LLM != nil {
		settings = &generator.LLMSettings{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		}
	}
	llm, err := generator.NewLLM(settings)
	if err != nil {
		return nil, err
	}
	return generator.NewAgent(llm, logger)
}

// report prints the outcome of a run and turns a failure into an error.
func report(cmd *cobra.Command, res *publisher.Result, err error) error {
	if err != nil {
		return err
	}
	if res.ImageErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: saved without eyecatch: %v\n", res.ImageErr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.URL)
	return nil
}
