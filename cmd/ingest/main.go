package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"corpus-qa/internal/adapter/objstore"
	"corpus-qa/internal/di"
	"corpus-qa/internal/infra"
	"corpus-qa/internal/infra/config"
	"corpus-qa/internal/ingest"
)

var (
	version = "dev"

	// Global flags
	verbose    bool
	cursorFile string

	// Run command flags
	collection string
	prefix     string
	saveEvery  int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ingest",
	Short:   "Ingest corpus documents into the passage index",
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingest process",
	Long: `Run the ingest process to chunk, embed, and index documents from
object storage into the passage collection.

The process can be resumed from where it left off using cursor tracking.

Examples:
  # Process all documents under the configured prefix (resumes from cursor)
  ingest run

  # Process a specific prefix into a specific collection
  ingest run --collection handbook --prefix docs/handbook/

  # Checkpoint more often
  ingest run --save-every 1`,
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current cursor status",
	RunE:  showStatus,
}

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor",
	Short: "Reset the cursor to start from beginning",
	RunE:  resetCursor,
}

var resetCollectionCmd = &cobra.Command{
	Use:   "reset-collection",
	Short: "Delete every passage in a collection and clear the cursor",
	RunE:  resetCollection,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cursorFile, "cursor-file", "", "cursor file path (defaults to INGEST_CURSOR_PATH)")

	runCmd.Flags().StringVar(&collection, "collection", "", "target collection (defaults to RETRIEVAL_COLLECTION)")
	runCmd.Flags().StringVar(&prefix, "prefix", "", "object key prefix (defaults to SOURCE_PREFIX)")
	runCmd.Flags().IntVar(&saveEvery, "save-every", 10, "documents between cursor checkpoints")

	resetCollectionCmd.Flags().StringVar(&collection, "collection", "", "collection to delete (defaults to RETRIEVAL_COLLECTION)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCursorCmd)
	rootCmd.AddCommand(resetCollectionCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func ingestConfig(cfg *config.Config) ingest.Config {
	runCfg := ingest.DefaultConfig()
	runCfg.Collection = cfg.Collection
	runCfg.Prefix = cfg.SourcePrefix
	runCfg.Suffixes = cfg.SourceSuffixes
	runCfg.CursorFile = cfg.CursorPath
	if collection != "" {
		runCfg.Collection = collection
	}
	if prefix != "" {
		runCfg.Prefix = prefix
	}
	if cursorFile != "" {
		runCfg.CursorFile = cursorFile
	}
	if saveEvery > 0 {
		runCfg.SaveEvery = saveEvery
	}
	return runCfg
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := config.Load()
	runCfg := ingestConfig(cfg)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := infra.NewPostgresDB(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer dbPool.Close()

	components, err := di.NewApplicationComponents(cfg, dbPool, logger)
	if err != nil {
		return fmt.Errorf("wire components: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	loader := objstore.NewS3Loader(s3.NewFromConfig(awsCfg), cfg.SourceBucket, logger)

	logger.Info("starting ingest",
		slog.String("bucket", cfg.SourceBucket),
		slog.String("prefix", runCfg.Prefix),
		slog.String("collection", runCfg.Collection),
		slog.String("cursor_file", runCfg.CursorFile),
		slog.Int("save_every", runCfg.SaveEvery))

	runner, err := ingest.NewRunner(loader, components.IndexUsecase, runCfg, logger)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}
	defer runner.Close()

	// Setup signal handler for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := runner.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("ingest interrupted, cursor saved for resume")
			return nil
		}
		return fmt.Errorf("run ingest: %w", err)
	}

	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	path := cfg.CursorPath
	if cursorFile != "" {
		path = cursorFile
	}

	cursor, err := ingest.NewCursorManager(path).Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	if cursor.IsEmpty() {
		fmt.Println("No cursor found. Ingest will start from the beginning.")
		return nil
	}

	fmt.Printf("Cursor Status:\n")
	fmt.Printf("  Version:         %d\n", cursor.Version)
	fmt.Printf("  Collection:      %s\n", cursor.Collection)
	fmt.Printf("  Last Key:        %s\n", cursor.LastKey)
	fmt.Printf("  Processed Count: %d\n", cursor.ProcessedCount)
	fmt.Printf("  Passage Count:   %d\n", cursor.PassageCount)
	fmt.Printf("  Updated At:      %s\n", cursor.UpdatedAt.Format(time.RFC3339))

	return nil
}

func resetCursor(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := config.Load()
	path := cfg.CursorPath
	if cursorFile != "" {
		path = cursorFile
	}

	if err := ingest.NewCursorManager(path).Reset(); err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}

	logger.Info("cursor reset successfully")
	return nil
}

func resetCollection(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := config.Load()

	target := cfg.Collection
	if collection != "" {
		target = collection
	}

	ctx := context.Background()
	dbPool, err := infra.NewPostgresDB(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer dbPool.Close()

	components, err := di.NewApplicationComponents(cfg, dbPool, logger)
	if err != nil {
		return fmt.Errorf("wire components: %w", err)
	}

	deleted, err := components.IndexUsecase.ResetCollection(ctx, target)
	if err != nil {
		return fmt.Errorf("reset collection: %w", err)
	}

	path := cfg.CursorPath
	if cursorFile != "" {
		path = cursorFile
	}
	if err := ingest.NewCursorManager(path).Reset(); err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}

	logger.Info("collection reset",
		slog.String("collection", target),
		slog.Int64("deleted_passages", deleted))
	return nil
}
