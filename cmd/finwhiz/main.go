// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/finwhiz"
	"github.com/poiesic/finwhiz/config"
	"github.com/poiesic/finwhiz/indexsync"
	"github.com/poiesic/finwhiz/reembed"
	"github.com/poiesic/finwhiz/retrieval"
	"github.com/poiesic/finwhiz/server"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "finwhiz",
		Usage: "Financial document ingestion and retrieval",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Dotenv files to load before reading the environment",
				Value: cli.NewStringSlice(".env"),
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Embed source records from the bucket into the index and back it up",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Only ingest objects under this prefix (overrides SOURCE_PREFIX)",
					},
					&cli.StringFlag{
						Name:  "filter",
						Usage: "Only ingest objects whose name contains this string (overrides SOURCE_FILTER)",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Chunks per embedding request (overrides BATCH_SIZE)",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum characters per chunk (overrides CHUNK_SIZE)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch (overrides INGEST_MAX_ATTEMPTS)",
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff (overrides INGEST_RETRY_DELAY)",
					},
					&cli.BoolFlag{
						Name:  "no-persist",
						Usage: "Skip uploading the local index afterwards",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve /retrieve and /query over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides LISTEN_ADDR)",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Retrieve context for a query, optionally answering it",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of chunks to retrieve",
						Value:   retrieval.DefaultTopK,
					},
					&cli.BoolFlag{
						Name:  "answer",
						Usage: "Generate an answer from the retrieved context",
					},
					&cli.BoolFlag{
						Name:  "hits",
						Usage: "Print ranked hits with scores instead of the joined context",
					},
				},
			},
			{
				Name:  "sync",
				Usage: "Copy the local index to or from the bucket",
				Subcommands: []*cli.Command{
					{
						Name:   "pull",
						Usage:  "Download the index backup when the local index is missing",
						Action: syncPullCommand,
					},
					{
						Name:   "push",
						Usage:  "Upload the local index to the backup prefix",
						Action: syncPushCommand,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every stored chunk with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entries to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N entries",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.BoolFlag{
						Name:  "no-persist",
						Usage: "Skip uploading the local index afterwards",
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"), c.StringSlice("env-file")...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// applyIngestFlags overrides configured ingestion settings with flags the
// user set explicitly.
func applyIngestFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("prefix") {
		cfg.Source.Prefix = c.String("prefix")
	}
	if c.IsSet("filter") {
		cfg.Source.Filter = c.String("filter")
	}
	if c.IsSet("batch-size") {
		cfg.Ingest.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("chunk-size") {
		cfg.Ingest.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("max-retries") {
		cfg.Ingest.MaxAttempts = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.Ingest.RetryDelay = c.Duration("retry-delay")
	}
	return cfg.Validate()
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// persist uploads the local index unless disabled or not applicable.
func persist(ctx context.Context, c *cli.Context, engine *finwhiz.Engine) error {
	if c.Bool("no-persist") {
		return nil
	}
	stats, err := engine.Persist(ctx)
	if errors.Is(err, finwhiz.ErrNotLocal) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Uploaded %d files (%d bytes)\n", stats.Files, stats.Bytes)
	return nil
}

func ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyIngestFlags(c, cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	engine, err := finwhiz.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(c.App.ErrWriter, "Bucket: %s\n", cfg.Blob.Bucket)
	fmt.Fprintf(c.App.ErrWriter, "Source prefix: %q filter: %q\n", cfg.Source.Prefix, cfg.Source.Filter)
	fmt.Fprintf(c.App.ErrWriter, "Collection: %s\n", cfg.Index.Collection)
	fmt.Fprintln(c.App.ErrWriter)

	stats, err := engine.Ingest(ctx, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Ingested %d records (%d without text) from %d objects into %d chunks\n",
		stats.Records, stats.SkippedRecords, stats.Objects, stats.Chunks)

	return persist(ctx, c, engine)
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	engine, err := finwhiz.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	retriever, err := engine.Retriever()
	if err != nil {
		return err
	}
	answerer, err := engine.Answerer(ctx, retriever)
	if err != nil {
		return err
	}

	srv, err := server.New(retriever, answerer, server.WithAddr(cfg.Server.Addr))
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func queryCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query text is required")
	}
	if c.Int("top-k") < 1 {
		return fmt.Errorf("top-k must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	engine, err := finwhiz.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	retriever, err := engine.Retriever()
	if err != nil {
		return err
	}

	switch {
	case c.Bool("hits"):
		results, err := retriever.Search(ctx, query, c.Int("top-k"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
		for i, hit := range results {
			fmt.Fprintf(c.App.Writer, "%d: %s [%0.3f] %s\n", i, hit.Entry.ID, hit.Score, hit.Entry.Metadata.Title)
		}
		return nil

	case c.Bool("answer"):
		answerer, err := engine.Answerer(ctx, retriever)
		if err != nil {
			return err
		}
		answer, err := answerer.Answer(ctx, query, c.Int("top-k"))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, answer)
		return nil

	default:
		retrieved, err := retriever.Retrieve(ctx, query, c.Int("top-k"))
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, retrieved)
		return nil
	}
}

func syncManager(ctx context.Context, c *cli.Context) (*indexsync.Manager, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Index.Backend != config.IndexLocal {
		return nil, nil, fmt.Errorf("sync requires the %s index backend, not %s", config.IndexLocal, cfg.Index.Backend)
	}
	store, err := finwhiz.OpenStore(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	manager, err := finwhiz.NewSyncManager(store, cfg, slog.Default())
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return manager, func() { store.Close() }, nil
}

func syncPullCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	manager, closeStore, err := syncManager(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := manager.EnsureLocal(ctx)
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	if stats.Skipped {
		fmt.Fprintln(c.App.Writer, "Local index present, nothing downloaded")
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Downloaded %d files (%d bytes)\n", stats.Files, stats.Bytes)
	return nil
}

func syncPushCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	manager, closeStore, err := syncManager(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := manager.PersistRemote(ctx)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Uploaded %d files (%d bytes)\n", stats.Files, stats.Bytes)
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	engine, err := finwhiz.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	reembedder, err := engine.Reembedder(ctx, reembedConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Index: %s\n", cfg.Index.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}

	return persist(ctx, c, engine)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
