package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/finwhiz/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testApp() *cli.App {
	app := newApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	return app
}

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not found", name)
	return nil
}

func intFlag(t *testing.T, cmd *cli.Command, name string) *cli.IntFlag {
	t.Helper()
	for _, flag := range cmd.Flags {
		if f, ok := flag.(*cli.IntFlag); ok && f.Name == name {
			return f
		}
	}
	t.Fatalf("flag %q not found on %s", name, cmd.Name)
	return nil
}

func TestCommands(t *testing.T) {
	app := testApp()
	for _, name := range []string{"ingest", "serve", "query", "sync", "reembed"} {
		findCommand(t, app, name)
	}

	sync := findCommand(t, app, "sync")
	var subs []string
	for _, sub := range sync.Subcommands {
		subs = append(subs, sub.Name)
	}
	assert.ElementsMatch(t, []string{"pull", "push"}, subs)
}

func TestReembedCommandFlags(t *testing.T) {
	cmd := findCommand(t, testApp(), "reembed")

	assert.Equal(t, 100, intFlag(t, cmd, "batch-size").Value)
	assert.Equal(t, 100, intFlag(t, cmd, "report-interval").Value)
	assert.Equal(t, 3, intFlag(t, cmd, "max-retries").Value)
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := findCommand(t, testApp(), "query")
	assert.Equal(t, 5, intFlag(t, cmd, "top-k").Value)
}

func TestReembedCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero batch size", []string{"--batch-size", "0"}, "batch-size must be greater than 0"},
		{"zero report interval", []string{"--report-interval", "0"}, "report-interval must be greater than 0"},
		{"zero max retries", []string{"--max-retries", "0"}, "max-retries must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"finwhiz", "reembed"}, tt.args...)
			err := testApp().Run(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestQueryCommandValidation(t *testing.T) {
	err := testApp().Run([]string{"finwhiz", "query"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query text is required")

	err = testApp().Run([]string{"finwhiz", "query", "--top-k", "0", "what", "is", "apr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top-k")
}

func TestConfigErrorsSurface(t *testing.T) {
	t.Setenv("GCS_BUCKET", "")
	missing := filepath.Join(t.TempDir(), "missing.env")

	err := testApp().Run([]string{"finwhiz", "--env-file", missing, "sync", "pull"})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingBucket)
}

func TestSyncRequiresLocalBackend(t *testing.T) {
	t.Setenv("GCS_BUCKET", "bucket")
	t.Setenv("BUCKET_CREDENTIALS", "creds.json")
	t.Setenv("INDEX_BACKEND", "qdrant")
	missing := filepath.Join(t.TempDir(), "missing.env")

	err := testApp().Run([]string{"finwhiz", "--env-file", missing, "sync", "push"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync requires the local index backend")
}

func TestApplyIngestFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Blob.Bucket = "bucket"
	cfg.Blob.CredentialsPath = "creds.json"

	ingest := findCommand(t, newApp(), "ingest")
	app := &cli.App{
		Name: "finwhiz",
		Commands: []*cli.Command{{
			Name:  "ingest",
			Flags: ingest.Flags,
			Action: func(c *cli.Context) error {
				return applyIngestFlags(c, cfg)
			},
		}},
	}

	err := app.Run([]string{"finwhiz", "ingest", "--prefix", "processed/", "--batch-size", "8", "--retry-delay", "250ms"})
	require.NoError(t, err)
	assert.Equal(t, "processed/", cfg.Source.Prefix)
	assert.Equal(t, 8, cfg.Ingest.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.RetryDelay)
	// unset flags leave the configured values alone
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, "", cfg.Source.Filter)

	err = app.Run([]string{"finwhiz", "ingest", "--chunk-size", "0"})
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	tests := []struct {
		level   string
		enabled slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			app := &cli.App{
				Name:   "finwhiz",
				Flags:  []cli.Flag{&cli.StringFlag{Name: "log-level", Value: "info"}},
				Before: setupLogger,
				Action: func(*cli.Context) error { return nil },
			}
			err := app.Run([]string{"finwhiz", "--log-level", tt.level})
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			assert.True(t, slog.Default().Enabled(context.Background(), tt.enabled))
			assert.False(t, slog.Default().Enabled(context.Background(), tt.enabled-1))
		})
	}
}
