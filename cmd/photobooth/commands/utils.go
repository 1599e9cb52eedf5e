package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zahlii/photobooth/internal/config"
	"github.com/Zahlii/photobooth/pkg/command"
	"github.com/Zahlii/photobooth/pkg/db"
	"github.com/Zahlii/photobooth/pkg/errors"
	"github.com/Zahlii/photobooth/pkg/printer"
	"github.com/Zahlii/photobooth/pkg/security"
	"github.com/Zahlii/photobooth/pkg/storage"
	"github.com/superfly/fsm"
)

const fsmShutdownTimeout = 10 * time.Second

// setupLogging installs the default text logger writing to w.
func setupLogging(w io.Writer, level string) error {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info", "":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})))
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config invalid")
	}
	return cfg, nil
}

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(sqlitePath, fsmDBPath string, dirs ...string) error {
	// Create database directory
	if sqlitePath != "" {
		if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
			return errors.Wrap(err, "failed to create database directory")
		}
	}

	// Create FSM database directory (only needed when printing)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	return nil
}

func openRepository(cfg *config.Config) (*db.Repository, error) {
	if err := ensureDirectories(cfg.SQLitePath, ""); err != nil {
		return nil, err
	}
	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return nil, errors.Wrap(err, "db init failed")
	}
	return repo, nil
}

// newArchive returns the S3 archive of printed images, or nil when no bucket is configured.
func newArchive(ctx context.Context, cfg *config.Config) (*storage.Client, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}
	opts := []storage.Option{storage.WithPrefix(cfg.S3Prefix)}
	if cfg.S3Endpoint != "" {
		opts = append(opts, storage.WithEndpoint(cfg.S3Endpoint))
	}
	client, err := storage.NewClient(ctx, cfg.S3Bucket, cfg.S3Region, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "S3 client failed")
	}
	return client, nil
}

// startPipeline registers the print job FSM. The returned func shuts the manager down.
func startPipeline(ctx context.Context, cfg *config.Config, repo *db.Repository, images *security.Validator) (*printer.Pipeline, func(), error) {
	if err := ensureDirectories("", cfg.FSMDBPath, cfg.WorkDir); err != nil {
		return nil, nil, err
	}

	var archive printer.Archiver
	client, err := newArchive(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		archive = client
	}

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return nil, nil, errors.Wrap(err, "FSM manager failed")
	}
	shutdown := func() { manager.Shutdown(fsmShutdownTimeout) }

	pipeline := printer.NewPipeline(repo, printer.NewCUPS(command.Exec{}), images, archive, printer.Config{
		WorkDir:        cfg.WorkDir,
		Border:         cfg.PrintBorder,
		DefaultPrinter: cfg.DefaultPrinter,
		MaxRetries:     cfg.PrintMaxRetries,
	})
	if err := pipeline.Register(ctx, manager); err != nil {
		shutdown()
		return nil, nil, errors.Wrap(err, "FSM register failed")
	}
	return pipeline, shutdown, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
