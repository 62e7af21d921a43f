package cli

import (
	"context"
	"fmt"
	"log/slog"

	"review-reply-automation/internal/client"
	"review-reply-automation/internal/config"
	"review-reply-automation/internal/runner"
	"review-reply-automation/internal/storage"
)

// env is the wired runtime shared by serve and run.
type env struct {
	cfg    *config.Config
	repo   storage.Repository
	runner *runner.Runner
	close  func()
}

// loadConfig loads configuration and installs the configured logger.
// validate=false is used by commands that only need storage or identity settings.
func loadConfig(validate bool) (*config.Config, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	logger, cleanup := setupLogger(cfg)
	slog.SetDefault(logger)
	return cfg, cleanup, nil
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Storage.Timeout)
	defer cancel()
	repo, err := storage.Open(ctx, storage.Options{
		Driver:   cfg.Storage.Driver,
		DSN:      cfg.Storage.DSN,
		MaxConns: cfg.Storage.MaxConns,
		MinConns: cfg.Storage.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return repo, nil
}

// wire builds the full runtime.
func wire(ctx context.Context) (*env, error) {
	cfg, logCleanup, err := loadConfig(true)
	if err != nil {
		return nil, err
	}

	model, err := client.NewLLM(ctx, cfg.LLM)
	if err != nil {
		logCleanup()
		return nil, fmt.Errorf("create llm: %w", err)
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		logCleanup()
		return nil, err
	}

	r, err := runner.New(cfg, repo, model)
	if err != nil {
		repo.Close()
		logCleanup()
		return nil, err
	}

	slog.Info("runtime ready",
		"llm", cfg.LLM.Provider, "model", cfg.LLM.Model,
		"storage", cfg.Storage.Driver, "stores", len(cfg.ActiveStores()))

	return &env{
		cfg:    cfg,
		repo:   repo,
		runner: r,
		close: func() {
			if err := r.Close(); err != nil {
				slog.Warn("close storefront connections failed", "error", err)
			}
			if err := repo.Close(); err != nil {
				slog.Warn("close storage failed", "error", err)
			}
			logCleanup()
		},
	}, nil
}
