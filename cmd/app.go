package cmd

import (
	"context"
	"fmt"

	"github.com/nexobotics/nova/internal/config"
	"github.com/nexobotics/nova/internal/gemini"
	"github.com/nexobotics/nova/internal/ingest"
	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/pipeline"
	"github.com/nexobotics/nova/internal/session"
)

// app bundles the wired components shared by the commands.
type app struct {
	cfg      *config.Config
	client   *gemini.Client
	store    *knowledge.Store
	sessions *session.Store
	pipe     *pipeline.Pipeline
	logger   log.Logger
}

// setup loads config and wires the Gemini client, knowledge store, session
// store, and pipeline.
func setup(ctx context.Context, logger log.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := gemini.New(ctx, cfg, logger.With("component", "gemini"))
	if err != nil {
		return nil, fmt.Errorf("initializing Gemini client: %w", err)
	}

	store, err := knowledge.Open(knowledge.Config{
		PersistDir:    cfg.PersistDir,
		Collection:    cfg.Collection,
		EmbedderModel: cfg.EmbedderModel,
	}, client, logger.With("component", "knowledge"))
	if err != nil {
		return nil, fmt.Errorf("opening knowledge store: %w", err)
	}

	sessions := session.NewStore(
		session.WithMaxTurns(cfg.MaxTurns),
		session.WithMaxSessions(cfg.MaxSessions),
	)

	pipe := pipeline.New(store, client, sessions, logger.With("component", "pipeline"), pipeline.Options{
		TopK:           cfg.RetrievalTopK,
		MaxPromptBytes: cfg.MaxPromptBytes,
	})

	return &app{
		cfg:      cfg,
		client:   client,
		store:    store,
		sessions: sessions,
		pipe:     pipe,
		logger:   logger,
	}, nil
}

// seedIfEmpty loads the baseline corpus when the knowledge base has no
// documents, so a fresh deployment answers sensibly out of the box.
func (a *app) seedIfEmpty(ctx context.Context) error {
	count, err := a.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	if count > 0 {
		return nil
	}

	a.logger.Info("knowledge base empty, loading seed corpus")
	res, err := ingest.Run(ctx, a.store, ingest.SeedSources(), a.logger.With("component", "ingest"))
	if err != nil {
		return fmt.Errorf("seeding knowledge base: %w", err)
	}
	a.logger.Info("seed corpus loaded", "documents", res.Ingested)
	return nil
}
