package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/soundprediction/notegraph"
	"github.com/soundprediction/notegraph/pkg/alert"
	"github.com/soundprediction/notegraph/pkg/cache"
	"github.com/soundprediction/notegraph/pkg/config"
	"github.com/soundprediction/notegraph/pkg/evolution"
	"github.com/soundprediction/notegraph/pkg/extract"
	"github.com/soundprediction/notegraph/pkg/logger"
	"github.com/soundprediction/notegraph/pkg/nlp"
	"github.com/soundprediction/notegraph/pkg/notes"
	"github.com/soundprediction/notegraph/pkg/store"
	"github.com/soundprediction/notegraph/pkg/telemetry"
)

// app holds everything a command needs. close releases it in reverse order
// of construction.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *notegraph.Client
	notes   *notes.Service
	closers []func() error
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bootstrap builds the application from cfg. withNotes opens the notes
// database when one is configured.
func bootstrap(ctx context.Context, cfg *config.Config, withNotes bool) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	var db *sql.DB
	if cfg.Postgres.DSN != "" && (withNotes || cfg.Telemetry.SQL) {
		db, err = notes.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.onClose(db.Close)
	}

	if err := a.initLogger(ctx, db); err != nil {
		return nil, err
	}

	graphStore, err := a.initStore(ctx)
	if err != nil {
		return nil, err
	}

	extractor, err := a.initExtractor()
	if err != nil {
		return nil, err
	}

	ev := cfg.Graph.Evolution
	a.client, err = notegraph.NewClient(graphStore, extractor, &notegraph.Options{
		MatchThreshold: cfg.Graph.MatchThreshold,
		Policy: evolution.Policy{
			PromoteLevel: ev.PromoteLevel,
			MinTotal:     ev.MinTotal,
			MinOutgoing:  ev.MinOutgoing,
		},
		Concurrency:     ev.Concurrency,
		NeighborLimit:   cfg.Graph.NeighborLimit,
		InjectionFilter: cfg.Extraction.InjectionFilter,
		Logger:          a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notegraph client: %w", err)
	}
	a.onClose(func() error { return a.client.Close(context.Background()) })

	if withNotes && db != nil {
		repo, err := notes.NewPostgresRepository(ctx, db)
		if err != nil {
			return nil, err
		}
		a.notes = notes.NewService(repo, a.client, a.logger)
	}
	return a, nil
}

// initLogger layers the telemetry handlers over the configured base handler.
func (a *app) initLogger(ctx context.Context, db *sql.DB) error {
	level, err := logger.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return err
	}
	handler, err := logger.NewHandler(os.Stderr, logger.Format(a.cfg.Log.Format), level)
	if err != nil {
		return err
	}

	if path := a.cfg.Telemetry.ParquetPath; path != "" {
		ph, err := telemetry.NewParquetHandler(handler, filepath.Join(path, "errors"), telemetry.DefaultBatchSize)
		if err != nil {
			return err
		}
		a.onClose(ph.Close)
		handler = ph
	}
	if a.cfg.Telemetry.SQL && db != nil {
		sh, err := telemetry.NewSQLHandler(ctx, handler, db, telemetry.DefaultTable)
		if err != nil {
			return err
		}
		handler = sh
	}

	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) initStore(ctx context.Context) (store.GraphStore, error) {
	db := a.cfg.Database
	switch db.Driver {
	case "memory":
		a.logger.Info("Using in-memory graph store")
		return store.NewMemoryStore(), nil
	case "neo4j":
		neoCfg := store.DefaultNeo4jConfig()
		neoCfg.URI = db.URI
		neoCfg.Username = db.Username
		neoCfg.Password = db.Password
		if db.Database != "" {
			neoCfg.Database = db.Database
		}
		s, err := store.NewNeo4jStore(ctx, neoCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		if err := s.CreateIndices(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.Driver)
	}
}

// initExtractor returns the keyword extractor, fronted by the language model
// when one is configured.
func (a *app) initExtractor() (extract.Extractor, error) {
	keywords := extract.NewKeywordExtractor(a.cfg.Extraction.MaxKeywords, a.cfg.Extraction.DefaultTag)

	model := a.cfg.NLP.Models["default"]
	client, err := nlp.NewClientFromConfig(nlp.Options{
		Model:          model,
		CircuitBreaker: a.cfg.CircuitBreaker,
		Alerter:        alert.New(a.cfg.Alert, a.logger),
		UsageDir:       a.cfg.Telemetry.ParquetPath,
		Logger:         a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create NLP client: %w", err)
	}
	if client == nil {
		a.logger.Info("No language model configured, using keyword extraction")
		return keywords, nil
	}

	var opts []extract.LLMOption
	if a.cfg.Cache.Enabled && a.cfg.Cache.Path != "" {
		c, err := cache.NewBadgerCache(a.cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		a.onClose(c.Close)
		opts = append(opts, extract.WithCache(c, a.cfg.Extraction.CacheTTL))
	}

	a.logger.Info("Using language model extraction",
		"provider", model.Provider,
		"model", model.Model)
	llm := extract.NewLLMExtractor(client, model.Model, a.logger, opts...)
	return extract.NewFallbackExtractor(llm, keywords, a.logger), nil
}

// loadApp loads the configuration and bootstraps the application.
func loadApp(ctx context.Context, withNotes bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return bootstrap(ctx, cfg, withNotes)
}
