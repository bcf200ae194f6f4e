// Package engine wires the recognizer registry, the detection pipeline, the
// optional ML worker, and the anonymization layer into one component that
// cmd and server embed.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/anonymizer"
	"github.com/docveil/docveil/internal/cache"
	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/ml"
	"github.com/docveil/docveil/internal/passes"
	"github.com/docveil/docveil/internal/pipeline"
	"github.com/docveil/docveil/internal/recognizer"
	"github.com/docveil/docveil/internal/registry"
)

// Engine is the full detection-and-anonymization stack for one process.
// It is safe for concurrent Detect calls across documents.
type Engine struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *registry.Registry
	pipeline *pipeline.Pipeline
	worker   *ml.Worker
	cache    *cache.DetectionCache
}

// New builds the engine: built-in recognizers plus declarative definitions,
// the standard pass sequence, and the optional ML worker and result cache.
// Registration failures are configuration errors and fatal.
func New(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	reg := registry.New(cfg.Engine, log.WithComponent("registry"))
	if err := reg.RegisterConfigs(recognizer.Builtins()); err != nil {
		return nil, fmt.Errorf("register built-in recognizers: %w", err)
	}
	for _, path := range cfg.Engine.DefinitionPaths {
		defs, err := recognizer.LoadDefinitions(path)
		if err != nil {
			return nil, fmt.Errorf("load recognizer definitions from %s: %w", path, err)
		}
		if err := reg.RegisterConfigs(defs); err != nil {
			return nil, fmt.Errorf("register recognizer definitions from %s: %w", path, err)
		}
		log.Info("Recognizer definitions loaded",
			zap.String("path", path),
			zap.Int("recognizers", len(defs)),
		)
	}

	worker := ml.NewWorker(cfg.ML, log.WithComponent("ml"))

	var inference ml.Inference
	if cfg.ML.Enabled {
		inference = worker
	}

	pipe := pipeline.New(log.WithComponent("pipeline"))
	pipe.Register(passes.NewClassifyPass(cfg.Classification, log.WithComponent("classify")))
	pipe.Register(passes.NewHighRecallPass(reg, inference, cfg.Detection, cfg.Engine, log.WithComponent("high-recall")))
	pipe.Register(passes.NewFrontmatterPass(log.WithComponent("frontmatter")))
	pipe.Register(passes.NewAddressPass(cfg.Detection.Address, log.WithComponent("address")))
	pipe.Register(passes.NewRulesPass(cfg.Classification, log.WithComponent("rules")))

	e := &Engine{
		cfg:      cfg,
		logger:   log.WithComponent("engine"),
		registry: reg,
		pipeline: pipe,
		worker:   worker,
	}

	if cfg.Cache.Enabled {
		dc, err := cache.New(cfg.Cache, log.WithComponent("cache"))
		if err != nil {
			// Cache is an optimization; a missing Redis never blocks startup.
			log.Warn("Detection cache unavailable, continuing without it", zap.Error(err))
		} else {
			e.cache = dc
		}
	}

	log.Info("Detection engine ready",
		zap.Int("recognizers", reg.Len()),
		zap.Bool("ml_enabled", cfg.ML.Enabled),
		zap.Bool("cache_enabled", e.cache != nil),
	)
	return e, nil
}

// Warm initializes the ML backend. Cancellation leaves the engine in
// rule-only fallback mode.
func (e *Engine) Warm(ctx context.Context) {
	e.worker.Warm(ctx)
}

// Registry exposes the recognizer registry, e.g. for listings.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Detect runs the full pass sequence over one document. Each call gets a
// fresh pipeline context; independent documents may run in parallel.
func (e *Engine) Detect(ctx context.Context, text, documentID, language string) *pipeline.Result {
	if documentID == "" {
		documentID = entity.NewID()
	}

	var key string
	if e.cache != nil {
		key = e.cache.Key(text, e.configRevision())
		if cached := e.cache.Get(ctx, key); cached != nil {
			e.logger.Debug("Detection served from cache", zap.String("document_id", documentID))
			return cached
		}
	}

	result := e.pipeline.Process(ctx, text, documentID, language)

	if e.cache != nil {
		e.cache.Set(ctx, key, result)
	}
	return result
}

// Anonymize rewrites content with a fresh per-document token session and
// returns the redacted text plus the mapping artifact.
func (e *Engine) Anonymize(filename, content string, entities []entity.Entity) (string, *anonymizer.Mapping) {
	session := anonymizer.NewSession(e.cfg.Anonymizer.TypeAliases)
	anon := anonymizer.New(session, e.logger)
	redacted, assignments := anon.Apply(content, entities)
	mapping := anon.GenerateMapping(filename, assignments, entities)
	return redacted, mapping
}

// configRevision marks cache entries so recognizer set changes invalidate
// them.
func (e *Engine) configRevision() string {
	return fmt.Sprintf("v1:%d:%s:%s", e.registry.Len(), e.cfg.Engine.DefaultCountry, e.cfg.Engine.DefaultLanguage)
}

// Close shuts down the ML worker and the cache connection.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.worker.Close(); err != nil {
		firstErr = err
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
