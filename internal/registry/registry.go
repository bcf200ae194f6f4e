// Package registry holds all recognizers, filters them by country, language,
// and entity type, and runs them over text with per-recognizer failure
// isolation.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/recognizer"
)

// Configuration errors are fatal at startup, never recoverable mid-run.
var (
	ErrDuplicateRecognizer = errors.New("duplicate recognizer name")
	ErrEmptyRegistry       = errors.New("registry queried before any recognizer was registered")
)

// Filter narrows which recognizers participate in an analysis.
type Filter struct {
	Country    string
	Language   string
	EntityType string
}

// Result carries the matches plus diagnostics for one analysis run.
type Result struct {
	Matches          []entity.Entity   `json:"matches"`
	RecognizersUsed  []string          `json:"recognizersUsed"`
	RecognizerErrors map[string]string `json:"recognizerErrors,omitempty"`
	AnalysisTime     time.Duration     `json:"analysisTime"`
}

// Registry is read-mostly after startup registration; reads are safe
// concurrently across documents. Registration should happen at startup only.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[string]*recognizer.Recognizer
	cfg         config.EngineConfig
	logger      *logger.Logger

	lowScoreTypes map[string]struct{}
	globalDeny    map[string]struct{}
}

// New creates an empty registry.
func New(cfg config.EngineConfig, log *logger.Logger) *Registry {
	lowScore := make(map[string]struct{}, len(cfg.LowScoreEntityTypes))
	for _, t := range cfg.LowScoreEntityTypes {
		lowScore[strings.ToUpper(t)] = struct{}{}
	}
	deny := make(map[string]struct{}, len(cfg.GlobalDenyList))
	for _, d := range cfg.GlobalDenyList {
		deny[strings.ToLower(d)] = struct{}{}
	}
	return &Registry{
		recognizers:   make(map[string]*recognizer.Recognizer),
		cfg:           cfg,
		logger:        log,
		lowScoreTypes: lowScore,
		globalDeny:    deny,
	}
}

// Register adds a recognizer. Names must be unique.
func (r *Registry) Register(rec *recognizer.Recognizer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.recognizers[rec.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRecognizer, rec.Name())
	}
	rec.SetGlobalDeny(r.isGloballyDenied)
	rec.SetGlobalContext(r.cfg.GlobalContextWords)
	r.recognizers[rec.Name()] = rec

	r.logger.Debug("Recognizer registered",
		zap.String("recognizer", rec.Name()),
		zap.Int("priority", rec.Priority()),
	)
	return nil
}

// RegisterConfigs builds and registers recognizers from configs, stopping at
// the first failure.
func (r *Registry) RegisterConfigs(configs []recognizer.Config) error {
	for _, cfg := range configs {
		rec, err := recognizer.New(cfg)
		if err != nil {
			return fmt.Errorf("build recognizer: %w", err)
		}
		if err := r.Register(rec); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a recognizer by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recognizers, name)
}

// Len returns the number of registered recognizers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recognizers)
}

// Filtered returns recognizers matching the filter and global allow-lists,
// sorted by priority descending, then specificity descending
// (country > region > global), then name ascending. The ordering is a total
// order, so results are deterministic across runs.
func (r *Registry) Filtered(f Filter) ([]*recognizer.Recognizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.ensureInitialized(); err != nil {
		return nil, err
	}

	var out []*recognizer.Recognizer
	for _, rec := range r.recognizers {
		if !r.allowed(rec) {
			continue
		}
		if !rec.SupportsCountry(f.Country) || !rec.SupportsLanguage(f.Language) {
			continue
		}
		if f.EntityType != "" && !emits(rec, f.EntityType) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() > out[j].Priority()
		}
		if out[i].Specificity() != out[j].Specificity() {
			return out[i].Specificity() > out[j].Specificity()
		}
		return out[i].Name() < out[j].Name()
	})
	return out, nil
}

// Analyze runs every filtered recognizer over the text. A failing recognizer
// is recorded in RecognizerErrors and never stops the loop.
func (r *Registry) Analyze(text string, f Filter) (*Result, error) {
	start := time.Now()

	recs, err := r.Filtered(f)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RecognizerErrors: make(map[string]string),
	}
	for _, rec := range recs {
		matches, recErr := r.analyzeOne(rec, text, f.Language)
		if recErr != nil {
			result.RecognizerErrors[rec.Name()] = recErr.Error()
			r.logger.Warn("Recognizer failed, continuing with remaining recognizers",
				zap.String("recognizer", rec.Name()),
				zap.Error(recErr),
			)
			continue
		}
		result.RecognizersUsed = append(result.RecognizersUsed, rec.Name())
		for i := range matches {
			matches[i].Confidence = r.adjustConfidence(&matches[i])
		}
		result.Matches = append(result.Matches, matches...)
	}

	result.AnalysisTime = time.Since(start)
	r.logger.Debug("Registry analysis complete",
		zap.Int("matches", len(result.Matches)),
		zap.Int("recognizers", len(result.RecognizersUsed)),
		zap.Int("errors", len(result.RecognizerErrors)),
		zap.Duration("duration", result.AnalysisTime),
	)
	return result, nil
}

// analyzeOne isolates a single recognizer call, converting panics to errors.
func (r *Registry) analyzeOne(rec *recognizer.Recognizer, text, language string) (matches []entity.Entity, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recognizer panic: %v", p)
		}
	}()
	return rec.Analyze(text, language)
}

// adjustConfidence applies the low-confidence multiplier to weak patterns
// and configured low-score entity types, clamped to [0,1].
func (r *Registry) adjustConfidence(e *entity.Entity) float64 {
	score := e.Confidence

	weak := false
	if e.Metadata != nil {
		if v, ok := e.Metadata[entity.MetaWeakPattern].(bool); ok && v {
			weak = true
		}
	}
	if _, low := r.lowScoreTypes[strings.ToUpper(e.Type)]; weak || low {
		score *= r.cfg.LowConfidenceMultiplier
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ensureInitialized guards query methods against a missing registration
// phase; an empty registry indicates broken wiring, not an empty result.
func (r *Registry) ensureInitialized() error {
	if len(r.recognizers) == 0 {
		return ErrEmptyRegistry
	}
	return nil
}

// allowed applies the global allow-lists. Empty lists mean no restriction.
func (r *Registry) allowed(rec *recognizer.Recognizer) bool {
	if len(r.cfg.EnabledRecognizers) > 0 && !containsFold(r.cfg.EnabledRecognizers, rec.Name()) {
		return false
	}
	if len(r.cfg.EnabledCountries) > 0 {
		supported := false
		for _, c := range r.cfg.EnabledCountries {
			if rec.SupportsCountry(c) {
				supported = true
				break
			}
		}
		if !supported {
			return false
		}
	}
	if len(r.cfg.EnabledLanguages) > 0 {
		supported := false
		for _, l := range r.cfg.EnabledLanguages {
			if rec.SupportsLanguage(l) {
				supported = true
				break
			}
		}
		if !supported {
			return false
		}
	}
	return true
}

func (r *Registry) isGloballyDenied(text string) bool {
	_, denied := r.globalDeny[strings.ToLower(text)]
	return denied
}

func emits(rec *recognizer.Recognizer, entityType string) bool {
	for _, t := range rec.EntityTypes() {
		if strings.EqualFold(t, entityType) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
