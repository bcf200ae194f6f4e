package passes

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/ml"
	"github.com/docveil/docveil/internal/pipeline"
	"github.com/docveil/docveil/internal/registry"
)

// mlLabelTypes maps model labels to engine entity types.
var mlLabelTypes = map[string]string{
	"PER":          "PERSON",
	"PERSON":       "PERSON",
	"LOC":          "LOCATION",
	"LOCATION":     "LOCATION",
	"ORG":          "ORGANIZATION",
	"ORGANIZATION": "ORGANIZATION",
	"MISC":         "MISC",
}

// fuzzyRepeatTypes are entity types whose text is re-searched for repeated
// occurrences with formatting drift.
var fuzzyRepeatTypes = map[string]bool{
	"PERSON":       true,
	"ORGANIZATION": true,
	"LOCATION":     true,
}

// HighRecallPass combines rule-based registry matches with ML named-entity
// results. When no model is loaded the pass runs in rule-only fallback mode;
// model absence is never an error.
type HighRecallPass struct {
	base
	registry  *registry.Registry
	inference ml.Inference
	det       config.DetectionConfig
	eng       config.EngineConfig
	fuzzy     *fuzzyMatcher
	logger    *logger.Logger
}

// NewHighRecallPass builds the pass. inference may be nil.
func NewHighRecallPass(reg *registry.Registry, inference ml.Inference, det config.DetectionConfig, eng config.EngineConfig, log *logger.Logger) *HighRecallPass {
	return &HighRecallPass{
		base:      base{name: "high-recall-detection", order: OrderHighRecall, enabled: true},
		registry:  reg,
		inference: inference,
		det:       det,
		eng:       eng,
		fuzzy:     newFuzzyMatcher(det.Fuzzy),
		logger:    log,
	}
}

// Execute implements pipeline.Pass. Contract: writes MetaRecognizersUsed and
// MetaRecognizerErrors; appends rule, ML, and fuzzy-repeat entities.
func (p *HighRecallPass) Execute(ctx context.Context, text string, entities []entity.Entity, pc *pipeline.Context) ([]entity.Entity, error) {
	language := pc.Language
	if language == "" {
		language = p.eng.DefaultLanguage
	}

	res, err := p.registry.Analyze(text, registry.Filter{
		Country:  p.eng.DefaultCountry,
		Language: language,
	})
	if err != nil {
		// Only configuration errors (empty registry) reach here.
		return nil, err
	}
	pc.Metadata[pipeline.MetaRecognizersUsed] = res.RecognizersUsed
	if len(res.RecognizerErrors) > 0 {
		pc.Metadata[pipeline.MetaRecognizerErrors] = res.RecognizerErrors
	}

	for _, m := range res.Matches {
		entities = p.merge(text, entities, m)
	}

	entities = p.addMLEntities(ctx, text, entities)
	entities = p.addFuzzyRepeats(text, entities)
	return entities, nil
}

// addMLEntities queries the inference worker and merges its spans. A missing
// or failing model degrades to rule-only detection silently.
func (p *HighRecallPass) addMLEntities(ctx context.Context, text string, entities []entity.Entity) []entity.Entity {
	if p.inference == nil {
		return entities
	}

	spans, err := p.inference.Run(ctx, text)
	if err != nil {
		if !errors.Is(err, ml.ErrModelUnavailable) {
			p.logger.Warn("ML inference failed, continuing rule-only", zap.Error(err))
		}
		return entities
	}

	added := 0
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			continue
		}
		matchText := text[s.Start:s.End]
		if normalizedLength(matchText) < p.det.MinEntityLength {
			continue
		}
		entityType := mlLabelTypes[strings.ToUpper(s.Label)]
		if entityType == "" {
			entityType = strings.ToUpper(s.Label)
		}
		entities = p.merge(text, entities, entity.Entity{
			ID:         entity.NewID(),
			Type:       entityType,
			Text:       matchText,
			Start:      s.Start,
			End:        s.End,
			Confidence: clamp01(s.Score),
			Source:     entity.SourceML,
			Selected:   true,
		})
		added++
	}
	if added > 0 {
		p.logger.Debug("ML entities merged", zap.Int("spans", added))
	}
	return entities
}

// merge folds a new match into the list. When its span overlaps an existing
// entity beyond the configured threshold, the two become one entity with the
// union span, the higher confidence, and a combined source; otherwise the
// match is appended.
func (p *HighRecallPass) merge(text string, entities []entity.Entity, m entity.Entity) []entity.Entity {
	for i := range entities {
		e := &entities[i]
		if e.OverlapRatio(&m) <= p.det.OverlapMergeThreshold {
			continue
		}

		if m.Start < e.Start {
			e.Start = m.Start
		}
		if m.End > e.End {
			e.End = m.End
		}
		// The union span may be wider than either side; Text must keep
		// round-tripping through text[Start:End].
		e.Text = text[e.Start:e.End]
		if m.Confidence > e.Confidence {
			e.Confidence = m.Confidence
			e.Type = m.Type
		}
		if e.Source != m.Source {
			e.Source = entity.SourceBoth
		}
		if e.Recognizer == "" {
			e.Recognizer = m.Recognizer
			e.PatternName = m.PatternName
		}
		return entities
	}
	return append(entities, m)
}

// addFuzzyRepeats searches the document for further occurrences of
// high-value entity text (names, organizations) that the recognizers and
// model missed, e.g. repeated with different spacing or punctuation.
func (p *HighRecallPass) addFuzzyRepeats(text string, entities []entity.Entity) []entity.Entity {
	seen := make(map[string]bool)
	base := entities

	for i := range base {
		e := &base[i]
		if !fuzzyRepeatTypes[e.Type] {
			continue
		}
		if normalizedLength(e.Text) < p.det.MinEntityLength {
			continue
		}
		key := strings.ToLower(stripPunctuation(e.Text))
		if seen[key] {
			continue
		}
		seen[key] = true

		for _, loc := range p.fuzzy.find(text, e.Text) {
			candidate := entity.Entity{
				ID:         entity.NewID(),
				Type:       e.Type,
				Text:       text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: clamp01(e.Confidence * 0.9),
				Source:     entity.SourceHybrid,
				Selected:   true,
			}
			if covered(entities, &candidate) {
				continue
			}
			entities = append(entities, candidate)
		}
	}
	return entities
}

// covered reports whether the candidate overlaps any existing entity.
func covered(entities []entity.Entity, candidate *entity.Entity) bool {
	for i := range entities {
		if entities[i].Overlap(candidate) > 0 {
			return true
		}
	}
	return false
}
