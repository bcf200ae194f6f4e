package passes

import (
	"context"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

// Zone boundaries as a fraction of document length.
const (
	headerRatio = 0.2
	footerRatio = 0.8
)

// RulesPass applies document-type confidence adjustments and position-zone
// deltas to detected entities. It reads the classification written by
// ClassifyPass and therefore runs late in the pipeline.
type RulesPass struct {
	base
	cfg    config.ClassificationConfig
	logger *logger.Logger
}

// NewRulesPass builds the rule engine pass.
func NewRulesPass(cfg config.ClassificationConfig, log *logger.Logger) *RulesPass {
	return &RulesPass{
		base:   base{name: "document-rules", order: OrderRules, enabled: true},
		cfg:    cfg,
		logger: log,
	}
}

// Execute implements pipeline.Pass. Contract: reads
// MetaDocumentClassification; mutates entity confidence and metadata only,
// never adds or removes entities.
func (p *RulesPass) Execute(ctx context.Context, text string, entities []entity.Entity, pc *pipeline.Context) ([]entity.Entity, error) {
	cls, _ := pc.Metadata[pipeline.MetaDocumentClassification].(Classification)

	var rules config.TypeRules
	applyTypeRules := false
	if cls.Type != "" && cls.Type != DocUnknown && cls.Confidence >= p.cfg.MinConfidence {
		if r, ok := p.cfg.Rules[cls.Type]; ok {
			rules = r
			applyTypeRules = true
		}
	}
	if applyTypeRules && !hasRequiredTypes(rules.RequiredTypes, entities) {
		// A claimed document type without its anchor entities is not
		// trusted; zone deltas still apply.
		applyTypeRules = false
		p.logger.Debug("Document-type rules skipped, required entity types absent",
			zap.String("document_id", pc.DocumentID),
			zap.String("type", cls.Type),
			zap.Strings("required", rules.RequiredTypes),
		)
	}

	boosted := 0
	for i := range entities {
		e := &entities[i]

		if applyTypeRules {
			if delta, ok := boostFor(rules, e.Type); ok {
				e.Confidence = clamp01(e.Confidence + delta)
				e.SetMeta(entity.MetaDocTypeBoost, delta)
				boosted++
			}
			if contains(rules.SuppressedTypes, e.Type) {
				// Flagged, not boosted; the selection layer may drop it.
				e.SetMeta(entity.MetaSuppressed, true)
			}
		}

		zone := zoneOf(e.Start, len(text))
		e.SetMeta(entity.MetaPositionZone, zone)
		if deltas, ok := p.cfg.ZoneDeltas[e.Type]; ok {
			if delta, ok := deltas[zone]; ok {
				e.Confidence = clamp01(e.Confidence + delta)
			}
		}
	}

	if applyTypeRules {
		p.logger.Debug("Document-type rules applied",
			zap.String("document_id", pc.DocumentID),
			zap.String("type", cls.Type),
			zap.Int("boosted", boosted),
		)
	}
	return entities, nil
}

// boostFor returns the configured confidence delta for a boosted type.
// Types listed in BoostedTypes without an explicit delta get a small default.
func boostFor(rules config.TypeRules, entityType string) (float64, bool) {
	if delta, ok := rules.ConfidenceBoosts[entityType]; ok {
		return delta, true
	}
	if contains(rules.BoostedTypes, entityType) {
		return 0.1, true
	}
	return 0, false
}

// hasRequiredTypes reports whether at least one entity carries one of the
// required types. An empty requirement always holds.
func hasRequiredTypes(required []string, entities []entity.Entity) bool {
	if len(required) == 0 {
		return true
	}
	for i := range entities {
		if contains(required, entities[i].Type) {
			return true
		}
	}
	return false
}

// zoneOf maps a start offset to header, body, or footer.
func zoneOf(start, textLen int) string {
	if textLen <= 0 {
		return entity.ZoneBody
	}
	ratio := float64(start) / float64(textLen)
	switch {
	case ratio < headerRatio:
		return entity.ZoneHeader
	case ratio > footerRatio:
		return entity.ZoneFooter
	default:
		return entity.ZoneBody
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
