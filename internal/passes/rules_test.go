package passes

import (
	"context"
	"strings"
	"testing"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

func closeTo(got, want float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}

func rulesConfig() config.ClassificationConfig {
	return config.ClassificationConfig{
		MinConfidence: 0.4,
		Rules:         config.DefaultTypeRules(),
		ZoneDeltas:    config.DefaultZoneDeltas(),
	}
}

func classifiedContext(docType string, confidence float64) *pipeline.Context {
	pc := &pipeline.Context{Metadata: make(map[string]any)}
	pc.Metadata[pipeline.MetaDocumentClassification] = Classification{
		Type:       docType,
		Confidence: confidence,
	}
	return pc
}

func TestRulesPassBoosts(t *testing.T) {
	pass := NewRulesPass(rulesConfig(), logger.Nop())
	text := strings.Repeat("x", 1000)

	t.Run("invoice boosts iban", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "IBAN", Start: 500, End: 520, Confidence: 0.6},
			{Type: "EMAIL", Start: 500, End: 520, Confidence: 0.65},
			{Type: "AMOUNT", Start: 700, End: 710, Confidence: 0.5},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocInvoice, 0.7))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(out) != 3 {
			t.Fatalf("Execute() = %d entities, want 3 (mutate only)", len(out))
		}
		if !closeTo(out[0].Confidence, 0.8) {
			t.Errorf("IBAN confidence = %v, want 0.8 (0.6 + 0.2 boost)", out[0].Confidence)
		}
		if delta, _ := out[0].Metadata[entity.MetaDocTypeBoost].(float64); !closeTo(delta, 0.2) {
			t.Errorf("boost metadata = %v, want 0.2", delta)
		}
		if out[1].Confidence != 0.65 {
			t.Errorf("EMAIL confidence = %v, want unchanged 0.65", out[1].Confidence)
		}
		if !closeTo(out[2].Confidence, 0.65) {
			t.Errorf("AMOUNT confidence = %v, want 0.65 (0.5 + 0.15 boost)", out[2].Confidence)
		}
	})

	t.Run("missing required type skips invoice rules", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "IBAN", Start: 500, End: 520, Confidence: 0.6},
			{Type: "PERSON_SALUTATION", Start: 500, End: 520, Confidence: 0.55},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocInvoice, 0.7))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out[0].Confidence != 0.6 {
			t.Errorf("IBAN confidence = %v, want unchanged without an AMOUNT entity", out[0].Confidence)
		}
		if _, boosted := out[0].Metadata[entity.MetaDocTypeBoost]; boosted {
			t.Error("boost metadata set without required entity types")
		}
		if flagged, _ := out[1].Metadata[entity.MetaSuppressed].(bool); flagged {
			t.Error("suppression applied without required entity types")
		}
	})

	t.Run("low classification confidence skips type rules", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "IBAN", Start: 500, End: 520, Confidence: 0.6},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocInvoice, 0.2))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out[0].Confidence != 0.6 {
			t.Errorf("confidence = %v, want unchanged below min classification confidence", out[0].Confidence)
		}
	})

	t.Run("unknown type skips type rules", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "IBAN", Start: 500, End: 520, Confidence: 0.6},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocUnknown, 0.9))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out[0].Confidence != 0.6 {
			t.Errorf("confidence = %v, want unchanged for UNKNOWN", out[0].Confidence)
		}
	})

	t.Run("suppressed types are flagged, not removed", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "PERSON_SALUTATION", Start: 500, End: 520, Confidence: 0.55},
			{Type: "AMOUNT", Start: 700, End: 710, Confidence: 0.5},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocInvoice, 0.7))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("suppressed entity was removed")
		}
		if flagged, _ := out[0].Metadata[entity.MetaSuppressed].(bool); !flagged {
			t.Error("suppressed entity not flagged")
		}
	})

	t.Run("boost is clamped to one", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "IBAN", Start: 500, End: 520, Confidence: 0.95},
			{Type: "AMOUNT", Start: 700, End: 710, Confidence: 0.5},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocInvoice, 0.7))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if out[0].Confidence != 1 {
			t.Errorf("confidence = %v, want clamped to 1", out[0].Confidence)
		}
	})
}

func TestRulesPassZones(t *testing.T) {
	pass := NewRulesPass(rulesConfig(), logger.Nop())
	text := strings.Repeat("x", 1000)

	t.Run("invoice number in header is boosted", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "INVOICE_NUMBER", Start: 50, End: 60, Confidence: 0.5},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocUnknown, 0))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := out[0].Confidence; !closeTo(got, 0.65) {
			t.Errorf("confidence = %v, want 0.65 (header delta 0.15)", got)
		}
		if zone, _ := out[0].Metadata[entity.MetaPositionZone].(string); zone != entity.ZoneHeader {
			t.Errorf("zone = %q, want header", zone)
		}
	})

	t.Run("salutation in footer is penalized", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "PERSON_SALUTATION", Start: 900, End: 920, Confidence: 0.5},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocUnknown, 0))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := out[0].Confidence; !closeTo(got, 0.4) {
			t.Errorf("confidence = %v, want 0.4 (footer delta -0.1)", got)
		}
	})

	t.Run("zone deltas apply regardless of document type", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "SIGNATURE", Start: 950, End: 960, Confidence: 0.5},
		}
		pc := &pipeline.Context{Metadata: make(map[string]any)}
		out, err := pass.Execute(context.Background(), text, entities, pc)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := out[0].Confidence; !closeTo(got, 0.7) {
			t.Errorf("confidence = %v, want 0.7 (footer delta 0.2)", got)
		}
	})

	t.Run("body zone without delta is untouched", func(t *testing.T) {
		entities := []entity.Entity{
			{Type: "EMAIL", Start: 500, End: 520, Confidence: 0.65},
		}
		out, err := pass.Execute(context.Background(), text, entities, classifiedContext(DocUnknown, 0))
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if got := out[0].Confidence; got != 0.65 {
			t.Errorf("confidence = %v, want unchanged", got)
		}
		if zone, _ := out[0].Metadata[entity.MetaPositionZone].(string); zone != entity.ZoneBody {
			t.Errorf("zone = %q, want body", zone)
		}
	})
}
