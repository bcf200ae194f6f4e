package passes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/ml"
	"github.com/docveil/docveil/internal/pipeline"
	"github.com/docveil/docveil/internal/recognizer"
	"github.com/docveil/docveil/internal/registry"
)

// fakeInference returns canned spans or a canned error.
type fakeInference struct {
	spans []ml.TokenSpan
	err   error
}

func (f *fakeInference) Run(ctx context.Context, text string) ([]ml.TokenSpan, error) {
	return f.spans, f.err
}

func detectionConfig() config.DetectionConfig {
	return config.DetectionConfig{
		MinEntityLength:       3,
		OverlapMergeThreshold: 0.5,
		Fuzzy:                 fuzzyConfig(),
	}
}

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		LowConfidenceMultiplier: 0.4,
		DefaultCountry:          "CH",
		DefaultLanguage:         "de",
	}
}

func highRecallRegistry(t *testing.T, configs ...recognizer.Config) *registry.Registry {
	t.Helper()
	reg := registry.New(engineConfig(), logger.Nop())
	if len(configs) == 0 {
		configs = []recognizer.Config{{
			Name: "email-test",
			Patterns: []entity.PatternDefinition{
				{Name: "email", Regex: `[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`, BaseScore: 0.65, EntityType: "EMAIL"},
			},
		}}
	}
	if err := reg.RegisterConfigs(configs); err != nil {
		t.Fatalf("RegisterConfigs() error = %v", err)
	}
	return reg
}

func TestHighRecallRuleOnly(t *testing.T) {
	pass := NewHighRecallPass(highRecallRegistry(t), nil, detectionConfig(), engineConfig(), logger.Nop())

	pc := &pipeline.Context{Metadata: make(map[string]any)}
	text := "write to max@acme.ch please"

	out, err := pass.Execute(context.Background(), text, nil, pc)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Execute() = %d entities, want 1", len(out))
	}
	if out[0].Type != "EMAIL" || out[0].Source != entity.SourceRule {
		t.Errorf("entity = %+v, want rule EMAIL", out[0])
	}

	used, _ := pc.Metadata[pipeline.MetaRecognizersUsed].([]string)
	if len(used) != 1 || used[0] != "email-test" {
		t.Errorf("recognizers used = %v", used)
	}
}

func TestHighRecallModelUnavailable(t *testing.T) {
	inference := &fakeInference{err: ml.ErrModelUnavailable}
	pass := NewHighRecallPass(highRecallRegistry(t), inference, detectionConfig(), engineConfig(), logger.Nop())

	pc := &pipeline.Context{Metadata: make(map[string]any)}
	out, err := pass.Execute(context.Background(), "write to max@acme.ch", nil, pc)
	if err != nil {
		t.Fatalf("Execute() error = %v (model absence must not fail the pass)", err)
	}
	if len(out) != 1 {
		t.Errorf("Execute() = %d entities, want 1 rule match", len(out))
	}
}

func TestHighRecallInferenceError(t *testing.T) {
	inference := &fakeInference{err: errors.New("session crashed")}
	pass := NewHighRecallPass(highRecallRegistry(t), inference, detectionConfig(), engineConfig(), logger.Nop())

	pc := &pipeline.Context{Metadata: make(map[string]any)}
	out, err := pass.Execute(context.Background(), "write to max@acme.ch", nil, pc)
	if err != nil {
		t.Fatalf("Execute() error = %v (inference failure must degrade, not fail)", err)
	}
	if len(out) != 1 {
		t.Errorf("Execute() = %d entities, want 1 rule match", len(out))
	}
}

func TestHighRecallMLMerge(t *testing.T) {
	text := "Kontakt: Anna Keller, anna@acme.ch"
	annaStart := strings.Index(text, "Anna Keller")

	t.Run("disjoint ml span is added", func(t *testing.T) {
		inference := &fakeInference{spans: []ml.TokenSpan{
			{Word: "Anna Keller", Label: "PER", Score: 0.9, Start: annaStart, End: annaStart + len("Anna Keller")},
		}}
		pass := NewHighRecallPass(highRecallRegistry(t), inference, detectionConfig(), engineConfig(), logger.Nop())

		out, err := pass.Execute(context.Background(), text, nil, &pipeline.Context{Metadata: make(map[string]any)})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		var person *entity.Entity
		for i := range out {
			if out[i].Type == "PERSON" {
				person = &out[i]
			}
		}
		if person == nil {
			t.Fatalf("no PERSON entity in %+v", out)
		}
		if person.Source != entity.SourceML {
			t.Errorf("Source = %q, want ML", person.Source)
		}
		if person.Text != "Anna Keller" {
			t.Errorf("Text = %q, want Anna Keller", person.Text)
		}
	})

	t.Run("overlapping rule and ml spans merge into one", func(t *testing.T) {
		emailStart := strings.Index(text, "anna@acme.ch")
		inference := &fakeInference{spans: []ml.TokenSpan{
			{Word: "anna@acme.ch", Label: "MISC", Score: 0.4, Start: emailStart, End: emailStart + len("anna@acme.ch")},
		}}
		pass := NewHighRecallPass(highRecallRegistry(t), inference, detectionConfig(), engineConfig(), logger.Nop())

		out, err := pass.Execute(context.Background(), text, nil, &pipeline.Context{Metadata: make(map[string]any)})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(out) != 1 {
			t.Fatalf("Execute() = %d entities, want 1 merged: %+v", len(out), out)
		}
		m := out[0]
		if m.Source != entity.SourceBoth {
			t.Errorf("Source = %q, want BOTH", m.Source)
		}
		if m.Type != "EMAIL" {
			t.Errorf("Type = %q, want EMAIL (higher confidence side wins)", m.Type)
		}
		if m.Confidence != 0.65 {
			t.Errorf("Confidence = %v, want 0.65", m.Confidence)
		}
	})

	t.Run("union span refreshes merged text", func(t *testing.T) {
		doc := "Mr. John Doe wrote to us."
		inference := &fakeInference{spans: []ml.TokenSpan{
			{Word: "Mr. John Doe", Label: "PER", Score: 0.9, Start: 0, End: 12},
		}}
		reg := highRecallRegistry(t, recognizer.Config{
			Name: "person-test",
			Patterns: []entity.PatternDefinition{
				{Name: "name", Regex: `John Doe`, BaseScore: 0.6, EntityType: "PERSON"},
			},
		})
		pass := NewHighRecallPass(reg, inference, detectionConfig(), engineConfig(), logger.Nop())

		out, err := pass.Execute(context.Background(), doc, nil, &pipeline.Context{Metadata: make(map[string]any)})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(out) != 1 {
			t.Fatalf("Execute() = %d entities, want 1 merged: %+v", len(out), out)
		}
		m := out[0]
		if m.Start != 0 || m.End != 12 {
			t.Errorf("span = [%d,%d), want union [0,12)", m.Start, m.End)
		}
		if m.Text != doc[m.Start:m.End] {
			t.Errorf("Text = %q, want %q (span round-trip)", m.Text, doc[m.Start:m.End])
		}
		if m.Text != "Mr. John Doe" {
			t.Errorf("Text = %q, want Mr. John Doe", m.Text)
		}
		if m.Source != entity.SourceBoth {
			t.Errorf("Source = %q, want BOTH", m.Source)
		}
	})

	t.Run("short and out-of-range spans are dropped", func(t *testing.T) {
		inference := &fakeInference{spans: []ml.TokenSpan{
			{Word: "a", Label: "PER", Score: 0.9, Start: 0, End: 1},
			{Word: "bad", Label: "PER", Score: 0.9, Start: 50, End: len(text) + 10},
			{Word: "bad", Label: "PER", Score: 0.9, Start: 5, End: 5},
		}}
		pass := NewHighRecallPass(highRecallRegistry(t), inference, detectionConfig(), engineConfig(), logger.Nop())

		out, err := pass.Execute(context.Background(), text, nil, &pipeline.Context{Metadata: make(map[string]any)})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		for _, e := range out {
			if e.Type == "PERSON" {
				t.Errorf("invalid ML span produced entity %+v", e)
			}
		}
	})
}

func TestHighRecallFuzzyRepeats(t *testing.T) {
	text := "Anna Keller signed. Later ANNA-KELLER confirmed."
	annaStart := strings.Index(text, "Anna Keller")
	inference := &fakeInference{spans: []ml.TokenSpan{
		{Word: "Anna Keller", Label: "PER", Score: 0.9, Start: annaStart, End: annaStart + len("Anna Keller")},
	}}
	pass := NewHighRecallPass(highRecallRegistry(t), inference, detectionConfig(), engineConfig(), logger.Nop())

	out, err := pass.Execute(context.Background(), text, nil, &pipeline.Context{Metadata: make(map[string]any)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var repeat *entity.Entity
	for i := range out {
		if out[i].Text == "ANNA-KELLER" {
			repeat = &out[i]
		}
	}
	if repeat == nil {
		t.Fatalf("fuzzy repeat not detected in %+v", out)
	}
	if repeat.Type != "PERSON" {
		t.Errorf("Type = %q, want PERSON", repeat.Type)
	}
	if repeat.Source != entity.SourceHybrid {
		t.Errorf("Source = %q, want HYBRID", repeat.Source)
	}
	if repeat.Confidence >= 0.9 {
		t.Errorf("Confidence = %v, want below the original 0.9", repeat.Confidence)
	}
}

func TestHighRecallEmptyRegistry(t *testing.T) {
	reg := registry.New(engineConfig(), logger.Nop())
	pass := NewHighRecallPass(reg, nil, detectionConfig(), engineConfig(), logger.Nop())

	_, err := pass.Execute(context.Background(), "text", nil, &pipeline.Context{Metadata: make(map[string]any)})
	if !errors.Is(err, registry.ErrEmptyRegistry) {
		t.Errorf("Execute() error = %v, want ErrEmptyRegistry", err)
	}
}
