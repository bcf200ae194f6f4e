package recognizer

import (
	"strings"
	"testing"

	"github.com/docveil/docveil/internal/entity"
)

func TestRecognizerAnalyze(t *testing.T) {
	rec, err := New(Config{
		Name: "email-test",
		Patterns: []entity.PatternDefinition{
			{
				Name:       "email",
				Regex:      `[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`,
				BaseScore:  0.65,
				EntityType: "EMAIL",
			},
		},
		DenyPatterns: []string{"noreply@example.com", `.*@example\.(com|org|net)`},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("match carries exact offsets and base score", func(t *testing.T) {
		text := "Contact max.muster@acme.ch today"
		matches, err := rec.Analyze(text, "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("Analyze() returned %d matches, want 1", len(matches))
		}

		m := matches[0]
		if m.Text != "max.muster@acme.ch" {
			t.Errorf("Text = %q, want %q", m.Text, "max.muster@acme.ch")
		}
		if m.Start != 8 || m.End != 26 {
			t.Errorf("span = [%d,%d), want [8,26)", m.Start, m.End)
		}
		if text[m.Start:m.End] != m.Text {
			t.Errorf("span does not round-trip: %q", text[m.Start:m.End])
		}
		if m.Confidence != 0.65 {
			t.Errorf("Confidence = %v, want 0.65", m.Confidence)
		}
		if m.Type != "EMAIL" {
			t.Errorf("Type = %q, want EMAIL", m.Type)
		}
		if m.Source != entity.SourceRule {
			t.Errorf("Source = %q, want %q", m.Source, entity.SourceRule)
		}
		if m.Recognizer != "email-test" {
			t.Errorf("Recognizer = %q, want email-test", m.Recognizer)
		}
		if !m.Selected {
			t.Error("Selected = false, want true")
		}
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		matches, err := rec.Analyze("Mail: Max.Muster@Acme.CH", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("Analyze() returned %d matches, want 1", len(matches))
		}
		if matches[0].Text != "Max.Muster@Acme.CH" {
			t.Errorf("Text = %q, original casing must be preserved", matches[0].Text)
		}
	})

	t.Run("deny list drops exact and regex matches", func(t *testing.T) {
		for _, text := range []string{
			"from noreply@example.com",
			"from NoReply@Example.COM",
			"from info@example.org",
		} {
			matches, err := rec.Analyze(text, "")
			if err != nil {
				t.Fatalf("Analyze(%q) error = %v", text, err)
			}
			if len(matches) != 0 {
				t.Errorf("Analyze(%q) = %d matches, want 0 (denied)", text, len(matches))
			}
		}
	})

	t.Run("no matches returns empty without error", func(t *testing.T) {
		matches, err := rec.Analyze("nothing personal here", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("Analyze() = %d matches, want 0", len(matches))
		}
	})
}

func TestRecognizerValidator(t *testing.T) {
	rec, err := New(Config{
		Name:      "card-test",
		Validator: Luhn,
		Patterns: []entity.PatternDefinition{
			{
				Name:          "card",
				Regex:         `\b(?:\d[ \-]?){13,19}\b`,
				BaseScore:     0.5,
				EntityType:    "CREDIT_CARD",
				IsWeakPattern: true,
			},
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("checksum failure drops the match", func(t *testing.T) {
		matches, err := rec.Analyze("card 4111111111111112 on file", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("invalid checksum produced %d matches, want 0", len(matches))
		}
	})

	t.Run("checksum success records validation and weak flag", func(t *testing.T) {
		matches, err := rec.Analyze("card 4111111111111111 on file", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("Analyze() = %d matches, want 1", len(matches))
		}
		m := matches[0]
		if m.ValidationPassed == nil || !*m.ValidationPassed {
			t.Error("ValidationPassed not recorded for checksum match")
		}
		if weak, _ := m.Metadata[entity.MetaWeakPattern].(bool); !weak {
			t.Error("weak pattern metadata not set")
		}
	})
}

func TestRecognizerLanguageAndCountry(t *testing.T) {
	rec, err := New(Config{
		Name:               "german-only",
		SupportedLanguages: []string{"de"},
		SupportedCountries: []string{"CH"},
		Patterns: []entity.PatternDefinition{
			{Name: "p", Regex: `\bgeheim\b`, BaseScore: 0.5, EntityType: "SECRET"},
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("unsupported language yields no matches", func(t *testing.T) {
		matches, err := rec.Analyze("das ist geheim", "fr")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("Analyze() = %d matches, want 0 for unsupported language", len(matches))
		}
	})

	t.Run("empty language means all", func(t *testing.T) {
		matches, err := rec.Analyze("das ist geheim", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Errorf("Analyze() = %d matches, want 1", len(matches))
		}
	})

	t.Run("support checks are case-insensitive", func(t *testing.T) {
		if !rec.SupportsLanguage("DE") {
			t.Error("SupportsLanguage(DE) = false")
		}
		if !rec.SupportsCountry("ch") {
			t.Error("SupportsCountry(ch) = false")
		}
		if rec.SupportsCountry("DE") {
			t.Error("SupportsCountry(DE) = true, want false")
		}
	})
}

func TestRecognizerContextWords(t *testing.T) {
	cfg := Config{
		Name:         "account-ctx",
		ContextWords: []string{"konto", "account"},
		Patterns: []entity.PatternDefinition{
			{Name: "number", Regex: `\b\d{6}\b`, BaseScore: 0.5, EntityType: "ACCOUNT_NUMBER"},
		},
	}
	rec, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("nearby context word raises confidence", func(t *testing.T) {
		matches, err := rec.Analyze("Konto Nr. 123456 ist aktiv", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("Analyze() = %d matches, want 1", len(matches))
		}
		if matches[0].Confidence != 0.6 {
			t.Errorf("Confidence = %v, want 0.6 (0.5 + context boost)", matches[0].Confidence)
		}
		if hit, _ := matches[0].Metadata[entity.MetaContextMatch].(bool); !hit {
			t.Error("context word match not recorded")
		}
	})

	t.Run("no context word keeps the base score", func(t *testing.T) {
		matches, err := rec.Analyze("Beleg 123456 ohne Bezug", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("Analyze() = %d matches, want 1", len(matches))
		}
		if matches[0].Confidence != 0.5 {
			t.Errorf("Confidence = %v, want base 0.5", matches[0].Confidence)
		}
		if _, ok := matches[0].Metadata[entity.MetaContextMatch]; ok {
			t.Error("context match recorded without a nearby word")
		}
	})

	t.Run("context word outside the window is ignored", func(t *testing.T) {
		text := "Konto " + strings.Repeat("x ", 30) + "123456"
		matches, err := rec.Analyze(text, "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("Analyze() = %d matches, want 1", len(matches))
		}
		if matches[0].Confidence != 0.5 {
			t.Errorf("Confidence = %v, want base 0.5 (word beyond window)", matches[0].Confidence)
		}
	})

	t.Run("boosted confidence stays below one", func(t *testing.T) {
		strong := cfg
		strong.Name = "account-strong"
		strong.Patterns = []entity.PatternDefinition{
			{Name: "number", Regex: `\b\d{6}\b`, BaseScore: 0.95, EntityType: "ACCOUNT_NUMBER"},
		}
		rec, err := New(strong)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		matches, err := rec.Analyze("Konto 123456", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("Analyze() = %d matches, want 1", len(matches))
		}
		if matches[0].Confidence != 0.99 {
			t.Errorf("Confidence = %v, want capped 0.99", matches[0].Confidence)
		}
	})

	t.Run("global words need the opt-in", func(t *testing.T) {
		noOptIn := Config{
			Name: "no-opt-in",
			Patterns: []entity.PatternDefinition{
				{Name: "number", Regex: `\b\d{6}\b`, BaseScore: 0.5, EntityType: "ACCOUNT_NUMBER"},
			},
		}
		rec, err := New(noOptIn)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		rec.SetGlobalContext([]string{"vertrag"})

		matches, err := rec.Analyze("Vertrag 123456", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 || matches[0].Confidence != 0.5 {
			t.Errorf("matches = %+v, want base score without opt-in", matches)
		}
	})
}

func TestRecognizerGlobalDeny(t *testing.T) {
	cfg := Config{
		Name: "deny-test",
		Patterns: []entity.PatternDefinition{
			{Name: "word", Regex: `\b[a-z]{4,}\b`, BaseScore: 0.4, EntityType: "WORD"},
		},
	}

	t.Run("opt-in recognizer honors global deny", func(t *testing.T) {
		optIn := cfg
		optIn.UseGlobalDenyList = true
		rec, err := New(optIn)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		rec.SetGlobalDeny(func(text string) bool { return text == "lorem" })

		matches, err := rec.Analyze("lorem ipsum", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 1 || matches[0].Text != "ipsum" {
			t.Errorf("Analyze() = %+v, want only ipsum", matches)
		}
	})

	t.Run("recognizer without opt-in ignores global deny", func(t *testing.T) {
		rec, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		rec.SetGlobalDeny(func(text string) bool { return true })

		matches, err := rec.Analyze("lorem ipsum", "")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if len(matches) != 2 {
			t.Errorf("Analyze() = %d matches, want 2", len(matches))
		}
	})
}

func TestNewDefaults(t *testing.T) {
	t.Run("missing name is rejected", func(t *testing.T) {
		_, err := New(Config{Patterns: []entity.PatternDefinition{{Regex: "x", BaseScore: 0.5, EntityType: "X"}}})
		if err == nil {
			t.Fatal("New() accepted config without name")
		}
	})

	t.Run("missing patterns are rejected", func(t *testing.T) {
		_, err := New(Config{Name: "empty"})
		if err == nil {
			t.Fatal("New() accepted config without patterns")
		}
	})

	t.Run("priority and specificity default", func(t *testing.T) {
		rec, err := New(Config{
			Name:     "defaults",
			Patterns: []entity.PatternDefinition{{Name: "p", Regex: "x", BaseScore: 0.5, EntityType: "X"}},
		})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if rec.Priority() != DefaultPriority {
			t.Errorf("Priority() = %d, want %d", rec.Priority(), DefaultPriority)
		}
		if rec.Specificity() != entity.SpecificityGlobal {
			t.Errorf("Specificity() = %v, want global", rec.Specificity())
		}
	})
}

func TestBuiltins(t *testing.T) {
	configs := Builtins()
	if len(configs) == 0 {
		t.Fatal("Builtins() returned no configs")
	}

	seen := make(map[string]struct{})
	for _, cfg := range configs {
		if _, dup := seen[cfg.Name]; dup {
			t.Errorf("duplicate builtin name %q", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}

		if _, err := New(cfg); err != nil {
			t.Errorf("builtin %q does not build: %v", cfg.Name, err)
		}
		for _, p := range cfg.Patterns {
			if p.BaseScore <= 0 || p.BaseScore >= 1 {
				t.Errorf("builtin %q pattern %q: base score %v out of (0,1)", cfg.Name, p.Name, p.BaseScore)
			}
		}
	}
}
