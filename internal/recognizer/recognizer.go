// Package recognizer implements pattern-driven PII detectors. A recognizer
// bundles compiled regex patterns with a confidence score per pattern, an
// optional checksum validator, language/country applicability, and deny-list
// exceptions.
package recognizer

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/docveil/docveil/internal/entity"
)

// DefaultPriority is assigned when a recognizer config leaves priority unset.
const DefaultPriority = 50

// Context-word proximity. A supporting word within contextWindow bytes of a
// match raises its confidence by contextBoost, capped below certainty.
const (
	contextWindow  = 50
	contextBoost   = 0.1
	maxContextConf = 0.99
)

// ValidatorFunc checks a raw match, typically a checksum (Luhn, mod-97).
type ValidatorFunc func(text string) bool

// DenyFunc reports whether a match text is globally denied.
type DenyFunc func(text string) bool

// Config describes one recognizer.
type Config struct {
	Name               string
	SupportedLanguages []string
	SupportedCountries []string
	Patterns           []entity.PatternDefinition
	Priority           int
	Specificity        entity.Specificity
	ContextWords       []string
	DenyPatterns       []string
	Validator          ValidatorFunc
	UseGlobalContext   bool
	UseGlobalDenyList  bool
}

// Recognizer runs its configured patterns over text. Analyze is a pure
// function of text and configuration; compiled regexes are cached after
// first use.
type Recognizer struct {
	cfg Config

	denyOnce sync.Once
	denyRes  []*regexp.Regexp

	// globalDeny is installed by the registry when UseGlobalDenyList is set.
	globalDeny DenyFunc

	// globalContext is installed by the registry when UseGlobalContext is
	// set; the words extend cfg.ContextWords.
	globalContext []string
}

// New validates the config and builds a recognizer.
func New(cfg Config) (*Recognizer, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("recognizer name is required")
	}
	if len(cfg.Patterns) == 0 {
		return nil, fmt.Errorf("recognizer %q has no patterns", cfg.Name)
	}
	if cfg.Priority == 0 {
		cfg.Priority = DefaultPriority
	}
	if cfg.Specificity == 0 {
		cfg.Specificity = entity.SpecificityGlobal
	}
	return &Recognizer{cfg: cfg}, nil
}

// Name returns the unique recognizer name.
func (r *Recognizer) Name() string { return r.cfg.Name }

// Priority returns the sort priority; higher runs first.
func (r *Recognizer) Priority() int { return r.cfg.Priority }

// Specificity returns the country/region/global tie-break dimension.
func (r *Recognizer) Specificity() entity.Specificity { return r.cfg.Specificity }

// EntityTypes returns the distinct entity types this recognizer can emit.
func (r *Recognizer) EntityTypes() []string {
	seen := make(map[string]struct{})
	var types []string
	for i := range r.cfg.Patterns {
		t := r.cfg.Patterns[i].EntityType
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			types = append(types, t)
		}
	}
	return types
}

// Languages returns the supported language codes; empty means all.
func (r *Recognizer) Languages() []string { return r.cfg.SupportedLanguages }

// Countries returns the supported country codes; empty means all.
func (r *Recognizer) Countries() []string { return r.cfg.SupportedCountries }

// SetGlobalDeny installs the registry's global deny check. Only consulted
// when the config opts in via UseGlobalDenyList.
func (r *Recognizer) SetGlobalDeny(fn DenyFunc) {
	r.globalDeny = fn
}

// SetGlobalContext installs the registry's shared context words. Only
// consulted when the config opts in via UseGlobalContext.
func (r *Recognizer) SetGlobalContext(words []string) {
	r.globalContext = words
}

// SupportsLanguage reports case-insensitive set membership. An empty set
// means all languages are supported.
func (r *Recognizer) SupportsLanguage(lang string) bool {
	if lang == "" || len(r.cfg.SupportedLanguages) == 0 {
		return true
	}
	for _, l := range r.cfg.SupportedLanguages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// SupportsCountry reports case-insensitive set membership. An empty set
// means all countries are supported.
func (r *Recognizer) SupportsCountry(country string) bool {
	if country == "" || len(r.cfg.SupportedCountries) == 0 {
		return true
	}
	for _, c := range r.cfg.SupportedCountries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// Analyze runs every pattern over the text and returns raw rule matches at
// each pattern's base score. Denied and validator-rejected matches are
// dropped.
func (r *Recognizer) Analyze(text, language string) ([]entity.Entity, error) {
	if !r.SupportsLanguage(language) {
		return nil, nil
	}

	var matches []entity.Entity
	for i := range r.cfg.Patterns {
		p := &r.cfg.Patterns[i]
		re, err := p.Compiled()
		if err != nil {
			return nil, fmt.Errorf("recognizer %q pattern %q: %w", r.cfg.Name, p.Name, err)
		}

		for _, loc := range re.FindAllStringIndex(text, -1) {
			matchText := text[loc[0]:loc[1]]
			if r.isDenied(matchText) {
				continue
			}

			var validated *bool
			if r.cfg.Validator != nil {
				ok := r.cfg.Validator(matchText)
				if !ok {
					continue
				}
				validated = &ok
			}

			e := entity.Entity{
				ID:               entity.NewID(),
				Type:             p.EntityType,
				Text:             matchText,
				Start:            loc[0],
				End:              loc[1],
				Confidence:       p.BaseScore,
				Source:           entity.SourceRule,
				Recognizer:       r.cfg.Name,
				PatternName:      p.Name,
				ValidationPassed: validated,
				Selected:         true,
			}
			if p.IsWeakPattern {
				e.SetMeta(entity.MetaWeakPattern, true)
			}
			if r.hasContext(text, loc[0], loc[1]) {
				e.Confidence += contextBoost
				if e.Confidence > maxContextConf {
					e.Confidence = maxContextConf
				}
				e.SetMeta(entity.MetaContextMatch, true)
			}
			matches = append(matches, e)
		}
	}
	return matches, nil
}

// hasContext reports whether a configured context word occurs within
// contextWindow bytes before or after the match span. Words from the global
// context list count only when the config opts in via UseGlobalContext.
func (r *Recognizer) hasContext(text string, start, end int) bool {
	if len(r.cfg.ContextWords) == 0 && !(r.cfg.UseGlobalContext && len(r.globalContext) > 0) {
		return false
	}

	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(text) {
		hi = len(text)
	}
	before := strings.ToLower(text[lo:start])
	after := strings.ToLower(text[end:hi])

	if containsAny(before, after, r.cfg.ContextWords) {
		return true
	}
	return r.cfg.UseGlobalContext && containsAny(before, after, r.globalContext)
}

func containsAny(before, after string, words []string) bool {
	for _, w := range words {
		w = strings.ToLower(w)
		if w == "" {
			continue
		}
		if strings.Contains(before, w) || strings.Contains(after, w) {
			return true
		}
	}
	return false
}

// isDenied checks the recognizer's own deny list (string equality,
// case-insensitive, or regex test) and the global deny list when enabled.
func (r *Recognizer) isDenied(matchText string) bool {
	r.denyOnce.Do(r.compileDeny)

	for _, d := range r.cfg.DenyPatterns {
		if strings.EqualFold(d, matchText) {
			return true
		}
	}
	for _, re := range r.denyRes {
		if re.MatchString(matchText) {
			return true
		}
	}
	if r.cfg.UseGlobalDenyList && r.globalDeny != nil && r.globalDeny(matchText) {
		return true
	}
	return false
}

// compileDeny compiles deny entries that parse as regexes. Entries that do
// not compile are still honored through the equality check.
func (r *Recognizer) compileDeny() {
	for _, d := range r.cfg.DenyPatterns {
		if re, err := regexp.Compile("(?i)" + d); err == nil {
			r.denyRes = append(r.denyRes, re)
		}
	}
}
