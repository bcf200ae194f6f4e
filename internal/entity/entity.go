// Package entity defines the core detection types shared by the recognizer
// registry, the pipeline passes, and the anonymization engine.
package entity

import (
	"crypto/rand"
	"regexp"

	"github.com/oklog/ulid/v2"
)

// Source identifies which detection stage produced an entity.
type Source string

// Detection sources.
const (
	SourceRule   Source = "RULE"
	SourceML     Source = "ML"
	SourceHybrid Source = "HYBRID"
	SourceBoth   Source = "BOTH"
	SourceManual Source = "MANUAL"
)

// Specificity orders recognizers from country-specific down to global.
// Higher values win sorting ties.
type Specificity int

// Specificity levels.
const (
	SpecificityGlobal  Specificity = 1
	SpecificityRegion  Specificity = 2
	SpecificityCountry Specificity = 3
)

// String returns the configuration-file name of the specificity level.
func (s Specificity) String() string {
	switch s {
	case SpecificityCountry:
		return "country"
	case SpecificityRegion:
		return "region"
	default:
		return "global"
	}
}

// ParseSpecificity maps a configuration string to a Specificity.
// Unknown values fall back to global.
func ParseSpecificity(s string) Specificity {
	switch s {
	case "country":
		return SpecificityCountry
	case "region":
		return SpecificityRegion
	default:
		return SpecificityGlobal
	}
}

// PatternDefinition is a single regex pattern inside a recognizer.
type PatternDefinition struct {
	Name string `yaml:"name"`
	// Regex is unanchored; the engine compiles it case-insensitive.
	Regex string `yaml:"regex"`
	// BaseScore is the confidence assigned to raw matches, typically
	// 0.3-0.7. PII detection is probabilistic, so never 1.0.
	BaseScore  float64 `yaml:"baseScore"`
	EntityType string  `yaml:"entityType"`
	// IsWeakPattern marks patterns prone to false positives (e.g. bare
	// 4-digit numbers); the registry applies a confidence penalty.
	IsWeakPattern bool `yaml:"isWeakPattern"`

	compiled *regexp.Regexp
}

// Compiled returns the compiled form of the pattern, compiling it on first
// use with case-insensitive semantics.
func (p *PatternDefinition) Compiled() (*regexp.Regexp, error) {
	if p.compiled == nil {
		re, err := regexp.Compile("(?i)" + p.Regex)
		if err != nil {
			return nil, err
		}
		p.compiled = re
	}
	return p.compiled, nil
}

// Metadata keys written by pipeline passes.
const (
	MetaPositionZone     = "positionZone"
	MetaDocTypeBoost     = "documentTypeBoost"
	MetaSuppressed       = "suppressedByDocumentType"
	MetaIsGroupedAddress = "isGroupedAddress"
	MetaComponentCount   = "componentCount"
	MetaWeakPattern      = "isWeakPattern"
	MetaContextMatch     = "contextWordMatch"
)

// Position zones used by the document rule engine.
const (
	ZoneHeader = "header"
	ZoneBody   = "body"
	ZoneFooter = "footer"
)

// Entity is a detected span of text classified as a PII type.
// Start and End are half-open character offsets into the normalized
// document text: 0 <= Start < End <= len(text).
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Text       string         `json:"text"`
	Start      int            `json:"start"`
	End        int            `json:"end"`
	Confidence float64        `json:"confidence"`
	Source     Source         `json:"source"`
	Recognizer string         `json:"recognizer,omitempty"`
	PatternName string        `json:"patternName,omitempty"`
	// ValidationPassed is set only when the recognizer ran a checksum
	// validator over the match.
	ValidationPassed *bool          `json:"validationPassed,omitempty"`
	Selected         bool           `json:"selected"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	// Components holds the original fragments of a grouped address. They
	// are owned by the parent and never redacted independently.
	Components []Entity `json:"components,omitempty"`
}

// NewID mints a ULID for entities and documents.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// Length returns the span length in characters.
func (e *Entity) Length() int {
	return e.End - e.Start
}

// Contains reports whether other lies fully inside e's span.
func (e *Entity) Contains(other *Entity) bool {
	return other.Start >= e.Start && other.End <= e.End
}

// Overlap returns the number of characters shared by the two spans.
func (e *Entity) Overlap(other *Entity) int {
	lo := max(e.Start, other.Start)
	hi := min(e.End, other.End)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// OverlapRatio returns the overlap as a fraction of the shorter span,
// in [0,1]. Two identical spans have ratio 1.
func (e *Entity) OverlapRatio(other *Entity) float64 {
	ov := e.Overlap(other)
	if ov == 0 {
		return 0
	}
	shorter := min(e.Length(), other.Length())
	if shorter <= 0 {
		return 0
	}
	return float64(ov) / float64(shorter)
}

// SetMeta writes a metadata key, allocating the map on first use.
func (e *Entity) SetMeta(key string, value any) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
}
