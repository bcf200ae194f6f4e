package anonymizer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/docveil/docveil/internal/entity"
)

// ComponentBreakdown details the parts of a grouped address. Fields stay
// nil when the grouping never matched that component.
type ComponentBreakdown struct {
	Street     *string `json:"street"`
	Number     *string `json:"number"`
	PostalCode *string `json:"postalCode"`
	City       *string `json:"city"`
}

// Entry is one anonymized instance in the mapping artifact.
type Entry struct {
	Original   string              `json:"original"`
	Token      string              `json:"token"`
	Type       string              `json:"type"`
	Confidence float64             `json:"confidence"`
	Source     entity.Source       `json:"source"`
	Components *ComponentBreakdown `json:"components,omitempty"`
}

// Mapping is the reversible record of one anonymization run.
type Mapping struct {
	Filename      string         `json:"filename"`
	GeneratedAt   time.Time      `json:"generatedAt"`
	Entries       []Entry        `json:"entries"`
	CountsByType  map[string]int `json:"countsByType"`
	TotalSelected int            `json:"totalSelected"`
	TotalDetected int            `json:"totalDetected"`
}

// GenerateMapping builds the mapping artifact from the substitutions of one
// run. Components of grouped addresses get no rows of their own; the
// grouped entity's row supersedes them and carries the breakdown.
func (a *Engine) GenerateMapping(filename string, assignments []Assignment, allEntities []entity.Entity) *Mapping {
	m := &Mapping{
		Filename:      filename,
		GeneratedAt:   time.Now(),
		CountsByType:  make(map[string]int),
		TotalSelected: len(assignments),
		TotalDetected: len(allEntities),
	}

	for _, as := range assignments {
		e := as.Entity
		entry := Entry{
			Original:   e.Text,
			Token:      as.Token,
			Type:       a.session.NormalizeType(e.Type),
			Confidence: e.Confidence,
			Source:     e.Source,
		}
		if len(e.Components) > 0 {
			entry.Components = breakdown(e.Components)
		}
		m.Entries = append(m.Entries, entry)
		m.CountsByType[entry.Type]++
	}
	return m
}

// breakdown maps component entities onto the street/number/postal/city
// fields.
func breakdown(components []entity.Entity) *ComponentBreakdown {
	b := &ComponentBreakdown{}
	for i := range components {
		c := &components[i]
		text := c.Text
		switch c.Type {
		case "STREET":
			if b.Street == nil {
				b.Street = &text
			}
		case "BUILDING_NUMBER":
			if b.Number == nil {
				b.Number = &text
			}
		case "POSTAL_CODE":
			if b.PostalCode == nil {
				b.PostalCode = &text
			}
		case "CITY":
			if b.City == nil {
				b.City = &text
			}
		}
	}
	return b
}

// WriteJSON writes the mapping as indented JSON.
func (m *Mapping) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// WriteMarkdown writes the mapping as a human-readable Markdown report.
func (m *Mapping) WriteMarkdown(w io.Writer) error {
	md := markdown.NewMarkdown(w)

	md.H1("Anonymization Mapping")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"File", "`" + m.Filename + "`"},
			{"Generated", m.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Anonymized", strconv.Itoa(m.TotalSelected)},
			{"Detected", strconv.Itoa(m.TotalDetected)},
		},
	})
	md.PlainText("")

	md.H2("Counts by Type")
	md.PlainText("")
	countRows := make([][]string, 0, len(m.CountsByType))
	for _, entryType := range sortedKeys(m.CountsByType) {
		countRows = append(countRows, []string{entryType, strconv.Itoa(m.CountsByType[entryType])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Type", "Count"},
		Rows:   countRows,
	})
	md.PlainText("")

	md.H2("Substitutions")
	md.PlainText("")
	rows := make([][]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		detail := ""
		if e.Components != nil {
			detail = componentSummary(e.Components)
		}
		rows = append(rows, []string{
			"`" + e.Token + "`",
			e.Type,
			"`" + e.Original + "`",
			fmt.Sprintf("%.2f", e.Confidence),
			detail,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Token", "Type", "Original", "Confidence", "Components"},
		Rows:   rows,
	})

	return md.Build()
}

func componentSummary(b *ComponentBreakdown) string {
	part := func(label string, v *string) string {
		if v == nil {
			return label + ": -"
		}
		return label + ": " + *v
	}
	return part("street", b.Street) + ", " + part("no", b.Number) + ", " +
		part("postal", b.PostalCode) + ", " + part("city", b.City)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
