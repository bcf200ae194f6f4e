package passes

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

// Grouped address entity types.
const (
	TypeSwissAddress = "SWISS_ADDRESS"
	TypeAddress      = "ADDRESS"
)

// componentRank orders address component types for overlap resolution;
// higher ranks win ties.
var componentRank = map[string]int{
	"CITY":            4,
	"STREET":          3,
	"POSTAL_CODE":     2,
	"BUILDING_NUMBER": 1,
}

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n`)

// AddressPass groups adjacent street/number/postal-code/city fragments into
// single address entities and suppresses the fragments. A grouped address
// never coexists with its own components in the output list.
type AddressPass struct {
	base
	cfg    config.AddressConfig
	logger *logger.Logger
}

// NewAddressPass builds the address relationship pass.
func NewAddressPass(cfg config.AddressConfig, log *logger.Logger) *AddressPass {
	return &AddressPass{
		base:   base{name: "address-grouping", order: OrderAddress, enabled: true},
		cfg:    cfg,
		logger: log,
	}
}

// Execute implements pipeline.Pass. Contract: replaces grouped components
// with one address entity carrying the components.
func (p *AddressPass) Execute(ctx context.Context, text string, entities []entity.Entity, pc *pipeline.Context) ([]entity.Entity, error) {
	components, rest := splitComponents(entities)
	if len(components) < 2 {
		return entities, nil
	}

	components = resolveComponentOverlaps(components)
	groups := p.group(text, components)

	var out []entity.Entity
	out = append(out, rest...)

	grouped := make(map[string]bool)
	var merged []entity.Entity
	for _, g := range groups {
		if addr, ok := p.buildAddress(text, g); ok {
			merged = append(merged, addr)
			for _, c := range g {
				grouped[c.ID] = true
			}
		}
	}

	// Ungrouped components stay as they were.
	for _, c := range components {
		if !grouped[c.ID] {
			out = append(out, c)
		}
	}

	// Invariant: no component-typed entity may survive inside a grouped
	// address span.
	kept := out[:0]
	for _, e := range out {
		if _, isComponent := componentRank[e.Type]; isComponent && containedInAny(merged, &e) {
			continue
		}
		kept = append(kept, e)
	}
	out = append(kept, merged...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	if len(merged) > 0 {
		p.logger.Debug("Address components grouped",
			zap.String("document_id", pc.DocumentID),
			zap.Int("addresses", len(merged)),
		)
	}
	return out, nil
}

// splitComponents separates address components from everything else.
func splitComponents(entities []entity.Entity) (components, rest []entity.Entity) {
	for _, e := range entities {
		if _, ok := componentRank[e.Type]; ok {
			components = append(components, e)
		} else {
			rest = append(rest, e)
		}
	}
	sort.SliceStable(components, func(i, j int) bool { return components[i].Start < components[j].Start })
	return components, rest
}

// resolveComponentOverlaps drops the weaker of two overlapping component
// candidates (e.g. a postal code also matched as a bare building number).
func resolveComponentOverlaps(components []entity.Entity) []entity.Entity {
	var out []entity.Entity
	for _, c := range components {
		if len(out) == 0 {
			out = append(out, c)
			continue
		}
		last := &out[len(out)-1]
		if last.Overlap(&c) == 0 {
			out = append(out, c)
			continue
		}
		if betterComponent(&c, last) {
			out[len(out)-1] = c
		}
	}
	return out
}

func betterComponent(a, b *entity.Entity) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return componentRank[a.Type] > componentRank[b.Type]
}

// group scans left to right, chaining components whose gaps stay within the
// window and whose combined span passes the over-grouping guards.
func (p *AddressPass) group(text string, components []entity.Entity) [][]entity.Entity {
	var groups [][]entity.Entity
	var current []entity.Entity

	for _, c := range components {
		if len(current) == 0 {
			current = []entity.Entity{c}
			continue
		}
		last := current[len(current)-1]
		gap := c.Start - last.End
		if gap >= 0 && gap <= p.cfg.WindowChars && p.spanAllowed(text, current[0].Start, c.End) {
			current = append(current, c)
			continue
		}
		groups = append(groups, current)
		current = []entity.Entity{c}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// spanAllowed applies the over-grouping guards: bounded length, no markdown
// heading marker, at most the configured number of paragraph breaks.
func (p *AddressPass) spanAllowed(text string, start, end int) bool {
	if end-start > p.cfg.MaxSpan {
		return false
	}
	span := text[start:end]
	if strings.Contains(span, "#") {
		return false
	}
	if len(paragraphBreak.FindAllStringIndex(span, -1)) > p.cfg.MaxParagraphBreaks {
		return false
	}
	return true
}

// buildAddress merges a component group into one address entity. Groups
// without at least two distinct component types including a street or city
// are left ungrouped.
func (p *AddressPass) buildAddress(text string, group []entity.Entity) (entity.Entity, bool) {
	if len(group) < 2 {
		return entity.Entity{}, false
	}

	types := make(map[string]bool)
	anchored := false
	maxConf := 0.0
	swiss := false
	for _, c := range group {
		types[c.Type] = true
		if c.Type == "STREET" || c.Type == "CITY" {
			anchored = true
		}
		if c.Confidence > maxConf {
			maxConf = c.Confidence
		}
		if strings.HasPrefix(c.Recognizer, "swiss-") {
			swiss = true
		}
	}
	if len(types) < 2 || !anchored {
		return entity.Entity{}, false
	}

	start := group[0].Start
	end := group[len(group)-1].End
	addrType := TypeAddress
	if swiss {
		addrType = TypeSwissAddress
	}

	addr := entity.Entity{
		ID:         entity.NewID(),
		Type:       addrType,
		Text:       text[start:end],
		Start:      start,
		End:        end,
		Confidence: clamp01(maxConf + 0.05*float64(len(types)-1)),
		Source:     entity.SourceRule,
		Selected:   true,
		Components: append([]entity.Entity(nil), group...),
	}
	addr.SetMeta(entity.MetaIsGroupedAddress, true)
	addr.SetMeta(entity.MetaComponentCount, len(group))
	return addr, true
}

func containedInAny(addresses []entity.Entity, e *entity.Entity) bool {
	for i := range addresses {
		if addresses[i].Contains(e) {
			return true
		}
	}
	return false
}
