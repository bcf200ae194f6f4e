package anonymizer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
)

// Assignment records one substitution performed on the document.
type Assignment struct {
	Entity entity.Entity `json:"entity"`
	Token  string        `json:"token"`
}

// Engine rewrites documents using a token session.
type Engine struct {
	session *Session
	logger  *logger.Logger
}

// New creates an anonymization engine around a session.
func New(session *Session, log *logger.Logger) *Engine {
	return &Engine{session: session, logger: log}
}

// Session exposes the engine's token session.
func (a *Engine) Session() *Session { return a.session }

// Reset clears the token session for a new document.
func (a *Engine) Reset() { a.session.Reset() }

// Apply replaces every selected entity in content with its session token
// and returns the redacted text plus the substitutions made.
//
// Replacement proceeds by descending start offset so earlier replacements
// never shift the offsets of not-yet-processed entities. That ordering is
// mandatory for offset correctness, not an optimization. Overlapping spans
// are replaced once: an entity reaching into an already-replaced region is
// skipped, so nothing is ever double-redacted.
func (a *Engine) Apply(content string, entities []entity.Entity) (string, []Assignment) {
	selected := make([]entity.Entity, 0, len(entities))
	for _, e := range entities {
		if !e.Selected {
			continue
		}
		if e.Start < 0 || e.End > len(content) || e.Start >= e.End {
			a.logger.Warn("Skipping entity with invalid span",
				zap.String("entity_id", e.ID),
				zap.Int("start", e.Start),
				zap.Int("end", e.End),
			)
			continue
		}
		selected = append(selected, e)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Start > selected[j].Start
	})

	kept := make([]entity.Entity, 0, len(selected))
	replacedFrom := len(content) + 1
	for _, e := range selected {
		if e.End > replacedFrom {
			a.logger.Debug("Skipping entity overlapping an already replaced span",
				zap.String("entity_id", e.ID),
				zap.String("type", e.Type),
			)
			continue
		}
		replacedFrom = e.Start
		kept = append(kept, e)
	}

	// Tokens are minted in document order so [TYPE_1] is always the first
	// occurrence a reader sees; kept is sorted by descending start, so
	// document order is its reverse.
	assignments := make([]Assignment, len(kept))
	for i := range assignments {
		e := kept[len(kept)-1-i]
		assignments[i] = Assignment{Entity: e, Token: a.session.GetOrCreateToken(e.Text, e.Type)}
	}

	// Splicing back to front keeps the remaining offsets valid.
	redacted := content
	for i := len(assignments) - 1; i >= 0; i-- {
		as := assignments[i]
		redacted = redacted[:as.Entity.Start] + as.Token + redacted[as.Entity.End:]
	}

	a.logger.Info("Anonymization applied",
		zap.Int("entities_selected", len(selected)),
		zap.Int("replacements", len(assignments)),
	)
	return redacted, assignments
}
