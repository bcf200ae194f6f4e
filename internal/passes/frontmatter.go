package passes

import (
	"context"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

// FrontmatterPass drops entities detected inside a document's structural
// metadata block. It depends only on MetaFrontmatterEnd written by
// ClassifyPass, so toggling other passes cannot reintroduce frontmatter
// entities.
type FrontmatterPass struct {
	base
	logger *logger.Logger
}

// NewFrontmatterPass builds the frontmatter filter pass.
func NewFrontmatterPass(log *logger.Logger) *FrontmatterPass {
	return &FrontmatterPass{
		base:   base{name: "frontmatter-filter", order: OrderFrontmatter, enabled: true},
		logger: log,
	}
}

// Execute implements pipeline.Pass. Contract: reads MetaFrontmatterEnd;
// removes entities that start before it, never mutates the survivors.
func (p *FrontmatterPass) Execute(ctx context.Context, text string, entities []entity.Entity, pc *pipeline.Context) ([]entity.Entity, error) {
	fmEnd, ok := pc.Metadata[pipeline.MetaFrontmatterEnd].(int)
	if !ok || fmEnd <= 0 {
		return entities, nil
	}

	kept := entities[:0]
	for _, e := range entities {
		if e.Start >= fmEnd {
			kept = append(kept, e)
		}
	}
	if dropped := len(entities) - len(kept); dropped > 0 {
		p.logger.Debug("Frontmatter entities dropped",
			zap.String("document_id", pc.DocumentID),
			zap.Int("dropped", dropped),
			zap.Int("frontmatter_end", fmEnd),
		)
	}
	return kept, nil
}
