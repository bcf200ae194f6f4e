// Package pipeline runs an ordered list of detection passes over a document.
// Passes consume and enrich a shared entity list plus a shared context bag;
// the pipeline owns sequencing, timing, and per-pass failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
)

// Context metadata keys written by passes. Each key is part of the writing
// pass's contract with the passes that follow it.
const (
	MetaDocumentType           = "documentType"
	MetaDocumentClassification = "documentClassification"
	MetaDocumentLanguage       = "documentLanguage"
	MetaFrontmatterEnd         = "frontmatterEnd"
	MetaRecognizerErrors       = "recognizerErrors"
	MetaRecognizersUsed        = "recognizersUsed"
)

// Pass is one stage of the detection pipeline. Execute receives the full
// document text, the entities accumulated so far, and the shared context;
// it returns the updated entity list. Passes may add entities, mutate
// confidence or metadata of existing ones, or remove entities.
type Pass interface {
	Name() string
	Order() int
	Enabled() bool
	Execute(ctx context.Context, text string, entities []entity.Entity, pc *Context) ([]entity.Entity, error)
}

// PassResult records one pass execution for diagnostics.
type PassResult struct {
	Name        string        `json:"name"`
	EntitiesIn  int           `json:"entitiesIn"`
	EntitiesOut int           `json:"entitiesOut"`
	Duration    time.Duration `json:"duration"`
	Skipped     bool          `json:"skipped,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Context is created once per Process call and discarded afterwards.
type Context struct {
	DocumentID  string
	Language    string
	Metadata    map[string]any
	PassResults []PassResult
	StartTime   time.Time
}

// Result is the complete outcome of a pipeline run. It is always returned:
// degraded detection is preferred over a failed run.
type Result struct {
	Entities     []entity.Entity `json:"entities"`
	DocumentType string          `json:"documentType"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	PassResults  []PassResult    `json:"passResults"`
	Duration     time.Duration   `json:"duration"`
}

// Pipeline executes registered passes in ascending order. Passes run
// strictly sequentially; later passes depend on context written by earlier
// ones.
type Pipeline struct {
	passes []Pass
	logger *logger.Logger
}

// New creates an empty pipeline.
func New(log *logger.Logger) *Pipeline {
	return &Pipeline{logger: log}
}

// Register adds a pass. May be called any number of times before Process;
// registration order breaks ties between equal pass orders.
func (p *Pipeline) Register(pass Pass) {
	p.passes = append(p.passes, pass)
	p.logger.Debug("Pass registered",
		zap.String("pass", pass.Name()),
		zap.Int("order", pass.Order()),
	)
}

// Process runs the pass list over the text. A pass that returns an error or
// panics is logged and its output discarded; the entity list continues from
// the state before that pass. A single broken pass never aborts detection.
func (p *Pipeline) Process(ctx context.Context, text, documentID, language string) *Result {
	pc := &Context{
		DocumentID: documentID,
		Language:   language,
		Metadata:   make(map[string]any),
		StartTime:  time.Now(),
	}

	ordered := make([]Pass, len(p.passes))
	copy(ordered, p.passes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order() < ordered[j].Order()
	})

	var entities []entity.Entity
	for _, pass := range ordered {
		if !pass.Enabled() {
			pc.PassResults = append(pc.PassResults, PassResult{
				Name:        pass.Name(),
				EntitiesIn:  len(entities),
				EntitiesOut: len(entities),
				Skipped:     true,
			})
			continue
		}

		passStart := time.Now()
		in := len(entities)
		updated, err := p.executePass(ctx, pass, text, entities, pc)

		result := PassResult{
			Name:       pass.Name(),
			EntitiesIn: in,
			Duration:   time.Since(passStart),
		}
		if err != nil {
			result.Error = err.Error()
			result.EntitiesOut = in
			p.logger.Warn("Pass failed, keeping entity list from before the pass",
				zap.String("pass", pass.Name()),
				zap.String("document_id", documentID),
				zap.Error(err),
			)
		} else {
			entities = updated
			result.EntitiesOut = len(entities)
			p.logger.Debug("Pass complete",
				zap.String("pass", pass.Name()),
				zap.Int("entities_in", in),
				zap.Int("entities_out", len(entities)),
				zap.Duration("duration", result.Duration),
			)
		}
		pc.PassResults = append(pc.PassResults, result)
	}

	docType, _ := pc.Metadata[MetaDocumentType].(string)
	return &Result{
		Entities:     entities,
		DocumentType: docType,
		Metadata:     pc.Metadata,
		PassResults:  pc.PassResults,
		Duration:     time.Since(pc.StartTime),
	}
}

// executePass isolates one pass call, converting panics into errors. The
// pass receives a copy of the entity list so a pass that mutates entities
// before failing cannot corrupt the list the caller keeps on error.
func (p *Pipeline) executePass(ctx context.Context, pass Pass, text string, entities []entity.Entity, pc *Context) (out []entity.Entity, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panic: %v", r)
		}
	}()
	scratch := append([]entity.Entity(nil), entities...)
	return pass.Execute(ctx, text, scratch, pc)
}
