package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/docveil/docveil/internal/entity"
	"github.com/docveil/docveil/internal/logger"
)

// fakePass appends one entity per Execute call, or fails when told to.
type fakePass struct {
	name    string
	order   int
	enabled bool
	fail    error
	panics  bool
	calls   int
}

func (f *fakePass) Name() string  { return f.name }
func (f *fakePass) Order() int    { return f.order }
func (f *fakePass) Enabled() bool { return f.enabled }

func (f *fakePass) Execute(ctx context.Context, text string, entities []entity.Entity, pc *Context) ([]entity.Entity, error) {
	f.calls++
	if f.panics {
		panic("pass bug")
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return append(entities, entity.Entity{
		ID:       entity.NewID(),
		Type:     "MARKER",
		Text:     f.name,
		Selected: true,
	}), nil
}

func TestPipelineProcess(t *testing.T) {
	t.Run("passes run in ascending order", func(t *testing.T) {
		p := New(logger.Nop())
		p.Register(&fakePass{name: "third", order: 50, enabled: true})
		p.Register(&fakePass{name: "first", order: 5, enabled: true})
		p.Register(&fakePass{name: "second", order: 10, enabled: true})

		result := p.Process(context.Background(), "text", "doc-1", "")

		var got []string
		for _, e := range result.Entities {
			got = append(got, e.Text)
		}
		want := []string{"first", "second", "third"}
		if len(got) != len(want) {
			t.Fatalf("entities = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("entity %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("failing pass keeps prior entities", func(t *testing.T) {
		p := New(logger.Nop())
		p.Register(&fakePass{name: "ok-before", order: 10, enabled: true})
		p.Register(&fakePass{name: "broken", order: 20, enabled: true, fail: errors.New("boom")})
		p.Register(&fakePass{name: "ok-after", order: 30, enabled: true})

		result := p.Process(context.Background(), "text", "doc-1", "")

		if len(result.Entities) != 2 {
			t.Fatalf("entities = %d, want 2 (failed pass output discarded)", len(result.Entities))
		}

		var brokenResult *PassResult
		for i := range result.PassResults {
			if result.PassResults[i].Name == "broken" {
				brokenResult = &result.PassResults[i]
			}
		}
		if brokenResult == nil {
			t.Fatal("no pass result recorded for broken pass")
		}
		if brokenResult.Error == "" {
			t.Error("broken pass result has no error")
		}
		if brokenResult.EntitiesIn != 1 || brokenResult.EntitiesOut != 1 {
			t.Errorf("broken pass result in/out = %d/%d, want 1/1", brokenResult.EntitiesIn, brokenResult.EntitiesOut)
		}
	})

	t.Run("failing pass cannot mutate prior entities", func(t *testing.T) {
		p := New(logger.Nop())
		p.Register(passFunc(func(ctx context.Context, text string, entities []entity.Entity, pc *Context) ([]entity.Entity, error) {
			return append(entities, entity.Entity{
				ID:         entity.NewID(),
				Type:       "EMAIL",
				Confidence: 0.65,
				Selected:   true,
			}), nil
		}))
		p.Register(&mutatingFailPass{})

		result := p.Process(context.Background(), "text", "doc-1", "")

		if len(result.Entities) != 1 {
			t.Fatalf("entities = %d, want 1", len(result.Entities))
		}
		e := result.Entities[0]
		if e.Confidence != 0.65 {
			t.Errorf("Confidence = %v, want pre-pass 0.65", e.Confidence)
		}
		if !e.Selected {
			t.Error("Selected cleared by a failing pass")
		}
	})

	t.Run("panicking pass is isolated", func(t *testing.T) {
		p := New(logger.Nop())
		p.Register(&fakePass{name: "panicky", order: 10, enabled: true, panics: true})
		after := &fakePass{name: "after", order: 20, enabled: true}
		p.Register(after)

		result := p.Process(context.Background(), "text", "doc-1", "")

		if after.calls != 1 {
			t.Errorf("pass after panic ran %d times, want 1", after.calls)
		}
		if len(result.Entities) != 1 {
			t.Errorf("entities = %d, want 1", len(result.Entities))
		}
		if result.PassResults[0].Error == "" {
			t.Error("panic not converted to pass error")
		}
	})

	t.Run("disabled pass is reported as skipped", func(t *testing.T) {
		p := New(logger.Nop())
		disabled := &fakePass{name: "disabled", order: 10, enabled: false}
		p.Register(disabled)
		p.Register(&fakePass{name: "active", order: 20, enabled: true})

		result := p.Process(context.Background(), "text", "doc-1", "")

		if disabled.calls != 0 {
			t.Errorf("disabled pass ran %d times, want 0", disabled.calls)
		}
		if len(result.PassResults) != 2 {
			t.Fatalf("pass results = %d, want 2", len(result.PassResults))
		}
		first := result.PassResults[0]
		if !first.Skipped {
			t.Error("disabled pass not marked skipped")
		}
		if first.Duration != 0 {
			t.Errorf("skipped pass duration = %v, want 0", first.Duration)
		}
	})

	t.Run("empty pipeline returns empty result", func(t *testing.T) {
		p := New(logger.Nop())
		result := p.Process(context.Background(), "text", "doc-1", "")
		if len(result.Entities) != 0 || len(result.PassResults) != 0 {
			t.Errorf("result = %+v, want empty", result)
		}
	})

	t.Run("document type comes from context metadata", func(t *testing.T) {
		p := New(logger.Nop())
		p.Register(passFunc(func(ctx context.Context, text string, entities []entity.Entity, pc *Context) ([]entity.Entity, error) {
			pc.Metadata[MetaDocumentType] = "INVOICE"
			return entities, nil
		}))

		result := p.Process(context.Background(), "text", "doc-1", "")
		if result.DocumentType != "INVOICE" {
			t.Errorf("DocumentType = %q, want INVOICE", result.DocumentType)
		}
	})
}

// mutatingFailPass rewrites the first entity in place, then fails.
type mutatingFailPass struct{}

func (*mutatingFailPass) Name() string  { return "mutating-fail" }
func (*mutatingFailPass) Order() int    { return 20 }
func (*mutatingFailPass) Enabled() bool { return true }
func (*mutatingFailPass) Execute(ctx context.Context, text string, entities []entity.Entity, pc *Context) ([]entity.Entity, error) {
	if len(entities) > 0 {
		entities[0].Confidence = 0.99
		entities[0].Selected = false
	}
	return nil, errors.New("late failure")
}

// passFunc adapts a function to the Pass interface for tests.
type passFunc func(ctx context.Context, text string, entities []entity.Entity, pc *Context) ([]entity.Entity, error)

func (f passFunc) Name() string  { return "func" }
func (f passFunc) Order() int    { return 1 }
func (f passFunc) Enabled() bool { return true }
func (f passFunc) Execute(ctx context.Context, text string, entities []entity.Entity, pc *Context) ([]entity.Entity, error) {
	return f(ctx, text, entities, pc)
}
