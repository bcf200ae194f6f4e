// Package passes contains the detection pipeline stages: document
// classification, high-recall rule+ML detection, fuzzy repeat matching,
// address grouping, and the document-type rule engine.
package passes

// Pass execution orders. Classification runs first so later passes can read
// its context metadata; the rule engine runs after detection so it has
// entities to adjust.
const (
	OrderClassify    = 5
	OrderHighRecall  = 10
	OrderFrontmatter = 30
	OrderAddress     = 40
	OrderRules       = 50
)

// base provides the Name/Order/Enabled part of the Pass contract for
// embedding; passes compose it rather than inherit behavior.
type base struct {
	name    string
	order   int
	enabled bool
}

func (b *base) Name() string  { return b.name }
func (b *base) Order() int    { return b.order }
func (b *base) Enabled() bool { return b.enabled }

// SetEnabled toggles the pass; disabled passes are skipped by the pipeline
// but still reported in its diagnostics.
func (b *base) SetEnabled(enabled bool) { b.enabled = enabled }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
