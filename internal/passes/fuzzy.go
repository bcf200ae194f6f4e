package passes

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/docveil/docveil/internal/config"
)

// fuzzyMatcher builds bounded dynamic regexes from previously seen entity
// text to catch repeated occurrences with formatting drift. The bounds are
// ReDoS safety rules: candidates that are too long, or regexes that run too
// long, are treated as no-match rather than risked.
type fuzzyMatcher struct {
	cfg   config.FuzzyConfig
	cache map[string]*regexp.Regexp
}

func newFuzzyMatcher(cfg config.FuzzyConfig) *fuzzyMatcher {
	return &fuzzyMatcher{cfg: cfg, cache: make(map[string]*regexp.Regexp)}
}

// pattern builds a variant-tolerant regex for the candidate, or reports
// false when the candidate is too long to match safely.
func (f *fuzzyMatcher) pattern(candidate string) (*regexp.Regexp, bool) {
	if len(candidate) > f.cfg.MaxEntityLength {
		return nil, false
	}
	cleaned := stripPunctuation(candidate)
	if len(cleaned) > f.cfg.MaxEntityCharsCleaned || len(cleaned) == 0 {
		return nil, false
	}

	if re, ok := f.cache[cleaned]; ok {
		return re, re != nil
	}

	// Allow up to GapTolerance non-alphanumeric characters between any two
	// consecutive characters of the candidate.
	gap := fmt.Sprintf(`[^a-z0-9]{0,%d}`, f.cfg.GapTolerance)
	parts := make([]string, 0, len(cleaned))
	for _, r := range cleaned {
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(parts, gap))
	if err != nil {
		f.cache[cleaned] = nil
		return nil, false
	}
	f.cache[cleaned] = re
	return re, true
}

// find returns all span offsets of fuzzy occurrences of candidate in text.
// Every evaluation is wall-clock bounded; on timeout the result is empty.
// Go's RE2 engine cannot backtrack catastrophically, but the bound is part
// of the contract, not an optimization.
func (f *fuzzyMatcher) find(text, candidate string) [][]int {
	re, ok := f.pattern(candidate)
	if !ok {
		return nil
	}

	timeout := f.cfg.RegexTimeout
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}

	done := make(chan [][]int, 1)
	go func() {
		done <- re.FindAllStringIndex(text, -1)
	}()

	select {
	case locs := <-done:
		return locs
	case <-time.After(timeout):
		return nil
	}
}

// stripPunctuation removes everything but letters and digits.
func stripPunctuation(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizedLength counts the letters and digits of s; used for the
// minimum-length filter on fuzzy and ML candidates.
func normalizedLength(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
