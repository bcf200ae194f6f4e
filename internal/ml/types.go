// Package ml hosts the optional named-entity inference backend. Absence or
// failure of the backend is never an error for callers of the detection
// pipeline; the engine falls back to rule-only mode.
package ml

import (
	"context"
	"errors"
)

// ErrModelUnavailable signals that no backend is loaded, the backend timed
// out, or warm-up was cancelled. Consumers treat it as fallback mode, not a
// failure.
var ErrModelUnavailable = errors.New("ml model unavailable")

// TokenSpan is one labeled span from the token-classification model.
// Offsets follow the same half-open convention as entity spans.
type TokenSpan struct {
	Word  string  `json:"word"`
	Label string  `json:"entityLabel"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// Inference is the contract the detection pipeline depends on.
type Inference interface {
	Run(ctx context.Context, text string) ([]TokenSpan, error)
}

// Backend is a pluggable token-classification engine. Implementations live
// in build-tagged files; the default build carries only a stub.
type Backend interface {
	Classify(ctx context.Context, text string) ([]TokenSpan, error)
	IsReady() bool
	Close() error
}
