//go:build !onnx
// +build !onnx

package ml

import (
	"github.com/docveil/docveil/internal/logger"
)

// Stub implementation used when the 'onnx' build tag is not set.
func NewBackend(log *logger.Logger, modelPath string, maxLength int) Backend {
	return nil
}
