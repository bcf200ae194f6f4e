//go:build onnx
// +build onnx

package ml

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/logger"
)

// defaultLabels is the BIO tag set used when no label file sits next to the
// model (<model>.labels, one label per line).
var defaultLabels = []string{
	"O",
	"B-PER", "I-PER",
	"B-LOC", "I-LOC",
	"B-ORG", "I-ORG",
	"B-MISC", "I-MISC",
}

// OnnxBackend runs byte-level token-classification models (CANINE-style,
// no external tokenizer) through ONNX Runtime. Requires build tag 'onnx'.
type OnnxBackend struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	labels     []string
	maxLength  int
	logger     *logger.Logger
	ready      bool
	mu         sync.Mutex
}

// NewBackend initializes the ONNX Runtime backend.
func NewBackend(log *logger.Logger, modelPath string, maxLength int) Backend {
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		log.Error("ONNX Runtime environment init failed", zap.Error(err))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		log.Error("Failed to inspect ONNX model IO", zap.Error(err), zap.String("model", modelPath))
		return nil
	}

	preferred := []string{"input_ids", "attention_mask", "token_type_ids"}
	available := map[string]bool{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = true
	}
	var inputNames []string
	for _, name := range preferred {
		if available[name] {
			inputNames = append(inputNames, name)
		}
	}
	if len(inputNames) == 0 || len(outputsInfo) == 0 {
		log.Error("ONNX model has no usable token-classification IO", zap.String("model", modelPath))
		return nil
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputsInfo[0].Name}, nil)
	if err != nil {
		log.Error("Failed to create ONNX session", zap.Error(err))
		return nil
	}

	if maxLength <= 0 {
		maxLength = 512
	}
	return &OnnxBackend{
		session:    session,
		inputNames: inputNames,
		outputName: outputsInfo[0].Name,
		labels:     loadLabels(modelPath, log),
		maxLength:  maxLength,
		logger:     log,
		ready:      true,
	}
}

// loadLabels reads <model>.labels if present, else the default BIO set.
func loadLabels(modelPath string, log *logger.Logger) []string {
	f, err := os.Open(modelPath + ".labels")
	if err != nil {
		return defaultLabels
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if len(labels) == 0 {
		return defaultLabels
	}
	log.Debug("Loaded model label set", zap.Int("labels", len(labels)))
	return labels
}

// IsReady returns whether the backend is initialized.
func (b *OnnxBackend) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// Classify runs one document through the model and folds BIO tags into
// labeled spans with byte offsets into the input text.
func (b *OnnxBackend) Classify(ctx context.Context, text string) ([]TokenSpan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return nil, fmt.Errorf("onnx backend closed")
	}

	// Byte-level encoding: one token per byte, truncated to maxLength.
	raw := []byte(text)
	if len(raw) > b.maxLength {
		raw = raw[:b.maxLength]
	}
	seq := len(raw)
	if seq == 0 {
		return nil, nil
	}

	ids := make([]int64, seq)
	mask := make([]int64, seq)
	for i, c := range raw {
		ids[i] = int64(c)
		mask[i] = 1
	}

	shape := ort.NewShape(1, int64(seq))
	inputs := make([]ort.Value, 0, len(b.inputNames))
	for _, name := range b.inputNames {
		var data []int64
		switch name {
		case "input_ids":
			data = ids
		case "attention_mask":
			data = mask
		default:
			data = make([]int64, seq)
		}
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			for _, v := range inputs {
				v.Destroy()
			}
			return nil, fmt.Errorf("create input tensor %s: %w", name, err)
		}
		inputs = append(inputs, t)
	}
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()

	outputs := []ort.Value{nil}
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		outputs[0].Destroy()
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	defer logits.Destroy()

	data := logits.GetData()
	numLabels := len(b.labels)
	if len(data) < seq*numLabels {
		return nil, fmt.Errorf("output shape mismatch: %d values for %d positions", len(data), seq)
	}

	return b.decode(text, data, seq, numLabels), nil
}

// decode folds per-byte BIO predictions into spans.
func (b *OnnxBackend) decode(text string, logits []float32, seq, numLabels int) []TokenSpan {
	var spans []TokenSpan
	var cur *TokenSpan
	var curScores []float64

	flush := func() {
		if cur == nil {
			return
		}
		sum := 0.0
		for _, s := range curScores {
			sum += s
		}
		cur.Score = sum / float64(len(curScores))
		cur.Word = text[cur.Start:cur.End]
		spans = append(spans, *cur)
		cur, curScores = nil, nil
	}

	for pos := 0; pos < seq; pos++ {
		idx, prob := argmaxSoftmax(logits[pos*numLabels : (pos+1)*numLabels])
		label := b.labels[idx]
		if label == "O" {
			flush()
			continue
		}

		base := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
		begin := strings.HasPrefix(label, "B-")
		if cur != nil && !begin && cur.Label == base {
			cur.End = pos + 1
			curScores = append(curScores, prob)
			continue
		}
		flush()
		cur = &TokenSpan{Label: base, Start: pos, End: pos + 1}
		curScores = []float64{prob}
	}
	flush()
	return spans
}

// argmaxSoftmax returns the winning index and its softmax probability.
func argmaxSoftmax(logits []float32) (int, float64) {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	var denom float64
	for _, v := range logits {
		denom += math.Exp(float64(v - logits[best]))
	}
	return best, 1.0 / denom
}

// Close releases the ONNX session.
func (b *OnnxBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return nil
	}
	b.ready = false
	b.session.Destroy()
	return nil
}
