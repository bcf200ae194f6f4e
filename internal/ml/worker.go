package ml

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/logger"
)

type request struct {
	text string
	resp chan response
}

type response struct {
	spans []TokenSpan
	err   error
}

// Worker serializes inference requests to the backend over a channel and
// bounds every request with a timeout. Multiple documents may call Run
// concurrently; inference itself executes one request at a time.
type Worker struct {
	backend  Backend
	cfg      config.MLConfig
	logger   *logger.Logger
	requests chan request
	done     chan struct{}
	ready    atomic.Bool
}

var _ Inference = (*Worker)(nil)

// NewWorker builds a worker around the build's backend. A nil backend (no
// onnx build tag, missing model path, disabled config) leaves the worker in
// permanent fallback mode.
func NewWorker(cfg config.MLConfig, log *logger.Logger) *Worker {
	w := &Worker{
		cfg:      cfg,
		logger:   log,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	if cfg.Enabled && cfg.ModelPath != "" {
		w.backend = NewBackend(log, cfg.ModelPath, cfg.MaxLength)
	}
	if w.backend == nil {
		log.Info("No NER backend available, detection runs in rule-only mode")
	}
	return w
}

// Warm initializes the backend and starts the inference loop. Cancellation
// leaves the worker in clean fallback mode; it never corrupts state and
// never returns an error other than by backend absence being silent.
func (w *Worker) Warm(ctx context.Context) {
	if w.backend == nil {
		return
	}

	warmed := make(chan bool, 1)
	go func() {
		// A tiny inference forces session initialization.
		_, err := w.backend.Classify(ctx, "warmup")
		warmed <- err == nil
	}()

	timeout := w.cfg.WarmupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case ok := <-warmed:
		if !ok || !w.backend.IsReady() {
			w.logger.Warn("NER backend warm-up failed, continuing in rule-only mode")
			return
		}
		w.ready.Store(true)
		go w.loop()
		w.logger.Info("NER backend ready", zap.String("model", w.cfg.ModelPath))
	case <-ctx.Done():
		w.logger.Info("NER backend warm-up cancelled, continuing in rule-only mode")
	case <-time.After(timeout):
		w.logger.Warn("NER backend warm-up timed out, continuing in rule-only mode",
			zap.Duration("timeout", timeout))
	}
}

// loop processes requests strictly sequentially.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			spans, err := w.backend.Classify(context.Background(), req.text)
			req.resp <- response{spans: spans, err: err}
		case <-w.done:
			return
		}
	}
}

// Run sends one inference request and awaits the typed response. It returns
// ErrModelUnavailable when no backend is ready or the request times out.
func (w *Worker) Run(ctx context.Context, text string) ([]TokenSpan, error) {
	if !w.ready.Load() {
		return nil, ErrModelUnavailable
	}

	timeout := w.cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := request{text: text, resp: make(chan response, 1)}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ErrModelUnavailable
	}

	select {
	case resp := <-req.resp:
		if resp.err != nil {
			w.logger.Warn("NER inference failed", zap.Error(resp.err))
			return nil, ErrModelUnavailable
		}
		return w.filter(resp.spans), nil
	case <-ctx.Done():
		return nil, ErrModelUnavailable
	}
}

// filter drops spans below the configured score floor.
func (w *Worker) filter(spans []TokenSpan) []TokenSpan {
	if w.cfg.MinScore <= 0 {
		return spans
	}
	out := spans[:0]
	for _, s := range spans {
		if s.Score >= w.cfg.MinScore {
			out = append(out, s)
		}
	}
	return out
}

// Close stops the inference loop and releases backend resources.
func (w *Worker) Close() error {
	if w.ready.Swap(false) {
		close(w.done)
	}
	if w.backend != nil {
		return w.backend.Close()
	}
	return nil
}
