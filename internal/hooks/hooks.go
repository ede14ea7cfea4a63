// Package hooks delivers lifecycle events to an ordered list of
// subscribers, isolating each subscriber's failures from the others and
// from the pipeline.
package hooks

import (
	"log/slog"
	"sync"

	"github.com/skymonitor/meteor-go/internal/frame"
	"github.com/skymonitor/meteor-go/internal/logging"
)

// DetectionEvent is fired for each clip that yields detections.
type DetectionEvent struct {
	DateStr   string
	Hour      int
	Minute    int
	LineCount int
	ImagePath string
	ClipPath  string
	Lines     []frame.Line
}

// NightCompleteEvent is fired once at the end of a pipeline run.
type NightCompleteEvent struct {
	DateStr        string
	DetectionCount int
	CompositePath  string
	VideoPath      string
}

// ErrorEvent is fired for per-stage failures worth notifying about.
type ErrorEvent struct {
	Stage   string
	Err     error
	Context map[string]string
}

// Hook is the subscriber capability set. Embed NoopHook to implement a
// subset of the methods.
type Hook interface {
	OnDetection(event DetectionEvent)
	OnNightComplete(event NightCompleteEvent)
	OnError(event ErrorEvent)
}

// NoopHook is an inert Hook implementation for embedding.
type NoopHook struct{}

func (NoopHook) OnDetection(DetectionEvent)         {}
func (NoopHook) OnNightComplete(NightCompleteEvent) {}
func (NoopHook) OnError(ErrorEvent)                 {}

var (
	hookLogger *slog.Logger
	levelVar   = new(slog.LevelVar)
	loggerOnce sync.Once
)

func logger() *slog.Logger {
	loggerOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		hookLogger, _ = logging.ForService("hooks", levelVar)
	})
	return hookLogger
}

// Runner fans events out to all registered hooks. A hook that panics is
// logged and skipped; remaining hooks still run and the caller never sees
// the failure. An empty runner is a valid, inert configuration.
type Runner struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewRunner creates a Runner with the given hooks.
func NewRunner(hooks ...Hook) *Runner {
	return &Runner{hooks: hooks}
}

// Add appends a hook to the end of the delivery order.
func (r *Runner) Add(hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

func (r *Runner) snapshot() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hook(nil), r.hooks...)
}

// Detection delivers a detection event to every hook.
func (r *Runner) Detection(event DetectionEvent) {
	for _, h := range r.snapshot() {
		deliver("on_detection", func() { h.OnDetection(event) })
	}
}

// NightComplete delivers a night-complete event to every hook.
func (r *Runner) NightComplete(event NightCompleteEvent) {
	for _, h := range r.snapshot() {
		deliver("on_night_complete", func() { h.OnNightComplete(event) })
	}
}

// Error delivers an error event to every hook.
func (r *Runner) Error(event ErrorEvent) {
	for _, h := range r.snapshot() {
		deliver("on_error", func() { h.OnError(event) })
	}
}

func deliver(method string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger().Warn("Hook failed", "method", method, "panic", rec)
		}
	}()
	fn()
}
