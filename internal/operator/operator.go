// Package operator wires named data-prep operators to the flow runner.
//
// Implementations live in subpackages and register themselves under their
// node operator name in an init func; the runner resolves names through
// Lookup. Operators receive the current frame, their raw parameter
// object, and any trained state persisted for the node, and hand back the
// transformed frame plus replacement state.
package operator

import (
	"context"
	"sort"
	"sync"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// Env carries the run-scoped facilities handed to every operator.
type Env struct {
	// Logf receives operator progress lines; may be nil in tests.
	Logf func(format string, args ...any)
	// Metrics is never nil once a flow is set up; tests may leave it nil
	// and use Printf-only paths.
	Metrics metrics.Backend
	// SampleSize bounds type inference; zero means the default.
	SampleSize int
}

// Printf logs through the environment, tolerating nil receivers so tests
// can pass a bare Env.
func (e *Env) Printf(format string, args ...any) {
	if e != nil && e.Logf != nil {
		e.Logf(format, args...)
	}
}

// Count forwards a counter increment to the metrics backend, if any.
func (e *Env) Count(name string, delta float64, labels metrics.Labels) {
	if e != nil && e.Metrics != nil {
		e.Metrics.IncCounter(name, delta, labels)
	}
}

// Observe forwards a histogram sample to the metrics backend, if any.
func (e *Env) Observe(name string, value float64, labels metrics.Labels) {
	if e != nil && e.Metrics != nil {
		e.Metrics.ObserveHistogram(name, value, labels)
	}
}

// State reports an operator's execution status when it finishes with a
// caveat worth surfacing, such as a lenient fallback.
type State struct {
	Status  string
	Message string
}

// Result is what an operator hands back to the runner.
type Result struct {
	Frame *frame.Frame
	// Trained replaces the node's persisted state when non-nil.
	Trained trained.Params
	// Stdout carries captured diagnostic text for the run log.
	Stdout string
	// State, when non-nil, reports a non-fatal execution status.
	State *State
}

// Handler runs one node against the current dataset.
type Handler func(ctx context.Context, env *Env, f *frame.Frame, params Values, tp trained.Params) (*Result, error)

var (
	regMu    sync.RWMutex
	handlers = make(map[string]Handler)
)

// Register makes a handler available under the node operator name. It
// panics on empty names, nil handlers, and duplicate registration, all of
// which are programmer errors caught at init time.
func Register(name string, h Handler) {
	if name == "" {
		panic("operator: Register with empty name")
	}
	if h == nil {
		panic("operator: Register with nil handler for " + name)
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := handlers[name]; dup {
		panic("operator: Register called twice for " + name)
	}
	handlers[name] = h
}

// Lookup returns the handler registered under name.
func Lookup(name string) (Handler, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	h, ok := handlers[name]
	return h, ok
}

// Names returns the registered operator names, sorted.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(handlers))
	for name := range handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RequireFrame rejects a missing input dataset. Transforms and
// destinations call it before touching the frame; sources ignore their
// input instead.
func RequireFrame(f *frame.Frame) error {
	if f == nil {
		return operr.New(operr.KindUnknown,
			"operator received no input dataset, add a source node before it")
	}
	return nil
}

// WrapTransformErr tags err per the stored-model contract: a failure
// while applying a model restored from trained parameters surfaces as
// StoredModelCorrupt, a failure of a freshly fitted model propagates
// untouched.
func WrapTransformErr(err error, loaded bool) error {
	if err == nil || !loaded {
		return err
	}
	return operr.Wrap(operr.StoredModelCorrupt, err,
		"encountered error while using stored model, delete the operator and try again")
}
