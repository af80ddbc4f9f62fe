// Package sink writes frames out to files, object stores, and SQL
// databases. Database backends live in subpackages and register
// themselves by kind.
package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
)

// Config selects a SQL destination backend.
type Config struct {
	Kind string
	DSN  string
}

// Loader writes a frame into one database table.
type Loader interface {
	// EnsureTable creates the target table from the frame's column
	// layout when it does not exist yet.
	EnsureTable(ctx context.Context, table string, f *frame.Frame) error

	// InsertRows bulk-inserts every frame row and reports how many
	// landed.
	InsertRows(ctx context.Context, table string, f *frame.Frame) (int64, error)

	// Close releases backend resources. Call once when done.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Loader, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a database backend under a kind (e.g. "postgres",
// "sqlite"). Backend packages call it from init().
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("sink: Register called with empty kind")
	}
	if f == nil {
		panic("sink: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("sink: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// Kinds lists the registered backend kinds sorted by name.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New constructs a Loader using the registered backend factory.
//
// Errors:
//   - If cfg.Kind is empty or unsupported.
//   - Whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Loader, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("sink: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported sink kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
