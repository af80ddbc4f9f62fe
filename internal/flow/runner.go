package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"
)

// Runner executes a flow's nodes in order, threading the frame and the
// per-node trained parameters.
type Runner struct {
	// Env is handed to every operator; its Logf receives stage lines.
	Env *operator.Env
	// ParamsPath is the trained-parameter sidecar file. Empty disables
	// persistence; trained state still threads through the run.
	ParamsPath string
}

// Run executes cfg against an initially empty dataset and returns the
// final frame. The sidecar is rewritten after every node that produced
// trained state, so an aborted run keeps the models it fitted.
func (r *Runner) Run(ctx context.Context, cfg *Config) (*frame.Frame, error) {
	all, err := LoadParams(r.ParamsPath)
	if err != nil {
		return nil, err
	}

	var f *frame.Frame
	for i, node := range cfg.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, ok := operator.Lookup(node.Operator)
		if !ok {
			return nil, fmt.Errorf("flow: unknown operator %q, choose from: %s",
				node.Operator, strings.Join(operator.Names(), ", "))
		}
		id := node.ID
		if id == "" {
			id = fmt.Sprintf("node-%d", i)
		}

		start := time.Now()
		res, err := h(ctx, r.Env, f, operator.Values(node.Parameters), all.Sub(id))
		dur := time.Since(start)
		status := "success"
		if err != nil {
			status = "error"
		}
		labels := metrics.Labels{"operator": node.Operator, "status": status}
		r.Env.Count(metrics.NodeTotal, 1, labels)
		r.Env.Observe(metrics.NodeDurationSeconds, dur.Seconds(), labels)
		if err != nil {
			return nil, fmt.Errorf("node %s (%s): %w", id, node.Operator, err)
		}

		f = res.Frame
		rows := 0
		if f != nil {
			rows = f.NumRows()
		}
		r.Env.Printf("stage=%s rows=%d duration=%s", id, rows, dur.Truncate(time.Millisecond))
		if res.Stdout != "" {
			r.Env.Printf("%s", strings.TrimRight(res.Stdout, "\n"))
		}
		if res.State != nil {
			r.Env.Printf("stage=%s status=%s %s", id, res.State.Status, res.State.Message)
		}
		if res.Trained != nil {
			all.SetSub(id, res.Trained)
			if r.ParamsPath != "" {
				if err := SaveParams(r.ParamsPath, all); err != nil {
					return nil, err
				}
			}
		}
	}
	return f, nil
}

// LoadParams reads a trained-parameter sidecar. A missing file or empty
// path yields an empty parameter set.
func LoadParams(path string) (trained.Params, error) {
	if path == "" {
		return make(trained.Params), nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(trained.Params), nil
	}
	if err != nil {
		return nil, fmt.Errorf("flow: read trained parameters: %w", err)
	}
	var p trained.Params
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("flow: decode trained parameters %s: %w", path, err)
	}
	if p == nil {
		p = make(trained.Params)
	}
	return p, nil
}

// SaveParams rewrites the sidecar at path.
func SaveParams(path string, p trained.Params) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("flow: encode trained parameters: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("flow: write trained parameters: %w", err)
	}
	return nil
}
