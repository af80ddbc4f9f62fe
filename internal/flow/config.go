// Package flow loads, validates, and runs data-prep flow documents: an
// ordered list of operator nodes applied to a single dataset, with
// trained parameters persisted to a sidecar file between runs.
package flow

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
)

// Config is the decoded flow document.
type Config struct {
	Job string `json:"job"`
	// TrainedParams is the sidecar path holding per-node trained state.
	// The -params flag overrides it; empty disables persistence.
	TrainedParams string  `json:"trained_parameters"`
	Metrics       Metrics `json:"metrics"`
	Nodes         []Node  `json:"nodes"`
}

// Node is one operator application within a flow.
type Node struct {
	ID         string         `json:"id"`
	Operator   string         `json:"operator"`
	Parameters map[string]any `json:"parameters"`
}

// Metrics selects where run instrumentation goes.
type Metrics struct {
	// Backend kind: "datadog" | "prompush" | "none"
	Backend string `json:"backend"`
	// PushGatewayURL overrides the prompush target.
	PushGatewayURL string `json:"pushgateway_url"`
}

// Load reads and decodes the flow document at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flow: open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a flow document from r.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("flow: decode config: %w", err)
	}
	return &cfg, nil
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is one validation finding. Errors abort a run, warnings print.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var sourceOperators = map[string]bool{
	"s3_source":   true,
	"file_source": true,
	"html_source": true,
}

// Validate checks a flow document against the operator registry and
// returns every issue found.
func Validate(cfg *Config) []Issue {
	var issues []Issue
	if cfg.Job == "" {
		issues = append(issues, Issue{SeverityWarning, "job", "job name is empty; metrics fall back to the default job tag"})
	}
	switch cfg.Metrics.Backend {
	case "", "none", "datadog", "prompush":
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", cfg.Metrics.Backend)})
	}
	if len(cfg.Nodes) == 0 {
		issues = append(issues, Issue{SeverityError, "nodes", "flow has no nodes"})
		return issues
	}

	seen := make(map[string]int)
	for i, n := range cfg.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			issues = append(issues, Issue{SeverityError, path, "missing node id"})
		} else if prev, dup := seen[n.ID]; dup {
			issues = append(issues, Issue{SeverityError, path,
				fmt.Sprintf("duplicate node id %q, first used by nodes[%d]", n.ID, prev)})
		} else {
			seen[n.ID] = i
		}
		if n.Operator == "" {
			issues = append(issues, Issue{SeverityError, path, "missing operator"})
			continue
		}
		if _, ok := operator.Lookup(n.Operator); !ok {
			issues = append(issues, Issue{SeverityError, path,
				fmt.Sprintf("unknown operator %q, choose from: %s", n.Operator, strings.Join(operator.Names(), ", "))})
		}
	}
	if first := cfg.Nodes[0]; first.Operator != "" && !sourceOperators[first.Operator] {
		issues = append(issues, Issue{SeverityWarning, "nodes[0]",
			fmt.Sprintf("first node runs %q against no dataset; flows normally start with a source", first.Operator)})
	}
	return issues
}
