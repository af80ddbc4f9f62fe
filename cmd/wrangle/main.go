// Command wrangle runs a data-prep flow document end to end: sources,
// type inference and casts, encoders and scalers, destinations.
//
// Usage:
//
//	wrangle -flow flows/flights.json [-validate] [-params params.json] [-v]
//
// Credentials come from the environment; a local .env file is loaded
// first so DSNs, AWS settings, and Datadog keys can live next to the
// flow during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/flow"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics/datadog"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics/prompush"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"

	// register every operator with the registry.
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator/all"
)

func main() {
	var (
		flowPath   string
		paramsPath string
		validate   bool
	)
	flag.StringVar(&flowPath, "flow", "flow.json", "flow document JSON path")
	flag.StringVar(&paramsPath, "params", "", "trained-parameter sidecar path (overrides the flow document)")
	flag.BoolVar(&validate, "validate", false, "validate the flow document and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	// A local .env can populate DSNs, AWS settings, and Datadog keys.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	cfg, err := flow.Load(flowPath)
	if err != nil {
		logger.Error("load flow", "err", err)
		os.Exit(1)
	}

	issues := flow.Validate(cfg)
	for _, iss := range issues {
		if iss.Severity == flow.SeverityError {
			logger.Error(iss.Message, "path", iss.Path)
		} else {
			logger.Warn(iss.Message, "path", iss.Path)
		}
	}
	if flow.HasErrors(issues) {
		logger.Error("flow document is invalid", "flow", flowPath)
		os.Exit(1)
	}
	if validate {
		logger.Info("flow document is valid", "flow", flowPath)
		return
	}

	setupMetrics(cfg, logger)

	if paramsPath == "" {
		paramsPath = cfg.TrainedParams
	}

	start := time.Now()
	rows, err := runFlow(context.Background(), cfg, paramsPath, logger)
	if cerr := metrics.Close(); cerr != nil {
		logger.Warn("metrics close", "err", cerr)
	}
	if err != nil {
		logger.Error("run flow", "err", err)
		os.Exit(1)
	}
	logger.Info("flow complete", "rows", rows, "duration", time.Since(start).Truncate(time.Millisecond))
}

func runFlow(ctx context.Context, cfg *flow.Config, paramsPath string, logger *slog.Logger) (int, error) {
	env := &operator.Env{
		Logf: func(format string, args ...any) {
			logger.Info(fmt.Sprintf(format, args...))
		},
		Metrics: metrics.Default(),
	}
	runner := &flow.Runner{Env: env, ParamsPath: paramsPath}
	f, err := runner.Run(ctx, cfg)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, nil
	}
	return f.NumRows(), nil
}

// setupMetrics installs the backend the flow asks for: flow document
// first, then METRICS_BACKEND. Failures fall back to the nop backend so
// a metrics outage never blocks a run.
func setupMetrics(cfg *flow.Config, logger *slog.Logger) {
	backendName := cfg.Metrics.Backend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}

	jobName := cfg.Job
	if jobName == "" {
		jobName = "wrangle_job"
	}

	switch backendName {
	case "prompush":
		gwURL := cfg.Metrics.PushGatewayURL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			logger.Warn("metrics: prompush init failed; using nop", "err", err)
			return
		}
		logger.Info("metrics enabled", "backend", backendName, "url", gwURL, "job", jobName)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			logger.Warn("metrics: datadog init failed; using nop", "err", err)
			return
		}
		logger.Info("metrics enabled", "backend", backendName, "job", jobName)
		metrics.SetBackend(b)

	case "", "none":
		logger.Debug("metrics disabled", "backend", backendName)

	default:
		logger.Warn("metrics: unknown backend; metrics disabled", "backend", backendName)
	}
}
