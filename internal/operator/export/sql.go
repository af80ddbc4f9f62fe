package export

import (
	"context"
	"fmt"
	"os"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/metrics"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/trained"

	// Database loaders register themselves with the sink registry.
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink/mssql"
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink/postgres"
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink/sqlite"
)

func init() {
	operator.Register("sql_destination", sqlDestination)
}

const sqlWriteFailure = "An error occurred while writing rows to the database"

func sqlDestination(ctx context.Context, env *operator.Env, f *frame.Frame, params operator.Values, tp trained.Params) (*operator.Result, error) {
	if err := operator.RequireFrame(f); err != nil {
		return nil, err
	}
	kind, err := params.RequireString("kind", "kind")
	if err != nil {
		return nil, err
	}
	kinds := sink.Kinds()
	if !contains(kinds, kind) {
		return nil, operr.Newf(operr.InvalidParameterValue,
			"illegal parameter value: kind expected to be in %v, but given %s", kinds, kind)
	}
	table, err := params.RequireString("table", "table")
	if err != nil {
		return nil, err
	}
	dsn, err := resolveDSN(params)
	if err != nil {
		return nil, err
	}
	createTable, err := params.Bool("create_table", "create_table", true)
	if err != nil {
		return nil, err
	}

	loader, err := sink.New(ctx, sink.Config{Kind: kind, DSN: dsn})
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, sqlWriteFailure)
	}
	defer loader.Close()

	if createTable {
		if err := loader.EnsureTable(ctx, table, f); err != nil {
			return nil, operr.Wrap(operr.KindUnknown, err, sqlWriteFailure)
		}
	}
	n, err := loader.InsertRows(ctx, table, f)
	if err != nil {
		return nil, operr.Wrap(operr.KindUnknown, err, sqlWriteFailure)
	}

	env.Count(metrics.RowsTotal, float64(n), metrics.Labels{"kind": "written"})
	env.Printf("wrote %d rows to %s table %s", n, kind, table)
	return &operator.Result{Frame: f, Trained: tp, Stdout: fmt.Sprintf("database output table: %s", table)}, nil
}

// resolveDSN prefers an inline dsn; dsn_env names an environment
// variable to read instead, keeping credentials out of flow files.
func resolveDSN(params operator.Values) (string, error) {
	dsn, err := params.String("dsn", "dsn", "")
	if err != nil {
		return "", err
	}
	if dsn != "" {
		return dsn, nil
	}
	name, err := params.String("dsn_env", "dsn_env", "")
	if err != nil {
		return "", err
	}
	if name != "" {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
		return "", operr.Newf(operr.InvalidParameterValue,
			"invalid value provided for 'dsn_env': environment variable %s is not set", name)
	}
	return "", operr.New(operr.MissingRequiredParameter, "missing required parameter dsn")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
