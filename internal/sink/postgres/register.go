package postgres

import "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/sink"

func init() {
	// registers the database destination factory
	sink.Register("postgres", New)
}
