// Package all links every operator package into the registry. Binaries
// import it for side effects.
package all

import (
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator/encode"
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator/export"
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator/ingest"
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator/scale"
	_ "github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operator/typecast"
)
