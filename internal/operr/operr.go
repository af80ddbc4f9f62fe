// Package operr classifies the failures data-prep operators report.
//
// Every error an operator surfaces carries a Kind so callers can tell
// configuration mistakes the user can fix apart from corrupted stored
// state and internal faults. Errors wrap an optional cause and take part
// in errors.Is / errors.As chains.
package operr

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of an operator error.
type Kind int

const (
	// KindUnknown marks errors that did not originate from an operator.
	KindUnknown Kind = iota
	// MissingRequiredParameter reports a required node parameter that was absent.
	MissingRequiredParameter
	// InvalidParameterValue reports a node parameter that failed validation.
	InvalidParameterValue
	// ColumnNotFound reports a referenced column missing from the dataset.
	ColumnNotFound
	// UnsupportedColumnType reports an operation applied to a column type it cannot handle.
	UnsupportedColumnType
	// SchemaMismatch reports a stored schema that does not cover the dataset exactly.
	SchemaMismatch
	// ModelFitFailure reports a failure while fitting fresh operator state.
	ModelFitFailure
	// StoredModelCorrupt reports persisted operator state that can no longer be applied.
	StoredModelCorrupt
)

var kindNames = [...]string{
	KindUnknown:              "unknown",
	MissingRequiredParameter: "missing_required_parameter",
	InvalidParameterValue:    "invalid_parameter_value",
	ColumnNotFound:           "column_not_found",
	UnsupportedColumnType:    "unsupported_column_type",
	SchemaMismatch:           "schema_mismatch",
	ModelFitFailure:          "model_fit_failure",
	StoredModelCorrupt:       "stored_model_corrupt",
}

// String returns the stable name used in logs and metrics labels.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is an operator failure tagged with its Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of kind k with a fixed message.
func New(k Kind, msg string) error {
	return &Error{Kind: k, Msg: msg}
}

// Newf returns an error of kind k with a formatted message.
func Newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags cause err with kind k, prefixing msg.
func Wrap(k Kind, err error, msg string) error {
	return &Error{Kind: k, Msg: msg, Err: err}
}

// Wrapf tags cause err with kind k, prefixing a formatted message.
func Wrapf(k Kind, err error, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first operator error in err's chain, or
// KindUnknown when the chain holds none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains an operator error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
