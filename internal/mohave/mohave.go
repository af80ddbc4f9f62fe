// Package mohave defines the logical type system layered over the frame's
// physical representation.
//
// A logical type narrows what a column's physical values mean: date and
// datetime both live in time.Time cells, while object is an opt-out that
// leaves a column's physical form untouched.
package mohave

import (
	"strings"

	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/frame"
	"github.com/jimmy-nguyen-data-science/predicting-flight-delays/internal/operr"
)

// DataType is a logical column type. The string value is the wire tag
// used in schemas and node parameters.
type DataType string

const (
	Bool     DataType = "bool"
	Date     DataType = "date"
	Datetime DataType = "datetime"
	Float    DataType = "float"
	Long     DataType = "long"
	String   DataType = "string"
	Array    DataType = "array"
	Struct   DataType = "struct"
	Object   DataType = "object"
)

// All lists every logical type in a stable order.
func All() []DataType {
	return []DataType{Bool, Date, Datetime, Float, Long, String, Array, Struct, Object}
}

// Valid reports whether d is a known logical type.
func (d DataType) Valid() bool {
	switch d {
	case Bool, Date, Datetime, Float, Long, String, Array, Struct, Object:
		return true
	}
	return false
}

// Parse maps a wire tag to its DataType.
func Parse(s string) (DataType, error) {
	d := DataType(s)
	if !d.Valid() {
		names := make([]string, 0, 9)
		for _, t := range All() {
			names = append(names, string(t))
		}
		return "", operr.Newf(operr.InvalidParameterValue,
			"unknown data type %q, expected one of %s", s, strings.Join(names, ", "))
	}
	return d, nil
}

// PhysicalType returns the frame representation backing d. ok is false for
// Object, which deliberately has no single physical form.
func (d DataType) PhysicalType() (frame.Type, bool) {
	switch d {
	case Bool:
		return frame.Bool, true
	case Date:
		return frame.Date, true
	case Datetime:
		return frame.Timestamp, true
	case Float:
		return frame.Double, true
	case Long:
		return frame.Long, true
	case String:
		return frame.String, true
	case Array:
		return frame.Array, true
	case Struct:
		return frame.Struct, true
	}
	return 0, false
}

// FromPhysical maps a physical column type to the logical type assigned to
// columns that skip value-level inference. frame.Date has no direct
// logical mapping and comes back as Object.
func FromPhysical(t frame.Type) DataType {
	switch t {
	case frame.Long:
		return Long
	case frame.Double:
		return Float
	case frame.String:
		return String
	case frame.Bool:
		return Bool
	case frame.Timestamp:
		return Datetime
	case frame.Array:
		return Array
	case frame.Struct:
		return Struct
	}
	return Object
}
