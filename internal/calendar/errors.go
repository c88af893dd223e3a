package calendar

import "fmt"

// ValidationError is returned when a value cannot be constructed because one
// of its components is out of range. It is the only error produced by the
// date arithmetic in this module; everything downstream of construction
// assumes valid inputs.
type ValidationError struct {
	// Type is the logical name of the value being built (e.g. "Date").
	Type string

	// Field names the offending component. Empty when the whole value is bad.
	Field string

	// Reason is a short human-readable explanation.
	Reason string

	// Value holds the rejected input, if any.
	Value any
}

// Error implements the error interface.
//
//	"invalid Date.Month: must be between 1 and 12 (got 13)"
//	"invalid Date: unrecognized format (got "31/01/2024")"
func (e *ValidationError) Error() string {
	name := e.Type
	if e.Field != "" {
		name += "." + e.Field
	}
	msg := "invalid " + name + ": " + e.Reason
	if e.Value != nil {
		msg += fmt.Sprintf(" (got %v)", e.Value)
	}
	return msg
}
