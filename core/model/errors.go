package model

import "fmt"

// ValidationError reports malformed or constraint-violating input. It is
// surfaced to the caller before any modeling begins.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
