package models

import "fmt"

// ValidationError reports malformed input such as an unknown preference
// category or an invalid workload name
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}
