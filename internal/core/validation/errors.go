package validation

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

// Violation kinds. Each is a sentinel so callers can test a ValidationError
// with errors.Is.
var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidEnum          = errors.New("invalid enum value")
	ErrOutOfRange           = errors.New("value out of range")
	ErrInvalidFormat        = errors.New("invalid format")
)

// Violation is a single failed rule.
type Violation struct {
	Kind    error
	Field   string // configuration key, e.g. "DISK_SIZE_GB"
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationError reports every rule a configuration failed. It is returned
// before any derivation runs, so a plan is either complete or absent.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	switch len(e.Violations) {
	case 0:
		return "invalid configuration"
	case 1:
		return "invalid configuration: " + e.Violations[0].String()
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("invalid configuration (%d problems): %s", len(e.Violations), strings.Join(msgs, "; "))
}

// Is reports whether any violation has the target kind.
func (e *ValidationError) Is(target error) bool {
	for _, v := range e.Violations {
		if v.Kind == target {
			return true
		}
	}
	return false
}

// Fields returns the configuration keys of violations with the given kind.
func (e *ValidationError) Fields(kind error) []string {
	var fields []string
	for _, v := range e.Violations {
		if v.Kind == kind {
			fields = append(fields, v.Field)
		}
	}
	return fields
}

func (e *ValidationError) add(kind error, field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{
		Kind:    kind,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

func (e *ValidationError) orNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}
