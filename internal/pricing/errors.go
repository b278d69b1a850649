package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is the sentinel wrapped by every ValidationError.
	ErrValidation = errors.New("pricing: invalid specification")
	// ErrDataUnavailable is the sentinel wrapped by every DataUnavailableError.
	ErrDataUnavailable = errors.New("pricing: data unavailable")
	// ErrCalculationIntegrity signals a broken internal invariant. It is never expected in correct code.
	ErrCalculationIntegrity = errors.New("pricing: calculation integrity violated")
	// ErrInvalidDimensions is reported when a dimension axis is not strictly positive.
	ErrInvalidDimensions = errors.New("pricing: dimensions must be positive")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError is returned when a part specification or policy value is malformed.
type ValidationError struct {
	Fields []FieldError
	cause  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

// Unwrap exposes both the sentinel and a more specific cause, if any.
func (e *ValidationError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.cause != nil {
		return []error{ErrValidation, e.cause}
	}
	return []error{ErrValidation}
}

func newValidationError(field, rule, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Message: message}}}
}

// DataUnavailableError is returned when the cost or config snapshot lacks an entry the specification needs.
type DataUnavailableError struct {
	Kind string
	Key  string
}

func (e *DataUnavailableError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s %q", ErrDataUnavailable.Error(), e.Kind, e.Key)
}

// Unwrap allows errors.Is(err, ErrDataUnavailable).
func (e *DataUnavailableError) Unwrap() error { return ErrDataUnavailable }

func missing(kind, key string) *DataUnavailableError {
	return &DataUnavailableError{Kind: kind, Key: key}
}

// CalculationIntegrityError reports an internal invariant violation.
type CalculationIntegrityError struct {
	Stage  string
	Detail string
}

func (e *CalculationIntegrityError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %s", ErrCalculationIntegrity.Error(), e.Stage, e.Detail)
}

// Unwrap allows errors.Is(err, ErrCalculationIntegrity).
func (e *CalculationIntegrityError) Unwrap() error { return ErrCalculationIntegrity }

func integrity(stage, format string, args ...any) *CalculationIntegrityError {
	return &CalculationIntegrityError{Stage: stage, Detail: fmt.Sprintf(format, args...)}
}
