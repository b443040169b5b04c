package patient

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation matches every schema-level validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrNotUnique matches uniqueness violations on identifying fields.
	ErrNotUnique = errors.New("value is not unique")
	// ErrNotFound is returned when a patient does not exist.
	ErrNotFound = errors.New("patient not found")
)

// FieldError is implemented by errors that belong to a single field.
type FieldError interface {
	error
	FieldName() string
}

// ValidationError is a schema-level failure surfaced next to a form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string     { return e.Message }
func (e *ValidationError) FieldName() string { return e.Field }
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UniquenessError reports an identifying value already held by another record.
type UniquenessError struct {
	Field   string
	Value   string
	Message string
}

func (e *UniquenessError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %q must be unique", e.Field, e.Value)
}

func (e *UniquenessError) FieldName() string { return e.Field }

func (e *UniquenessError) Is(target error) bool {
	return target == ErrValidation || target == ErrNotUnique
}

// FormatError reports a syntactically invalid value, e.g. an email address.
type FormatError struct {
	Field   string
	Value   string
	Message string
}

func (e *FormatError) Error() string     { return e.Message }
func (e *FormatError) FieldName() string { return e.Field }
func (e *FormatError) Is(target error) bool {
	return target == ErrValidation
}

// MissingDataError reports a value another field depends on.
type MissingDataError struct {
	Field   string
	Message string
}

func (e *MissingDataError) Error() string     { return e.Message }
func (e *MissingDataError) FieldName() string { return e.Field }
func (e *MissingDataError) Is(target error) bool {
	return target == ErrValidation
}

// ValueError is returned by mutators when the input cannot be coerced to the
// field type or violates the field's constraint.
type ValueError struct {
	Field string
	Err   error
}

func (e *ValueError) Error() string     { return fmt.Sprintf("%s: %v", e.Field, e.Err) }
func (e *ValueError) FieldName() string { return e.Field }
func (e *ValueError) Unwrap() error     { return e.Err }

func valueErrorf(field, format string, args ...interface{}) *ValueError {
	return &ValueError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Errors collects the failures of one submission.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, fe := range e {
		msgs = append(msgs, fe.FieldName()+": "+fe.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e Errors) Is(target error) bool {
	for _, fe := range e {
		if errors.Is(fe, target) {
			return true
		}
	}
	return false
}

// Unwrap exposes the individual errors to errors.As.
func (e Errors) Unwrap() []error {
	out := make([]error, len(e))
	for i, fe := range e {
		out[i] = fe
	}
	return out
}

// ForField returns the messages reported for field.
func (e Errors) ForField(field string) []string {
	var msgs []string
	for _, fe := range e {
		if fe.FieldName() == field {
			msgs = append(msgs, fe.Error())
		}
	}
	return msgs
}
