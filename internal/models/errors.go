package models

import (
	"errors"
	"fmt"
)

// Code identifies why a field was rejected.
type Code string

const (
	CodeMissingRequiredField Code = "missing_required_field"
	CodeTypeMismatch         Code = "type_mismatch"
	CodePatternMismatch      Code = "pattern_mismatch"
	CodeLengthOutOfRange     Code = "length_out_of_range"
	CodeInvalidEnumMember    Code = "invalid_enum_member"
	CodeDuplicateUniqueKey   Code = "duplicate_unique_key"
)

// FieldError is a rejected field of a user record.
type FieldError struct {
	Code     Code   `json:"code"`
	Field    string `json:"field"`
	Value    string `json:"value,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Min      int    `json:"min,omitempty"`
	Max      int    `json:"max,omitempty"`
}

func (e *FieldError) Error() string {
	switch e.Code {
	case CodeMissingRequiredField:
		return fmt.Sprintf("%s: required field is missing", e.Field)
	case CodeTypeMismatch:
		return fmt.Sprintf("%s: expected %s, got %s", e.Field, e.Expected, e.Actual)
	case CodePatternMismatch:
		return fmt.Sprintf("%s: value %q does not match the expected format", e.Field, e.Value)
	case CodeLengthOutOfRange:
		return fmt.Sprintf("%s: length must be between %d and %d", e.Field, e.Min, e.Max)
	case CodeInvalidEnumMember:
		return fmt.Sprintf("%s: %q is not an accepted value", e.Field, e.Value)
	case CodeDuplicateUniqueKey:
		return fmt.Sprintf("%s: value already exists", e.Field)
	}
	return fmt.Sprintf("%s: invalid", e.Field)
}

func MissingRequiredField(field string) *FieldError {
	return &FieldError{Code: CodeMissingRequiredField, Field: field}
}

func TypeMismatch(field, expected, actual string) *FieldError {
	return &FieldError{Code: CodeTypeMismatch, Field: field, Expected: expected, Actual: actual}
}

func PatternMismatch(field, value string) *FieldError {
	return &FieldError{Code: CodePatternMismatch, Field: field, Value: value}
}

func LengthOutOfRange(field string, min, max int) *FieldError {
	return &FieldError{Code: CodeLengthOutOfRange, Field: field, Min: min, Max: max}
}

func InvalidEnumMember(field, value string) *FieldError {
	return &FieldError{Code: CodeInvalidEnumMember, Field: field, Value: value}
}

func DuplicateUniqueKey(field string) *FieldError {
	return &FieldError{Code: CodeDuplicateUniqueKey, Field: field}
}

// ErrMalformedDocument is returned when an attribute document is not valid JSON.
var ErrMalformedDocument = errors.New("malformed attribute document")

// AsFieldError returns the FieldError in err's chain, if any.
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
