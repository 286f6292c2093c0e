package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrSchema marks input tables that break the shape the analysis relies on.
	ErrSchema = errors.New("schema error")

	ErrDuplicateUser   = fmt.Errorf("%w: duplicate userid", ErrSchema)
	ErrMissingControl  = fmt.Errorf("%w: control arm not allocated", ErrSchema)
	ErrMissingField    = fmt.Errorf("%w: required field missing", ErrSchema)
	ErrKindMismatch    = fmt.Errorf("%w: value kind does not match column", ErrSchema)
	ErrUnknownColumn   = fmt.Errorf("%w: value for undeclared column", ErrSchema)
	ErrReservedColumn  = fmt.Errorf("%w: reserved column name", ErrSchema)
	ErrDuplicateColumn = fmt.Errorf("%w: duplicate column", ErrSchema)

	// ErrInvalidAttribute is returned when a summed attribute is absent or non-numeric.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrUnsupportedOperation is returned for unknown aggregation or metric kinds.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	ErrNotFound = errors.New("resource not found")
)

// NewSchemaError wraps a schema sentinel with row context
func NewSchemaError(sentinel error, table string, row int, detail string) error {
	return fmt.Errorf("%w (table %s, row %d): %s", sentinel, table, row, detail)
}

// NewInvalidAttributeError reports why an attribute cannot be summed
func NewInvalidAttributeError(attribute, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidAttribute, attribute, reason)
}

// IsSchemaError reports whether err stems from table validation
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}
