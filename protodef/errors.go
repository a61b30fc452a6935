package protodef

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the root of all errors that indicate a caller supplied
// definitions, schemas, or bytes that cannot be used. Every error returned by
// this package, and by the protoschema package, wraps it. So callers can use
// errors.Is(err, ErrInvalidInput) to distinguish bad input from other
// failures (such as I/O errors while reading a descriptor set).
var ErrInvalidInput = errors.New("invalid input")

var (
	// ErrInvalidDefinition indicates that an element is malformed on its own,
	// such as a field with an invalid name or number.
	ErrInvalidDefinition = fmt.Errorf("%w: invalid definition", ErrInvalidInput)
	// ErrDefinitionConflict indicates that an element conflicts with another
	// element already added to the same parent, such as two fields with the
	// same number or two enum values with the same name.
	ErrDefinitionConflict = fmt.Errorf("%w: definition conflict", ErrInvalidInput)
	// ErrBuilderFinalized indicates an attempt to modify a builder after its
	// Build method has been called.
	ErrBuilderFinalized = fmt.Errorf("%w: builder already built", ErrInvalidInput)
)
