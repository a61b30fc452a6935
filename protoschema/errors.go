package protoschema

import (
	"fmt"

	"github.com/jhump/protodynamic/protodef"
)

// ErrInvalidInput is the root of all errors caused by bad input. It is the
// same value as protodef.ErrInvalidInput.
var ErrInvalidInput = protodef.ErrInvalidInput

// ErrInvalidDefinition is the same value as protodef.ErrInvalidDefinition. It
// is returned when the descriptors in a schema cannot be linked, for example
// because a proto3 file uses default values or required fields.
var ErrInvalidDefinition = protodef.ErrInvalidDefinition

var (
	// ErrMergeConflict indicates that two files in a schema are incompatible:
	// either they have the same name but different content, or they define
	// elements with the same fully-qualified name.
	ErrMergeConflict = fmt.Errorf("%w: merge conflict", ErrInvalidInput)
	// ErrUnresolvedDependency indicates that a file imports a file that is
	// not part of the schema or that a type reference could not be resolved.
	ErrUnresolvedDependency = fmt.Errorf("%w: unresolved dependency", ErrInvalidInput)
	// ErrMalformedDescriptorSet indicates bytes that are not a valid encoding
	// of a google.protobuf.FileDescriptorSet.
	ErrMalformedDescriptorSet = fmt.Errorf("%w: malformed descriptor set", ErrInvalidInput)
)
