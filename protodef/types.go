package protodef

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Label is the cardinality keyword that precedes a field declaration.
type Label int

// The supported labels. LabelNone means no keyword was given: in a "proto2"
// file that is the same as LabelOptional; in a "proto3" file the field has
// implicit presence.
const (
	LabelNone = Label(iota)
	LabelOptional
	LabelRequired
	LabelRepeated
)

// ParseLabel parses the given keyword. The empty string is accepted and
// yields LabelNone.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "":
		return LabelNone, nil
	case "optional":
		return LabelOptional, nil
	case "required":
		return LabelRequired, nil
	case "repeated":
		return LabelRepeated, nil
	default:
		return 0, fmt.Errorf("%w: unknown label %q", ErrInvalidDefinition, s)
	}
}

func (l Label) String() string {
	switch l {
	case LabelNone:
		return ""
	case LabelOptional:
		return "optional"
	case LabelRequired:
		return "required"
	case LabelRepeated:
		return "repeated"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Cardinality returns the cardinality of fields declared with this label.
func (l Label) Cardinality() protoreflect.Cardinality {
	switch l {
	case LabelRequired:
		return protoreflect.Required
	case LabelRepeated:
		return protoreflect.Repeated
	default:
		return protoreflect.Optional
	}
}

func (l Label) isValid() bool {
	return l >= LabelNone && l <= LabelRepeated
}

// scalarTypes maps the scalar type keywords of the protobuf IDL to their
// descriptor types.
var scalarTypes = map[string]descriptorpb.FieldDescriptorProto_Type{
	"double":   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	"float":    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	"int32":    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	"int64":    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	"uint32":   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	"uint64":   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	"sint32":   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	"sint64":   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	"fixed32":  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	"fixed64":  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	"sfixed32": descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	"sfixed64": descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	"bool":     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	"string":   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	"bytes":    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
}

// ScalarType returns the descriptor type for the given scalar keyword. The
// second return value is false if typeName is not a scalar keyword, in which
// case it must be a reference to a message or enum.
func ScalarType(typeName string) (descriptorpb.FieldDescriptorProto_Type, bool) {
	t, ok := scalarTypes[typeName]
	return t, ok
}

func checkName(kind string, name protoreflect.Name) error {
	if !name.IsValid() {
		return fmt.Errorf("%w: %s name %q is invalid: it must start with an underscore or letter and contain only underscores, letters, and numbers",
			ErrInvalidDefinition, kind, name)
	}
	return nil
}

func checkTypeName(typeName string) error {
	if _, ok := scalarTypes[typeName]; ok {
		return nil
	}
	ref := protoreflect.FullName(strings.TrimPrefix(typeName, "."))
	if !ref.IsValid() {
		return fmt.Errorf("%w: type %q is neither a scalar type nor a valid type reference", ErrInvalidDefinition, typeName)
	}
	return nil
}

func checkFieldNumber(name protoreflect.Name, number protoreflect.FieldNumber) error {
	if !protowire.Number(number).IsValid() {
		return fmt.Errorf("%w: field %q has invalid number %d: it must be between 1 and %d and not between %d and %d",
			ErrInvalidDefinition, name, number, protowire.MaxValidNumber, protowire.FirstReservedNumber, protowire.LastReservedNumber)
	}
	return nil
}
