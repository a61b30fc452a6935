package protodef

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// FieldSpec describes one field, as supplied by the caller.
type FieldSpec struct {
	// Label is the field's cardinality keyword. Fields in a oneof never have
	// a label.
	Label Label
	// TypeName is either a scalar type keyword, like "int32" or "string", or
	// a reference to a message or enum type.
	TypeName string
	Name     protoreflect.Name
	Number   protoreflect.FieldNumber
	// DefaultValue is the field's default, in the same string form used in
	// the default_value field of a google.protobuf.FieldDescriptorProto. It
	// is ignored when empty. Default values are only allowed in "proto2"
	// files.
	DefaultValue string
	// OneofIndex is the index of the enclosing oneof in the message's list
	// of oneofs, or -1 if the field is not in a oneof. It is assigned by the
	// message builder and ignored when a spec is passed to TryAddField.
	OneofIndex int
}

// IsScalar returns true if the field's type is a scalar keyword (as opposed
// to a reference to a message or enum).
func (fs FieldSpec) IsScalar() bool {
	_, ok := scalarTypes[fs.TypeName]
	return ok
}

func (fs FieldSpec) validate() error {
	if err := checkName("field", fs.Name); err != nil {
		return err
	}
	if err := checkFieldNumber(fs.Name, fs.Number); err != nil {
		return err
	}
	if !fs.Label.isValid() {
		return fmt.Errorf("%w: field %q has unknown label %v", ErrInvalidDefinition, fs.Name, fs.Label)
	}
	if err := checkTypeName(fs.TypeName); err != nil {
		return fmt.Errorf("field %q: %w", fs.Name, err)
	}
	if fs.DefaultValue != "" && fs.Label == LabelRepeated {
		return fmt.Errorf("%w: repeated field %q cannot have a default value", ErrInvalidDefinition, fs.Name)
	}
	return nil
}

func (fs FieldSpec) toProto() *descriptorpb.FieldDescriptorProto {
	fld := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(string(fs.Name)),
		Number: proto.Int32(int32(fs.Number)),
		Label:  descriptorpb.FieldDescriptorProto_Label(fs.Label.Cardinality()).Enum(),
	}
	if t, ok := scalarTypes[fs.TypeName]; ok {
		fld.Type = t.Enum()
	} else {
		// Left unqualified and without a type: both are filled in when the
		// enclosing schema resolves the reference.
		fld.TypeName = proto.String(fs.TypeName)
	}
	if fs.DefaultValue != "" {
		fld.DefaultValue = proto.String(fs.DefaultValue)
	}
	if fs.OneofIndex >= 0 {
		fld.OneofIndex = proto.Int32(int32(fs.OneofIndex))
	}
	return fld
}

// OneofBuilder opens a oneof group inside a message builder. Fields added to
// it are added to the enclosing message, as members of the group. Use Parent
// to get back to the message builder once the group is complete.
//
// To create a new OneofBuilder, use MessageBuilder.AddOneof.
type OneofBuilder struct {
	name  protoreflect.Name
	index int
	// parent is cleared when the message is built, which also makes this
	// builder inert.
	parent *MessageBuilder
}

// Name returns the name of the oneof.
func (ob *OneofBuilder) Name() protoreflect.Name {
	return ob.name
}

// Parent returns the message builder that this oneof belongs to. This ends
// the scope of the oneof in a chain of fluent calls. It returns nil once the
// message has been built.
func (ob *OneofBuilder) Parent() *MessageBuilder {
	return ob.parent
}

// AddField adds a field with the given type, name, and number to the oneof.
// Oneof fields have no label. If the field cannot be added, this method
// panics. This returns the oneof builder, for method chaining.
func (ob *OneofBuilder) AddField(typeName string, name protoreflect.Name, number protoreflect.FieldNumber) *OneofBuilder {
	if err := ob.TryAddField(typeName, name, number); err != nil {
		panic(err)
	}
	return ob
}

// AddFieldWithDefault is like AddField except that the new field also has
// the given default value.
func (ob *OneofBuilder) AddFieldWithDefault(typeName string, name protoreflect.Name, number protoreflect.FieldNumber, defaultValue string) *OneofBuilder {
	err := ob.TryAddFieldSpec(FieldSpec{TypeName: typeName, Name: name, Number: number, DefaultValue: defaultValue})
	if err != nil {
		panic(err)
	}
	return ob
}

// TryAddField adds a field with the given type, name, and number to the oneof,
// returning any error that prevents the field from being added (such as its
// name or number colliding with another element of the message).
func (ob *OneofBuilder) TryAddField(typeName string, name protoreflect.Name, number protoreflect.FieldNumber) error {
	return ob.TryAddFieldSpec(FieldSpec{TypeName: typeName, Name: name, Number: number})
}

// TryAddFieldSpec adds the given field to the oneof. An error is returned if
// the spec has a label, since oneof members can be neither optional, required,
// nor repeated.
func (ob *OneofBuilder) TryAddFieldSpec(spec FieldSpec) error {
	if ob.parent == nil {
		return fmt.Errorf("%w: cannot add field %q to oneof %q", ErrBuilderFinalized, spec.Name, ob.name)
	}
	if spec.Label != LabelNone {
		return fmt.Errorf("%w: field %q in oneof %q cannot be %s", ErrDefinitionConflict, spec.Name, ob.name, spec.Label)
	}
	spec.OneofIndex = ob.index
	return ob.parent.addField(spec)
}

// OneofDefinition is a built oneof: its name and the fields that belong to it.
type OneofDefinition struct {
	Name   protoreflect.Name
	Fields []FieldSpec
}
