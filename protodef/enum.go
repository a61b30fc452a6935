package protodef

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// EnumBuilder is a builder used to construct an EnumDefinition.
//
// To create a new EnumBuilder, use NewEnum.
type EnumBuilder struct {
	name       protoreflect.Name
	values     []EnumValueSpec
	names      map[protoreflect.Name]struct{}
	numbers    map[protoreflect.EnumNumber]protoreflect.Name
	allowAlias bool
	built      bool
}

// EnumValueSpec is a single named value of an enum.
type EnumValueSpec struct {
	Name   protoreflect.Name
	Number protoreflect.EnumNumber
}

// NewEnum creates a new EnumBuilder for an enum with the given name. If the
// name is not a valid protobuf identifier, this function panics.
func NewEnum(name protoreflect.Name) *EnumBuilder {
	if err := checkName("enum", name); err != nil {
		panic(err)
	}
	return &EnumBuilder{
		name:    name,
		names:   map[protoreflect.Name]struct{}{},
		numbers: map[protoreflect.EnumNumber]protoreflect.Name{},
	}
}

// Name returns the name of the enum that will be built.
func (eb *EnumBuilder) Name() protoreflect.Name {
	return eb.name
}

// SetAllowAlias sets whether more than one value may share a number. This
// returns the enum builder, for method chaining.
func (eb *EnumBuilder) SetAllowAlias(allow bool) *EnumBuilder {
	eb.allowAlias = allow
	return eb
}

// AddValue adds a value with the given name and number to the enum. If an
// error prevents the value from being added, this method panics. This returns
// the enum builder, for method chaining.
func (eb *EnumBuilder) AddValue(name protoreflect.Name, number protoreflect.EnumNumber) *EnumBuilder {
	if err := eb.TryAddValue(name, number); err != nil {
		panic(err)
	}
	return eb
}

// TryAddValue adds a value with the given name and number to the enum,
// returning any error that prevents the value from being added. Value names
// must be unique. Numbers must also be unique unless aliases are allowed.
func (eb *EnumBuilder) TryAddValue(name protoreflect.Name, number protoreflect.EnumNumber) error {
	if eb.built {
		return fmt.Errorf("%w: cannot add value %q to enum %q", ErrBuilderFinalized, name, eb.name)
	}
	if err := checkName("enum value", name); err != nil {
		return err
	}
	if _, ok := eb.names[name]; ok {
		return fmt.Errorf("%w: enum %q already contains value named %q", ErrDefinitionConflict, eb.name, name)
	}
	if ex, ok := eb.numbers[number]; ok && !eb.allowAlias {
		return fmt.Errorf("%w: enum %q already contains value with number %d: %s", ErrDefinitionConflict, eb.name, number, ex)
	}
	eb.names[name] = struct{}{}
	if _, ok := eb.numbers[number]; !ok {
		eb.numbers[number] = name
	}
	eb.values = append(eb.values, EnumValueSpec{Name: name, Number: number})
	return nil
}

// Build freezes the contents of this builder into an EnumDefinition. An enum
// must have at least one value.
func (eb *EnumBuilder) Build() (*EnumDefinition, error) {
	if eb.built {
		return nil, fmt.Errorf("%w: enum %q", ErrBuilderFinalized, eb.name)
	}
	if len(eb.values) == 0 {
		return nil, fmt.Errorf("%w: enum %q has no values", ErrInvalidDefinition, eb.name)
	}
	if !eb.allowAlias && len(eb.numbers) != len(eb.values) {
		// aliases were added before allow_alias was turned off again
		return nil, fmt.Errorf("%w: enum %q has aliased values but does not allow aliases", ErrInvalidDefinition, eb.name)
	}

	en := &descriptorpb.EnumDescriptorProto{
		Name:  proto.String(string(eb.name)),
		Value: make([]*descriptorpb.EnumValueDescriptorProto, len(eb.values)),
	}
	for i, v := range eb.values {
		en.Value[i] = &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(string(v.Name)),
			Number: proto.Int32(int32(v.Number)),
		}
	}
	if eb.allowAlias {
		en.Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
	}
	eb.built = true
	return &EnumDefinition{proto: en, values: eb.values}, nil
}

// EnumDefinition is an immutable, built enum type. It can be added to a
// schema builder as a top-level enum or to a message builder as a nested
// enum.
type EnumDefinition struct {
	proto  *descriptorpb.EnumDescriptorProto
	values []EnumValueSpec
}

// Name returns the enum's simple name.
func (ed *EnumDefinition) Name() protoreflect.Name {
	return protoreflect.Name(ed.proto.GetName())
}

// Values returns the enum's values, in the order they were added.
func (ed *EnumDefinition) Values() []EnumValueSpec {
	return append([]EnumValueSpec(nil), ed.values...)
}

// AllowAlias returns true if values of this enum may share numbers.
func (ed *EnumDefinition) AllowAlias() bool {
	return ed.proto.GetOptions().GetAllowAlias()
}

// EnumDescriptorProto returns the descriptor proto for this enum. The
// returned value is a copy, so callers may freely modify it.
func (ed *EnumDefinition) EnumDescriptorProto() *descriptorpb.EnumDescriptorProto {
	return proto.Clone(ed.proto).(*descriptorpb.EnumDescriptorProto)
}

func (ed *EnumDefinition) String() string {
	return fmt.Sprintf("enum %s: %v", ed.Name(), ed.proto)
}
