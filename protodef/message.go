package protodef

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// MessageBuilder is a builder used to construct a MessageDefinition. A
// message builder can define nested messages and enums and oneofs in addition
// to the message's fields.
//
// To create a new MessageBuilder, use NewMessage.
type MessageBuilder struct {
	name protoreflect.Name

	fields         []FieldSpec
	oneofs         []*OneofBuilder
	nestedMessages []*MessageDefinition
	nestedEnums    []*EnumDefinition

	// symbols holds the names of all elements defined in the message's scope
	// (fields, oneofs, and nested types), mapped to the kind of element.
	symbols   map[protoreflect.Name]string
	fieldTags map[protoreflect.FieldNumber]protoreflect.Name
	built     bool
}

// NewMessage creates a new MessageBuilder for a message with the given name.
// If the name is not a valid protobuf identifier, this function panics.
func NewMessage(name protoreflect.Name) *MessageBuilder {
	if err := checkName("message", name); err != nil {
		panic(err)
	}
	return &MessageBuilder{
		name:      name,
		symbols:   map[protoreflect.Name]string{},
		fieldTags: map[protoreflect.FieldNumber]protoreflect.Name{},
	}
}

// Name returns the name of the message that will be built.
func (mb *MessageBuilder) Name() protoreflect.Name {
	return mb.name
}

func (mb *MessageBuilder) checkMutable(what string) error {
	if mb.built {
		return fmt.Errorf("%w: cannot add %s to message %q", ErrBuilderFinalized, what, mb.name)
	}
	return nil
}

func (mb *MessageBuilder) addSymbol(kind string, name protoreflect.Name) error {
	if ex, ok := mb.symbols[name]; ok {
		return fmt.Errorf("%w: message %q already contains %s named %q", ErrDefinitionConflict, mb.name, ex, name)
	}
	mb.symbols[name] = kind
	return nil
}

// AddField adds a field with the given label, type, name, and number to this
// message. If an error prevents the field from being added, this method
// panics. This returns the message builder, for method chaining.
func (mb *MessageBuilder) AddField(label Label, typeName string, name protoreflect.Name, number protoreflect.FieldNumber) *MessageBuilder {
	if err := mb.TryAddField(FieldSpec{Label: label, TypeName: typeName, Name: name, Number: number}); err != nil {
		panic(err)
	}
	return mb
}

// AddFieldWithDefault is like AddField except that the new field also has
// the given default value.
func (mb *MessageBuilder) AddFieldWithDefault(label Label, typeName string, name protoreflect.Name, number protoreflect.FieldNumber, defaultValue string) *MessageBuilder {
	spec := FieldSpec{Label: label, TypeName: typeName, Name: name, Number: number, DefaultValue: defaultValue}
	if err := mb.TryAddField(spec); err != nil {
		panic(err)
	}
	return mb
}

// TryAddField adds the given field to this message, returning any error that
// prevents the field from being added. An error wrapping ErrDefinitionConflict
// is returned if the field's number is already used by another field or if
// its name is already used by another element in the message.
func (mb *MessageBuilder) TryAddField(spec FieldSpec) error {
	spec.OneofIndex = -1
	return mb.addField(spec)
}

func (mb *MessageBuilder) addField(spec FieldSpec) error {
	if err := mb.checkMutable(fmt.Sprintf("field %q", spec.Name)); err != nil {
		return err
	}
	if err := spec.validate(); err != nil {
		return fmt.Errorf("message %q: %w", mb.name, err)
	}
	if ex, ok := mb.fieldTags[spec.Number]; ok {
		return fmt.Errorf("%w: message %q already contains field with number %d: %s", ErrDefinitionConflict, mb.name, spec.Number, ex)
	}
	if err := mb.addSymbol("field", spec.Name); err != nil {
		return err
	}
	mb.fieldTags[spec.Number] = spec.Name
	mb.fields = append(mb.fields, spec)
	return nil
}

// AddOneof opens a new oneof group with the given name and returns its
// builder. Subsequent fields added via the returned builder belong to the
// group. If the oneof cannot be added, this method panics.
func (mb *MessageBuilder) AddOneof(name protoreflect.Name) *OneofBuilder {
	ob, err := mb.TryAddOneof(name)
	if err != nil {
		panic(err)
	}
	return ob
}

// TryAddOneof opens a new oneof group with the given name, returning any
// error that prevents the group from being added (such as a name collision
// with another element of the message).
func (mb *MessageBuilder) TryAddOneof(name protoreflect.Name) (*OneofBuilder, error) {
	if err := mb.checkMutable(fmt.Sprintf("oneof %q", name)); err != nil {
		return nil, err
	}
	if err := checkName("oneof", name); err != nil {
		return nil, err
	}
	if err := mb.addSymbol("oneof", name); err != nil {
		return nil, err
	}
	ob := &OneofBuilder{name: name, index: len(mb.oneofs), parent: mb}
	mb.oneofs = append(mb.oneofs, ob)
	return ob, nil
}

// AddMessageDefinition adds the given, already built, message as a nested
// child of this message. If an error prevents the message from being added,
// this method panics. This returns the message builder, for method chaining.
func (mb *MessageBuilder) AddMessageDefinition(md *MessageDefinition) *MessageBuilder {
	if err := mb.TryAddMessageDefinition(md); err != nil {
		panic(err)
	}
	return mb
}

// TryAddMessageDefinition adds the given message as a nested child of this
// message, returning any error that prevents the message from being added.
func (mb *MessageBuilder) TryAddMessageDefinition(md *MessageDefinition) error {
	if err := mb.checkMutable(fmt.Sprintf("nested message %q", md.Name())); err != nil {
		return err
	}
	if err := mb.addSymbol("nested message", md.Name()); err != nil {
		return err
	}
	mb.nestedMessages = append(mb.nestedMessages, md)
	return nil
}

// AddEnumDefinition adds the given, already built, enum as a nested child of
// this message. If an error prevents the enum from being added, this method
// panics. This returns the message builder, for method chaining.
func (mb *MessageBuilder) AddEnumDefinition(ed *EnumDefinition) *MessageBuilder {
	if err := mb.TryAddEnumDefinition(ed); err != nil {
		panic(err)
	}
	return mb
}

// TryAddEnumDefinition adds the given enum as a nested child of this message,
// returning any error that prevents the enum from being added.
func (mb *MessageBuilder) TryAddEnumDefinition(ed *EnumDefinition) error {
	if err := mb.checkMutable(fmt.Sprintf("nested enum %q", ed.Name())); err != nil {
		return err
	}
	if err := mb.addSymbol("nested enum", ed.Name()); err != nil {
		return err
	}
	mb.nestedEnums = append(mb.nestedEnums, ed)
	return nil
}

// Build freezes the contents of this builder into a MessageDefinition. After
// this is called, the builder (and any oneof builders it created) can no
// longer be modified.
func (mb *MessageBuilder) Build() (*MessageDefinition, error) {
	if mb.built {
		return nil, fmt.Errorf("%w: message %q", ErrBuilderFinalized, mb.name)
	}
	oneofs := make([]OneofDefinition, len(mb.oneofs))
	for i, ob := range mb.oneofs {
		oneofs[i].Name = ob.name
	}
	for _, fs := range mb.fields {
		if fs.OneofIndex >= 0 {
			oneofs[fs.OneofIndex].Fields = append(oneofs[fs.OneofIndex].Fields, fs)
		}
	}
	for _, ood := range oneofs {
		if len(ood.Fields) == 0 {
			return nil, fmt.Errorf("%w: oneof %q in message %q has no fields", ErrInvalidDefinition, ood.Name, mb.name)
		}
	}

	msg := &descriptorpb.DescriptorProto{
		Name:       proto.String(string(mb.name)),
		Field:      make([]*descriptorpb.FieldDescriptorProto, len(mb.fields)),
		OneofDecl:  make([]*descriptorpb.OneofDescriptorProto, len(oneofs)),
		NestedType: make([]*descriptorpb.DescriptorProto, len(mb.nestedMessages)),
		EnumType:   make([]*descriptorpb.EnumDescriptorProto, len(mb.nestedEnums)),
	}
	for i, fs := range mb.fields {
		msg.Field[i] = fs.toProto()
	}
	for i, ood := range oneofs {
		msg.OneofDecl[i] = &descriptorpb.OneofDescriptorProto{Name: proto.String(string(ood.Name))}
	}
	for i, nmd := range mb.nestedMessages {
		msg.NestedType[i] = nmd.DescriptorProto()
	}
	for i, ned := range mb.nestedEnums {
		msg.EnumType[i] = ned.EnumDescriptorProto()
	}

	mb.built = true
	for _, ob := range mb.oneofs {
		ob.parent = nil
	}
	return &MessageDefinition{
		proto:          msg,
		fields:         mb.fields,
		oneofs:         oneofs,
		nestedMessages: mb.nestedMessages,
		nestedEnums:    mb.nestedEnums,
	}, nil
}

// MessageDefinition is an immutable, built message type. It can be added to a
// schema builder as a top-level message or to a message builder as a nested
// message.
type MessageDefinition struct {
	proto          *descriptorpb.DescriptorProto
	fields         []FieldSpec
	oneofs         []OneofDefinition
	nestedMessages []*MessageDefinition
	nestedEnums    []*EnumDefinition
}

// Name returns the message's simple name.
func (md *MessageDefinition) Name() protoreflect.Name {
	return protoreflect.Name(md.proto.GetName())
}

// Fields returns all of the message's fields, in the order they were added.
// This includes the fields of oneofs.
func (md *MessageDefinition) Fields() []FieldSpec {
	return append([]FieldSpec(nil), md.fields...)
}

// Oneofs returns the message's oneofs, in the order they were added.
func (md *MessageDefinition) Oneofs() []OneofDefinition {
	ret := make([]OneofDefinition, len(md.oneofs))
	for i, ood := range md.oneofs {
		ret[i] = OneofDefinition{Name: ood.Name, Fields: append([]FieldSpec(nil), ood.Fields...)}
	}
	return ret
}

// NestedMessages returns the messages nested inside this one.
func (md *MessageDefinition) NestedMessages() []*MessageDefinition {
	return append([]*MessageDefinition(nil), md.nestedMessages...)
}

// NestedEnums returns the enums nested inside this message.
func (md *MessageDefinition) NestedEnums() []*EnumDefinition {
	return append([]*EnumDefinition(nil), md.nestedEnums...)
}

// DescriptorProto returns the descriptor proto for this message. Type
// references in its fields are exactly as given to the builder; they are
// resolved only when the message is part of a built schema. The returned
// value is a copy, so callers may freely modify it.
func (md *MessageDefinition) DescriptorProto() *descriptorpb.DescriptorProto {
	return proto.Clone(md.proto).(*descriptorpb.DescriptorProto)
}

func (md *MessageDefinition) String() string {
	return fmt.Sprintf("message %s: %v", md.Name(), md.proto)
}
