package protoresolve

import (
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/dynamicpb"
)

// TypeResolver can resolve message, enum, and extension types. It is
// satisfied by *protoregistry.Types, and it can be used as the Resolver in
// the unmarshal and marshal options of the proto, protojson, and prototext
// packages.
type TypeResolver interface {
	FindMessageByName(message protoreflect.FullName) (protoreflect.MessageType, error)
	FindMessageByURL(url string) (protoreflect.MessageType, error)
	FindExtensionByName(field protoreflect.FullName) (protoreflect.ExtensionType, error)
	FindExtensionByNumber(message protoreflect.FullName, field protoreflect.FieldNumber) (protoreflect.ExtensionType, error)
	FindEnumByName(enum protoreflect.FullName) (protoreflect.EnumType, error)
}

// TypePool is a type resolver that allows for iteration over all known types.
type TypePool interface {
	TypeResolver
	RangeMessages(fn func(protoreflect.MessageType) bool)
	RangeEnums(fn func(protoreflect.EnumType) bool)
	RangeExtensionsByMessage(message protoreflect.FullName, fn func(protoreflect.ExtensionType) bool)
}

var _ TypeResolver = (*protoregistry.Types)(nil)
var _ TypePool = (*typesFromDescriptorPool)(nil)

// ExtensionType returns a [protoreflect.ExtensionType] for the given descriptor.
// If the given descriptor implements [protoreflect.ExtensionTypeDescriptor], then
// the corresponding type is returned. Otherwise, a dynamic extension type is
// returned.
func ExtensionType(ext protoreflect.ExtensionDescriptor) protoreflect.ExtensionType {
	if xtd, ok := ext.(protoreflect.ExtensionTypeDescriptor); ok {
		return xtd.Type()
	}
	return dynamicpb.NewExtensionType(ext)
}

// TypeNameFromURL extracts the fully-qualified type name from the given URL.
// The URL is one that could be used with a google.protobuf.Any message. The
// last path component is the fully-qualified name.
func TypeNameFromURL(url string) protoreflect.FullName {
	pos := strings.LastIndexByte(url, '/')
	return protoreflect.FullName(url[pos+1:])
}

// TypesFromDescriptorPool adapts a descriptor pool into a pool that returns
// dynamic types.
func TypesFromDescriptorPool(pool DescriptorPool) TypePool {
	return &typesFromDescriptorPool{pool: pool}
}

type typesFromDescriptorPool struct {
	pool DescriptorPool
}

func (t *typesFromDescriptorPool) FindExtensionByName(field protoreflect.FullName) (protoreflect.ExtensionType, error) {
	ext, err := FindExtensionByName(t.pool, field)
	if err != nil {
		return nil, err
	}
	return ExtensionType(ext), nil
}

func (t *typesFromDescriptorPool) FindExtensionByNumber(message protoreflect.FullName, field protoreflect.FieldNumber) (protoreflect.ExtensionType, error) {
	ext := FindExtensionByNumber(t.pool, message, field)
	if ext == nil {
		return nil, protoregistry.NotFound
	}
	return ExtensionType(ext), nil
}

func (t *typesFromDescriptorPool) FindMessageByName(message protoreflect.FullName) (protoreflect.MessageType, error) {
	msg, err := FindMessageByName(t.pool, message)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewMessageType(msg), nil
}

func (t *typesFromDescriptorPool) FindMessageByURL(url string) (protoreflect.MessageType, error) {
	return t.FindMessageByName(TypeNameFromURL(url))
}

func (t *typesFromDescriptorPool) FindEnumByName(enum protoreflect.FullName) (protoreflect.EnumType, error) {
	en, err := FindEnumByName(t.pool, enum)
	if err != nil {
		return nil, err
	}
	return dynamicpb.NewEnumType(en), nil
}

func (t *typesFromDescriptorPool) RangeMessages(fn func(protoreflect.MessageType) bool) {
	walkTypes(t.pool, func(md protoreflect.MessageDescriptor) bool {
		return fn(dynamicpb.NewMessageType(md))
	}, nil)
}

func (t *typesFromDescriptorPool) RangeEnums(fn func(protoreflect.EnumType) bool) {
	walkTypes(t.pool, nil, func(ed protoreflect.EnumDescriptor) bool {
		return fn(dynamicpb.NewEnumType(ed))
	})
}

// walkTypes visits every message and enum in the pool, in file order, each
// message before the types nested inside it. Either callback may be nil. The
// walk stops as soon as a callback returns false.
func walkTypes(pool DescriptorPool, onMessage func(protoreflect.MessageDescriptor) bool, onEnum func(protoreflect.EnumDescriptor) bool) {
	var walk func(container TypeContainer) bool
	walk = func(container TypeContainer) bool {
		if onEnum != nil {
			for i, enums := 0, container.Enums(); i < enums.Len(); i++ {
				if !onEnum(enums.Get(i)) {
					return false
				}
			}
		}
		for i, msgs := 0, container.Messages(); i < msgs.Len(); i++ {
			md := msgs.Get(i)
			if onMessage != nil && !onMessage(md) {
				return false
			}
			if !walk(md) {
				return false
			}
		}
		return true
	}
	pool.RangeFiles(func(file protoreflect.FileDescriptor) bool {
		return walk(file)
	})
}

func (t *typesFromDescriptorPool) RangeExtensionsByMessage(message protoreflect.FullName, fn func(protoreflect.ExtensionType) bool) {
	RangeExtensionsByMessage(t.pool, message, func(ext protoreflect.ExtensionDescriptor) bool {
		return fn(ExtensionType(ext))
	})
}
