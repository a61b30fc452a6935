package protoresolve

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// DescriptorPool is a set of linked file descriptors that can be searched by
// path or by element name and that allows iteration over all files.
type DescriptorPool interface {
	FindFileByPath(path string) (protoreflect.FileDescriptor, error)
	FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error)
	NumFiles() int
	RangeFiles(fn func(protoreflect.FileDescriptor) bool)
}

var _ DescriptorPool = (*protoregistry.Files)(nil)
var _ DescriptorPool = (*Registry)(nil)

// MissingFileError is returned from NewRegistry when a file imports another
// file that is not in the given set.
type MissingFileError struct {
	Path       string
	ImportedBy string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("set is missing file %q (imported by %q)", e.Path, e.ImportedBy)
}

// ErrDuplicateFile is returned from NewRegistry when the same path appears
// more than once in the given set.
var ErrDuplicateFile = errors.New("file appears in set more than once")

// Registry is an immutable descriptor pool. Since it can never change after
// it is created, it is safe to use from multiple goroutines without any
// synchronization.
type Registry struct {
	files protoregistry.Files
	// in the order they were linked: dependencies before dependents
	ordered []protoreflect.FileDescriptor
	protos  map[string]*descriptorpb.FileDescriptorProto
}

// NewRegistry links the given files and returns a registry that contains
// them. The set must be closed under imports: every file imported by a file
// in the set must also be in the set. The files may be given in any order.
//
// The given protos are retained by the registry, so callers must not modify
// them afterwards.
func NewRegistry(files []*descriptorpb.FileDescriptorProto) (*Registry, error) {
	reg := &Registry{protos: make(map[string]*descriptorpb.FileDescriptorProto, len(files))}
	for _, fd := range files {
		if _, ok := reg.protos[fd.GetName()]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFile, fd.GetName())
		}
		reg.protos[fd.GetName()] = fd
	}
	for _, fd := range files {
		if err := reg.resolveFile(fd, nil); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *Registry) resolveFile(fd *descriptorpb.FileDescriptorProto, seen []string) error {
	if _, err := r.files.FindFileByPath(fd.GetName()); err == nil {
		// already resolved
		return nil
	}
	for _, s := range seen {
		if s == fd.GetName() {
			return fmt.Errorf("import cycle: %q imports itself (transitively)", fd.GetName())
		}
	}
	seen = append(seen, fd.GetName())
	// resolve all dependencies
	for _, dep := range fd.GetDependency() {
		depFile := r.protos[dep]
		if depFile == nil {
			return &MissingFileError{Path: dep, ImportedBy: fd.GetName()}
		}
		if err := r.resolveFile(depFile, seen); err != nil {
			return err
		}
	}
	file, err := protodesc.NewFile(fd, &r.files)
	if err != nil {
		return err
	}
	if err := r.files.RegisterFile(file); err != nil {
		return err
	}
	r.ordered = append(r.ordered, file)
	return nil
}

// FindFileByPath returns the file with the given path, or an error wrapping
// protoregistry.NotFound.
func (r *Registry) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	return r.files.FindFileByPath(path)
}

// FindDescriptorByName returns the element with the given fully-qualified
// name, or an error wrapping protoregistry.NotFound.
func (r *Registry) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	return r.files.FindDescriptorByName(name)
}

// NumFiles returns the number of files in the registry.
func (r *Registry) NumFiles() int {
	return len(r.ordered)
}

// RangeFiles calls fn for every file in the registry, dependencies before
// the files that import them. Iteration stops if fn returns false.
func (r *Registry) RangeFiles(fn func(protoreflect.FileDescriptor) bool) {
	for _, file := range r.ordered {
		if !fn(file) {
			return
		}
	}
}

// FileProto returns the descriptor proto from which the file with the given
// path was built, or nil if there is no such file. Callers must not modify
// the returned value.
func (r *Registry) FileProto(path string) *descriptorpb.FileDescriptorProto {
	return r.protos[path]
}

// AsTypeResolver returns a view of this registry that resolves dynamic types.
func (r *Registry) AsTypeResolver() TypeResolver {
	return TypesFromDescriptorPool(r)
}

func descType(d protoreflect.Descriptor) string {
	switch d := d.(type) {
	case protoreflect.FileDescriptor:
		return "a file"
	case protoreflect.MessageDescriptor:
		return "a message"
	case protoreflect.FieldDescriptor:
		if d.IsExtension() {
			return "an extension"
		}
		return "a field"
	case protoreflect.OneofDescriptor:
		return "a oneof"
	case protoreflect.EnumDescriptor:
		return "an enum"
	case protoreflect.EnumValueDescriptor:
		return "an enum value"
	case protoreflect.ServiceDescriptor:
		return "a service"
	case protoreflect.MethodDescriptor:
		return "a method"
	default:
		return fmt.Sprintf("a %T", d)
	}
}

// FindMessageByName finds the message with the given fully-qualified name in
// the given pool.
func FindMessageByName(pool DescriptorPool, name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	d, err := pool.FindDescriptorByName(name)
	if err != nil {
		return nil, err
	}
	msg, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("descriptor %q is %s, not a message", name, descType(d))
	}
	return msg, nil
}

// FindEnumByName finds the enum with the given fully-qualified name in the
// given pool.
func FindEnumByName(pool DescriptorPool, name protoreflect.FullName) (protoreflect.EnumDescriptor, error) {
	d, err := pool.FindDescriptorByName(name)
	if err != nil {
		return nil, err
	}
	en, ok := d.(protoreflect.EnumDescriptor)
	if !ok {
		return nil, fmt.Errorf("descriptor %q is %s, not an enum", name, descType(d))
	}
	return en, nil
}

// FindExtensionByName finds the extension with the given fully-qualified name
// in the given pool.
func FindExtensionByName(pool DescriptorPool, name protoreflect.FullName) (protoreflect.ExtensionDescriptor, error) {
	d, err := pool.FindDescriptorByName(name)
	if err != nil {
		return nil, err
	}
	fld, ok := d.(protoreflect.FieldDescriptor)
	if !ok {
		return nil, fmt.Errorf("descriptor %q is %s, not an extension", name, descType(d))
	}
	if !fld.IsExtension() {
		return nil, fmt.Errorf("descriptor %q is a field, not an extension", name)
	}
	return fld, nil
}

// TypeContainer is a descriptor that contains types: a file or a message.
type TypeContainer interface {
	Messages() protoreflect.MessageDescriptors
	Enums() protoreflect.EnumDescriptors
	Extensions() protoreflect.ExtensionDescriptors
}

// FindExtensionByNumber searches all files in the given pool for an extension
// of the given message with the given number. It returns nil if there is no
// such extension.
func FindExtensionByNumber(pool DescriptorPool, message protoreflect.FullName, number protoreflect.FieldNumber) protoreflect.ExtensionDescriptor {
	var result protoreflect.ExtensionDescriptor
	RangeExtensionsByMessage(pool, message, func(ext protoreflect.ExtensionDescriptor) bool {
		if ext.Number() == number {
			result = ext
			return false
		}
		return true
	})
	return result
}

// RangeExtensionsByMessage calls fn for every extension of the given message
// found in the given pool. Iteration stops if fn returns false.
func RangeExtensionsByMessage(pool DescriptorPool, message protoreflect.FullName, fn func(protoreflect.ExtensionDescriptor) bool) {
	var rangeInContext func(container TypeContainer) bool
	rangeInContext = func(container TypeContainer) bool {
		exts := container.Extensions()
		for i, length := 0, exts.Len(); i < length; i++ {
			ext := exts.Get(i)
			if ext.ContainingMessage().FullName() == message {
				if !fn(ext) {
					return false
				}
			}
		}
		msgs := container.Messages()
		for i, length := 0, msgs.Len(); i < length; i++ {
			if !rangeInContext(msgs.Get(i)) {
				return false
			}
		}
		return true
	}
	pool.RangeFiles(func(file protoreflect.FileDescriptor) bool {
		return rangeInContext(file)
	})
}
