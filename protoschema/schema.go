package protoschema

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jhump/protodynamic/internal/sort"
	"github.com/jhump/protodynamic/protoresolve"
)

// Schema is a linked set of protobuf files: a primary file and all of the
// files it depends on. Schemas are immutable and safe for concurrent use.
type Schema struct {
	// sorted so that dependencies come before the files that import them
	files   []*descriptorpb.FileDescriptorProto
	primary string
	pool    protoresolve.DescriptorPool
	linked  []protoreflect.FileDescriptor
	index   *nameIndex
	runtime Runtime
}

// link sorts and links the given files into a schema. If rewritePrimary is
// true, type references in the primary file are resolved and rewritten to
// fully-qualified form first. Otherwise, type references in all files are
// only checked.
func (opts Options) link(files []*descriptorpb.FileDescriptorProto, primary string, rewritePrimary bool) (*Schema, error) {
	if err := sort.SortFiles(files); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvedDependency, err)
	}
	st, err := newSymbolTable(files)
	if err != nil {
		return nil, err
	}
	for _, fd := range files {
		if rewritePrimary && fd.GetName() != primary {
			continue
		}
		if err := st.resolveReferences(fd, rewritePrimary); err != nil {
			return nil, err
		}
	}

	rt := opts.runtime()
	pool, err := rt.NewPool(files)
	if err != nil {
		var missingErr *protoresolve.MissingFileError
		if errors.As(err, &missingErr) {
			return nil, fmt.Errorf("%w: %v", ErrUnresolvedDependency, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	linked := make([]protoreflect.FileDescriptor, len(files))
	for i, fd := range files {
		linked[i], err = pool.FindFileByPath(fd.GetName())
		if err != nil {
			return nil, fmt.Errorf("descriptor pool is missing file %q: %w", fd.GetName(), err)
		}
	}
	return &Schema{
		files:   files,
		primary: primary,
		pool:    pool,
		linked:  linked,
		index:   newNameIndex(linked),
		runtime: rt,
	}, nil
}

// FromFileDescriptor returns a schema whose files are the given file
// descriptors and all of their transitive dependencies. The last given file
// is the primary file. This can be used to create a schema from the
// descriptors of generated code, such as the well-known types, so that it can
// be merged into other schemas.
func FromFileDescriptor(fds ...protoreflect.FileDescriptor) (*Schema, error) {
	return Options{}.FromFileDescriptor(fds...)
}

// FromFileDescriptor returns a schema whose files are the given file
// descriptors and all of their transitive dependencies, using these options.
func (opts Options) FromFileDescriptor(fds ...protoreflect.FileDescriptor) (*Schema, error) {
	if len(fds) == 0 {
		return nil, fmt.Errorf("%w: no files given", ErrInvalidDefinition)
	}
	var files []*descriptorpb.FileDescriptorProto
	seen := map[string]struct{}{}
	var addFile func(fd protoreflect.FileDescriptor)
	addFile = func(fd protoreflect.FileDescriptor) {
		if _, ok := seen[fd.Path()]; ok {
			return
		}
		seen[fd.Path()] = struct{}{}
		imports := fd.Imports()
		for i, length := 0, imports.Len(); i < length; i++ {
			addFile(imports.Get(i).FileDescriptor)
		}
		files = append(files, protodesc.ToFileDescriptorProto(fd))
	}
	for _, fd := range fds {
		addFile(fd)
	}
	return opts.link(files, fds[len(fds)-1].Path(), false)
}

// Primary returns the schema's primary file.
func (s *Schema) Primary() protoreflect.FileDescriptor {
	return s.linked[s.indexOf(s.primary)]
}

func (s *Schema) indexOf(path string) int {
	for i, fd := range s.files {
		if fd.GetName() == path {
			return i
		}
	}
	return -1
}

// Files returns all files in the schema, sorted so that every file comes
// after the files it imports.
func (s *Schema) Files() []protoreflect.FileDescriptor {
	return append([]protoreflect.FileDescriptor(nil), s.linked...)
}

// FileDescriptor returns the file with the given path, or nil if the schema
// has no such file.
func (s *Schema) FileDescriptor(path string) protoreflect.FileDescriptor {
	if i := s.indexOf(path); i >= 0 {
		return s.linked[i]
	}
	return nil
}

// Pool returns the descriptor pool that contains the schema's files.
func (s *Schema) Pool() protoresolve.DescriptorPool {
	return s.pool
}

// TypeResolver returns a resolver for dynamic types of all messages, enums,
// and extensions in the schema. It can be used with the protojson and
// prototext packages, for example to handle google.protobuf.Any messages
// that contain types from the schema.
func (s *Schema) TypeResolver() protoresolve.TypeResolver {
	return protoresolve.TypesFromDescriptorPool(s.pool)
}

// MessageDescriptor returns the message with the given name, or nil if there
// is no such message. The name may be fully-qualified (with or without a
// leading dot) or a short name. See the package doc for more about names.
func (s *Schema) MessageDescriptor(name string) protoreflect.MessageDescriptor {
	return s.index.findMessage(name)
}

// EnumDescriptor returns the enum with the given name, or nil if there is no
// such enum. The name may be fully-qualified (with or without a leading dot)
// or a short name.
func (s *Schema) EnumDescriptor(name string) protoreflect.EnumDescriptor {
	return s.index.findEnum(name)
}

// EnumValue returns the value with the given name in the enum with the given
// name, or nil if there is no such enum or value.
func (s *Schema) EnumValue(enumName, valueName string) protoreflect.EnumValueDescriptor {
	ed := s.EnumDescriptor(enumName)
	if ed == nil {
		return nil
	}
	return ed.Values().ByName(protoreflect.Name(valueName))
}

// NewMessage returns a new, empty message of the type with the given name,
// or nil if there is no such message. The message is created by the schema's
// Runtime, which by default returns a *dynamicpb.Message.
func (s *Schema) NewMessage(name string) protoreflect.Message {
	md := s.MessageDescriptor(name)
	if md == nil {
		return nil
	}
	return s.runtime.NewMessage(md)
}

// MessageTypes returns the fully-qualified names of all messages in the
// schema, including nested messages, in sorted order.
func (s *Schema) MessageTypes() []protoreflect.FullName {
	return s.index.messageNames()
}

// EnumTypes returns the fully-qualified names of all enums in the schema,
// including nested enums, in sorted order.
func (s *Schema) EnumTypes() []protoreflect.FullName {
	return s.index.enumNames()
}
