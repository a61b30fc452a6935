package protoschema

import (
	"fmt"
	"sync/atomic"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jhump/protodynamic/protodef"
)

var uniqueFileCounter uint64

func uniqueFilePath() string {
	i := atomic.AddUint64(&uniqueFileCounter, 1)
	return fmt.Sprintf("{generated-file-%04x}.proto", i)
}

// Builder is used to construct a Schema. It accumulates the contents of the
// schema's primary file (its messages and enums) along with the files of
// other schemas that are merged into it.
//
// Unlike the builders in the protodef package, a Builder can be built more
// than once. Each call to Build produces a new schema from the builder's
// current state, so more definitions or schemas can be added between calls.
//
// To create a new Builder, use NewBuilder.
type Builder struct {
	name   string
	pkg    protoreflect.FullName
	syntax protoreflect.Syntax

	messages []*protodef.MessageDefinition
	enums    []*protodef.EnumDefinition
	symbols  map[protoreflect.Name]string

	// files of merged schemas, in the order they were added
	merged       []*descriptorpb.FileDescriptorProto
	mergedByName map[string]*descriptorpb.FileDescriptorProto
	// explicit dependencies, from AddDependency
	imports []string
}

// NewBuilder creates a new builder for a "proto2" schema with no package.
// Its primary file is given a unique generated name, which can be changed
// with SetName.
func NewBuilder() *Builder {
	return &Builder{
		name:         uniqueFilePath(),
		syntax:       protoreflect.Proto2,
		symbols:      map[protoreflect.Name]string{},
		mergedByName: map[string]*descriptorpb.FileDescriptorProto{},
	}
}

// Name returns the path of the primary file of the schema being built.
func (b *Builder) Name() string {
	return b.name
}

// SetName sets the path of the primary file. This returns the builder, for
// method chaining.
func (b *Builder) SetName(path string) *Builder {
	b.name = path
	return b
}

// SetPackage sets the package of the primary file. This returns the builder,
// for method chaining.
func (b *Builder) SetPackage(pkg protoreflect.FullName) *Builder {
	b.pkg = pkg
	return b
}

// SetSyntax sets the syntax of the primary file, which must be either
// protoreflect.Proto2 (the default) or protoreflect.Proto3. This returns the
// builder, for method chaining.
func (b *Builder) SetSyntax(syntax protoreflect.Syntax) *Builder {
	b.syntax = syntax
	return b
}

func (b *Builder) addSymbol(kind string, name protoreflect.Name) error {
	if ex, ok := b.symbols[name]; ok {
		return fmt.Errorf("%w: schema %q already contains %s named %q", protodef.ErrDefinitionConflict, b.name, ex, name)
	}
	b.symbols[name] = kind
	return nil
}

// AddMessageDefinition adds the given message to the primary file. If the
// message cannot be added, this method panics. This returns the builder, for
// method chaining.
func (b *Builder) AddMessageDefinition(md *protodef.MessageDefinition) *Builder {
	if err := b.TryAddMessageDefinition(md); err != nil {
		panic(err)
	}
	return b
}

// TryAddMessageDefinition adds the given message to the primary file,
// returning an error if its name collides with another message or enum in
// the file.
func (b *Builder) TryAddMessageDefinition(md *protodef.MessageDefinition) error {
	if err := b.addSymbol("message", md.Name()); err != nil {
		return err
	}
	b.messages = append(b.messages, md)
	return nil
}

// AddEnumDefinition adds the given enum to the primary file. If the enum
// cannot be added, this method panics. This returns the builder, for method
// chaining.
func (b *Builder) AddEnumDefinition(ed *protodef.EnumDefinition) *Builder {
	if err := b.TryAddEnumDefinition(ed); err != nil {
		panic(err)
	}
	return b
}

// TryAddEnumDefinition adds the given enum to the primary file, returning an
// error if its name collides with another message or enum in the file.
func (b *Builder) TryAddEnumDefinition(ed *protodef.EnumDefinition) error {
	if err := b.addSymbol("enum", ed.Name()); err != nil {
		return err
	}
	b.enums = append(b.enums, ed)
	return nil
}

// AddSchema merges all files of the given schema into this one. If the
// schema cannot be merged, this method panics. This returns the builder, for
// method chaining.
func (b *Builder) AddSchema(s *Schema) *Builder {
	if err := b.TryAddSchema(s); err != nil {
		panic(err)
	}
	return b
}

// TryAddSchema merges all files of the given schema into this one. The
// primary file of the new schema imports every merged file.
//
// Files are identified by path. Adding a file that was already merged (for
// example, because two merged schemas share a dependency) is a no-op if both
// copies have the same content. If the contents differ, an error wrapping
// ErrMergeConflict is returned and none of the files of s are merged.
func (b *Builder) TryAddSchema(s *Schema) error {
	for _, fd := range s.files {
		if existing, ok := b.mergedByName[fd.GetName()]; ok && !proto.Equal(existing, fd) {
			return fmt.Errorf("%w: schema already contains a different file named %q", ErrMergeConflict, fd.GetName())
		}
	}
	for _, fd := range s.files {
		if _, ok := b.mergedByName[fd.GetName()]; ok {
			continue
		}
		fd = proto.Clone(fd).(*descriptorpb.FileDescriptorProto)
		b.merged = append(b.merged, fd)
		b.mergedByName[fd.GetName()] = fd
	}
	return nil
}

// AddDependency records that the primary file imports the file with the
// given path. The file must be provided by a merged schema by the time the
// schema is built. This returns the builder, for method chaining.
func (b *Builder) AddDependency(path string) *Builder {
	b.imports = append(b.imports, path)
	return b
}

// dependencies returns the imports of the primary file: all merged files
// followed by the explicit dependencies, without duplicates.
func (b *Builder) dependencies() []string {
	deps := make([]string, 0, len(b.merged)+len(b.imports))
	seen := make(map[string]struct{}, len(b.merged)+len(b.imports))
	for _, fd := range b.merged {
		deps = append(deps, fd.GetName())
		seen[fd.GetName()] = struct{}{}
	}
	for _, imp := range b.imports {
		if _, ok := seen[imp]; ok {
			continue
		}
		seen[imp] = struct{}{}
		deps = append(deps, imp)
	}
	return deps
}

// Build links the primary file and all merged files into a new schema. It is
// the same as calling Options{}.Build(b).
func (b *Builder) Build() (*Schema, error) {
	return Options{}.Build(b)
}

// Build links the primary file and all merged files of the given builder
// into a new schema, using these options.
//
// Field types in the primary file that refer to messages or enums are
// resolved and rewritten into fully-qualified form. The builder is not
// changed: it can be built again, with or without further changes.
func (opts Options) Build(b *Builder) (*Schema, error) {
	primary, err := b.primaryFile()
	if err != nil {
		return nil, err
	}
	files := make([]*descriptorpb.FileDescriptorProto, 0, len(b.merged)+1)
	// merged files are never modified, so they can be shared by the builder
	// and all schemas it builds
	files = append(files, b.merged...)
	files = append(files, primary)
	return opts.link(files, primary.GetName(), true)
}

func (b *Builder) primaryFile() (*descriptorpb.FileDescriptorProto, error) {
	if b.name == "" {
		return nil, fmt.Errorf("%w: schema file name must not be empty", protodef.ErrInvalidDefinition)
	}
	if _, ok := b.mergedByName[b.name]; ok {
		return nil, fmt.Errorf("%w: schema file name %q is the same as the name of a merged file", ErrMergeConflict, b.name)
	}
	if b.pkg != "" && !b.pkg.IsValid() {
		return nil, fmt.Errorf("%w: package name %q is invalid", protodef.ErrInvalidDefinition, b.pkg)
	}
	fd := &descriptorpb.FileDescriptorProto{
		Name:        proto.String(b.name),
		Dependency:  b.dependencies(),
		MessageType: make([]*descriptorpb.DescriptorProto, len(b.messages)),
		EnumType:    make([]*descriptorpb.EnumDescriptorProto, len(b.enums)),
	}
	if b.pkg != "" {
		fd.Package = proto.String(string(b.pkg))
	}
	switch b.syntax {
	case protoreflect.Proto2:
	case protoreflect.Proto3:
		fd.Syntax = proto.String("proto3")
	default:
		return nil, fmt.Errorf("%w: schema %q: syntax must be proto2 or proto3, not %v", protodef.ErrInvalidDefinition, b.name, b.syntax)
	}
	for i, md := range b.messages {
		fd.MessageType[i] = md.DescriptorProto()
	}
	for i, ed := range b.enums {
		fd.EnumType[i] = ed.EnumDescriptorProto()
	}
	return fd, nil
}
