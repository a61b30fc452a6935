package protoschema

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

type symbolKind int

const (
	symbolPackage = symbolKind(iota)
	symbolMessage
	symbolEnum
	symbolOther
)

type symbol struct {
	kind symbolKind
	// path of the defining file; empty for packages
	file string
}

// symbolTable indexes the fully-qualified names of all elements in a set of
// files.
type symbolTable struct {
	symbols map[protoreflect.FullName]symbol
	files   map[string]*descriptorpb.FileDescriptorProto
}

func newSymbolTable(files []*descriptorpb.FileDescriptorProto) (*symbolTable, error) {
	st := &symbolTable{
		symbols: map[protoreflect.FullName]symbol{},
		files:   make(map[string]*descriptorpb.FileDescriptorProto, len(files)),
	}
	for _, fd := range files {
		st.files[fd.GetName()] = fd
		if err := st.addFile(fd); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (st *symbolTable) addFile(fd *descriptorpb.FileDescriptorProto) error {
	pkg := protoreflect.FullName(fd.GetPackage())
	for p := pkg; p != ""; p = p.Parent() {
		if ex, ok := st.symbols[p]; ok {
			if ex.kind != symbolPackage {
				return fmt.Errorf("%w: package %q of file %q conflicts with element defined in %q", ErrMergeConflict, p, fd.GetName(), ex.file)
			}
			break
		}
		st.symbols[p] = symbol{kind: symbolPackage}
	}
	for _, md := range fd.GetMessageType() {
		if err := st.addMessage(fd.GetName(), pkg, md); err != nil {
			return err
		}
	}
	for _, ed := range fd.GetEnumType() {
		if err := st.addEnum(fd.GetName(), pkg, ed); err != nil {
			return err
		}
	}
	for _, ext := range fd.GetExtension() {
		if err := st.add(fd.GetName(), qualify(pkg, ext.GetName()), symbolOther); err != nil {
			return err
		}
	}
	for _, svc := range fd.GetService() {
		if err := st.add(fd.GetName(), qualify(pkg, svc.GetName()), symbolOther); err != nil {
			return err
		}
	}
	return nil
}

func (st *symbolTable) addMessage(file string, scope protoreflect.FullName, md *descriptorpb.DescriptorProto) error {
	name := qualify(scope, md.GetName())
	if err := st.add(file, name, symbolMessage); err != nil {
		return err
	}
	for _, nested := range md.GetNestedType() {
		if err := st.addMessage(file, name, nested); err != nil {
			return err
		}
	}
	for _, ed := range md.GetEnumType() {
		if err := st.addEnum(file, name, ed); err != nil {
			return err
		}
	}
	for _, ext := range md.GetExtension() {
		if err := st.add(file, qualify(name, ext.GetName()), symbolOther); err != nil {
			return err
		}
	}
	return nil
}

func (st *symbolTable) addEnum(file string, scope protoreflect.FullName, ed *descriptorpb.EnumDescriptorProto) error {
	return st.add(file, qualify(scope, ed.GetName()), symbolEnum)
}

func (st *symbolTable) add(file string, name protoreflect.FullName, kind symbolKind) error {
	if ex, ok := st.symbols[name]; ok {
		if ex.kind == symbolPackage {
			return fmt.Errorf("%w: %q defined in %q conflicts with a package of the same name", ErrMergeConflict, name, file)
		}
		if ex.file == file {
			return fmt.Errorf("%w: %q is defined more than once in %q", ErrInvalidDefinition, name, file)
		}
		return fmt.Errorf("%w: %q is defined in both %q and %q", ErrMergeConflict, name, ex.file, file)
	}
	st.symbols[name] = symbol{kind: kind, file: file}
	return nil
}

func qualify(scope protoreflect.FullName, name string) protoreflect.FullName {
	if scope == "" {
		return protoreflect.FullName(name)
	}
	return scope.Append(protoreflect.Name(name))
}

// visibleFiles returns the paths of the files whose elements can be
// referenced from the given file: the file itself, the files it imports, and
// the files those import publicly (transitively).
func (st *symbolTable) visibleFiles(fd *descriptorpb.FileDescriptorProto) map[string]struct{} {
	visible := map[string]struct{}{fd.GetName(): {}}
	var addPublic func(dep *descriptorpb.FileDescriptorProto)
	addPublic = func(dep *descriptorpb.FileDescriptorProto) {
		for _, idx := range dep.GetPublicDependency() {
			if int(idx) < 0 || int(idx) >= len(dep.GetDependency()) {
				continue
			}
			path := dep.GetDependency()[idx]
			if _, ok := visible[path]; ok {
				continue
			}
			visible[path] = struct{}{}
			if pub := st.files[path]; pub != nil {
				addPublic(pub)
			}
		}
	}
	for _, path := range fd.GetDependency() {
		visible[path] = struct{}{}
		if dep := st.files[path]; dep != nil {
			addPublic(dep)
		}
	}
	return visible
}

// referenceResolver resolves the type names of fields in one file.
type referenceResolver struct {
	st      *symbolTable
	file    *descriptorpb.FileDescriptorProto
	visible map[string]struct{}
	// if true, resolved references are written back to the field
	rewrite bool
}

// resolveReferences checks that every field in the given file that refers to
// a message or enum names a type that is visible to the file. If rewrite is
// true, each such field is changed to use the fully-qualified name of the
// type, with a leading dot, and its type is set to TYPE_MESSAGE or TYPE_ENUM.
func (st *symbolTable) resolveReferences(fd *descriptorpb.FileDescriptorProto, rewrite bool) error {
	r := &referenceResolver{st: st, file: fd, visible: st.visibleFiles(fd), rewrite: rewrite}
	pkg := protoreflect.FullName(fd.GetPackage())
	for _, md := range fd.GetMessageType() {
		if err := r.resolveMessage(qualify(pkg, md.GetName()), md); err != nil {
			return err
		}
	}
	for _, ext := range fd.GetExtension() {
		if err := r.resolveField(pkg, pkg, ext); err != nil {
			return err
		}
	}
	return nil
}

func (r *referenceResolver) resolveMessage(name protoreflect.FullName, md *descriptorpb.DescriptorProto) error {
	for _, fld := range md.GetField() {
		if err := r.resolveField(name, name, fld); err != nil {
			return err
		}
	}
	for _, ext := range md.GetExtension() {
		if err := r.resolveField(name, name, ext); err != nil {
			return err
		}
	}
	for _, nested := range md.GetNestedType() {
		if err := r.resolveMessage(name.Append(protoreflect.Name(nested.GetName())), nested); err != nil {
			return err
		}
	}
	return nil
}

func (r *referenceResolver) resolveField(owner, scope protoreflect.FullName, fld *descriptorpb.FieldDescriptorProto) error {
	if fld.TypeName == nil {
		return nil
	}
	fieldName := owner.Append(protoreflect.Name(fld.GetName()))
	if fld.Type != nil {
		switch fld.GetType() {
		case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP, descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		default:
			return fmt.Errorf("%w: field %q in %q: scalar field cannot have type name %q",
				ErrInvalidDefinition, fieldName, r.file.GetName(), fld.GetTypeName())
		}
	}
	ref := fld.GetTypeName()
	name, sym, err := r.lookup(scope, ref)
	if err != nil {
		return fmt.Errorf("%w: field %q in %q: %v", ErrUnresolvedDependency, fieldName, r.file.GetName(), err)
	}
	var typ descriptorpb.FieldDescriptorProto_Type
	switch sym.kind {
	case symbolMessage:
		typ = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
		if fld.GetType() == descriptorpb.FieldDescriptorProto_TYPE_GROUP {
			typ = descriptorpb.FieldDescriptorProto_TYPE_GROUP
		}
	case symbolEnum:
		typ = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	default:
		return fmt.Errorf("%w: field %q in %q: %q is not a message or enum", ErrUnresolvedDependency, fieldName, r.file.GetName(), name)
	}
	if fld.Type != nil && fld.GetType() != typ {
		return fmt.Errorf("%w: field %q in %q: %q is not %s", ErrInvalidDefinition, fieldName, r.file.GetName(), name, typeNoun(fld.GetType()))
	}
	if r.rewrite {
		fld.TypeName = proto.String("." + string(name))
		fld.Type = typ.Enum()
	}
	return nil
}

func typeNoun(t descriptorpb.FieldDescriptorProto_Type) string {
	if t == descriptorpb.FieldDescriptorProto_TYPE_ENUM {
		return "an enum"
	}
	return "a message"
}

// lookup resolves the given reference from the given scope. Fully-qualified
// references (with a leading dot) are looked up as is. Relative references are
// tried in each enclosing scope, from innermost to outermost, and the first
// match that is a message or enum wins.
func (r *referenceResolver) lookup(scope protoreflect.FullName, ref string) (protoreflect.FullName, symbol, error) {
	if strings.HasPrefix(ref, ".") {
		name := protoreflect.FullName(ref[1:])
		sym, ok := r.st.symbols[name]
		if !ok {
			return "", symbol{}, fmt.Errorf("type %q not found", name)
		}
		return name, sym, r.checkVisible(name, sym)
	}
	for {
		name := qualify(scope, ref)
		if sym, ok := r.st.symbols[name]; ok && (sym.kind == symbolMessage || sym.kind == symbolEnum) {
			return name, sym, r.checkVisible(name, sym)
		}
		if scope == "" {
			return "", symbol{}, fmt.Errorf("type %q not found", ref)
		}
		scope = scope.Parent()
	}
}

func (r *referenceResolver) checkVisible(name protoreflect.FullName, sym symbol) error {
	if sym.kind == symbolPackage {
		return nil
	}
	if _, ok := r.visible[sym.file]; !ok {
		return fmt.Errorf("resolved %q, but %q is not imported", name, sym.file)
	}
	return nil
}
