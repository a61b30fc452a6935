package protoschema

import (
	"slices"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// nameIndex maps the names of all messages and enums in a schema to their
// descriptors. It is computed once, when the schema is linked, and only read
// afterwards.
type nameIndex struct {
	messages map[protoreflect.FullName]protoreflect.MessageDescriptor
	enums    map[protoreflect.FullName]protoreflect.EnumDescriptor
	// short (package-relative) names, only for names that are not ambiguous
	shortMessages map[string]protoreflect.MessageDescriptor
	shortEnums    map[string]protoreflect.EnumDescriptor
}

type typeContainer interface {
	Messages() protoreflect.MessageDescriptors
	Enums() protoreflect.EnumDescriptors
}

func newNameIndex(files []protoreflect.FileDescriptor) *nameIndex {
	idx := &nameIndex{
		messages:      map[protoreflect.FullName]protoreflect.MessageDescriptor{},
		enums:         map[protoreflect.FullName]protoreflect.EnumDescriptor{},
		shortMessages: map[string]protoreflect.MessageDescriptor{},
		shortEnums:    map[string]protoreflect.EnumDescriptor{},
	}
	shortCounts := map[string]int{}
	var addTypes func(pkg protoreflect.FullName, container typeContainer)
	addTypes = func(pkg protoreflect.FullName, container typeContainer) {
		msgs := container.Messages()
		for i, length := 0, msgs.Len(); i < length; i++ {
			md := msgs.Get(i)
			idx.messages[md.FullName()] = md
			short := shortName(pkg, md.FullName())
			shortCounts[short]++
			idx.shortMessages[short] = md
			addTypes(pkg, md)
		}
		enums := container.Enums()
		for i, length := 0, enums.Len(); i < length; i++ {
			ed := enums.Get(i)
			idx.enums[ed.FullName()] = ed
			short := shortName(pkg, ed.FullName())
			shortCounts[short]++
			idx.shortEnums[short] = ed
		}
	}
	for _, fd := range files {
		addTypes(fd.Package(), fd)
	}
	for short, count := range shortCounts {
		if count > 1 {
			delete(idx.shortMessages, short)
			delete(idx.shortEnums, short)
		}
	}
	return idx
}

func shortName(pkg protoreflect.FullName, name protoreflect.FullName) string {
	if pkg == "" {
		return string(name)
	}
	return strings.TrimPrefix(string(name), string(pkg)+".")
}

func (idx *nameIndex) findMessage(name string) protoreflect.MessageDescriptor {
	name = strings.TrimPrefix(name, ".")
	if md := idx.messages[protoreflect.FullName(name)]; md != nil {
		return md
	}
	return idx.shortMessages[name]
}

func (idx *nameIndex) findEnum(name string) protoreflect.EnumDescriptor {
	name = strings.TrimPrefix(name, ".")
	if ed := idx.enums[protoreflect.FullName(name)]; ed != nil {
		return ed
	}
	return idx.shortEnums[name]
}

func (idx *nameIndex) messageNames() []protoreflect.FullName {
	names := make([]protoreflect.FullName, 0, len(idx.messages))
	for name := range idx.messages {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (idx *nameIndex) enumNames() []protoreflect.FullName {
	names := make([]protoreflect.FullName, 0, len(idx.enums))
	for name := range idx.enums {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
