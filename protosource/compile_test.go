package protosource_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bufbuild/protocompile/reporter"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"

	"github.com/jhump/protodynamic/internal/testutil"
	"github.com/jhump/protodynamic/protodef"
	"github.com/jhump/protodynamic/protoschema"
	"github.com/jhump/protodynamic/protosource"
)

func TestCompile(t *testing.T) {
	schema, err := protosource.Compile(context.Background(), testutil.Sources, "schema1.proto")
	require.NoError(t, err)

	require.Equal(t, "schema1.proto", schema.Primary().Path())
	require.Len(t, schema.Files(), 4)
	for _, name := range []string{"Msg1", "Msg2", "Msg3", "Person", "Person.PhoneNumber"} {
		require.NotNil(t, schema.MessageDescriptor(name), "message %q", name)
	}
	work := schema.EnumValue("Person.PhoneType", "WORK")
	require.NotNil(t, work)
	require.Equal(t, protoreflect.EnumNumber(2), work.Number())

	// same result as compiling the files directly and parsing the output
	parsed, err := protoschema.FromFileDescriptorSet(testutil.Compile(t, testutil.Sources, "schema1.proto"))
	require.NoError(t, err)
	if diff := cmp.Diff(parsed.FileDescriptorSet(), schema.FileDescriptorSet(), protocmp.Transform()); diff != "" {
		t.Errorf("unexpected difference (-want +got):\n%s", diff)
	}
}

func TestCompile_MultipleFiles(t *testing.T) {
	schema, err := protosource.Compile(context.Background(), testutil.Sources, "person.proto", "schema3.proto")
	require.NoError(t, err)
	require.Equal(t, "schema3.proto", schema.Primary().Path())
	require.NotNil(t, schema.MessageDescriptor("Person"))
	require.NotNil(t, schema.MessageDescriptor("Msg3"))
}

func TestCompile_StandardImports(t *testing.T) {
	sources := map[string]string{
		"event.proto": `syntax = "proto3";
package events;
import "google/protobuf/timestamp.proto";
message Event {
  string name = 1;
  google.protobuf.Timestamp when = 2;
}
`,
	}
	schema, err := protosource.Compile(context.Background(), sources, "event.proto")
	require.NoError(t, err)
	require.NotNil(t, schema.FileDescriptor("google/protobuf/timestamp.proto"))
	when := schema.MessageDescriptor("Event").Fields().ByName("when")
	require.Equal(t, schema.MessageDescriptor("google.protobuf.Timestamp"), when.Message())
}

func TestCompile_MergeIntoBuilder(t *testing.T) {
	people, err := protosource.Compile(context.Background(), testutil.Sources, "person.proto")
	require.NoError(t, err)

	book, err := protodef.NewMessage("AddressBook").
		AddField(protodef.LabelRepeated, "person.Person", "people", 1).
		AddField(protodef.LabelOptional, "person.Person.PhoneNumber", "main", 2).
		Build()
	require.NoError(t, err)
	schema, err := protoschema.NewBuilder().
		SetName("book.proto").
		SetPackage("book").
		AddSchema(people).
		AddMessageDefinition(book).
		Build()
	require.NoError(t, err)

	msg := schema.NewMessage("AddressBook")
	mainField := msg.Descriptor().Fields().ByName("main")
	phone := msg.Mutable(mainField).Message()
	number := phone.Descriptor().Fields().ByName("number")
	phone.Set(number, protoreflect.ValueOfString("555-1212"))
	data, err := proto.Marshal(msg.Interface())
	require.NoError(t, err)

	parsed := schema.NewMessage("book.AddressBook")
	require.NoError(t, proto.Unmarshal(data, parsed.Interface()))
	require.Equal(t, "555-1212", parsed.Get(mainField).Message().Get(number).String())
}

func TestCompile_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		source string
	}{
		{name: "syntax error", source: `syntax = "proto3"; message Foo { string name = 1 }`},
		{name: "unknown type", source: `syntax = "proto3"; message Foo { Bar bar = 1; }`},
		{name: "missing import", source: `syntax = "proto3"; import "bar.proto"; message Foo {}`},
		{name: "proto3 default", source: `syntax = "proto3"; message Foo { string name = 1 [default = "x"]; }`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protosource.Compile(context.Background(), map[string]string{"foo.proto": tc.source}, "foo.proto")
			require.ErrorIs(t, err, protosource.ErrCompile)
			require.ErrorIs(t, err, protoschema.ErrInvalidInput)
		})
	}

	_, err := protosource.Compile(context.Background(), testutil.Sources)
	require.ErrorIs(t, err, protoschema.ErrInvalidInput)
	require.False(t, errors.Is(err, protosource.ErrCompile))
}

func TestCompile_ErrorPosition(t *testing.T) {
	source := "syntax = \"proto3\";\n\nmessage Foo {\n  Bar bar = 1;\n}\n"
	_, err := protosource.Compile(context.Background(), map[string]string{"foo.proto": source}, "foo.proto")
	require.ErrorIs(t, err, protosource.ErrCompile)
	var errWithPos reporter.ErrorWithPos
	require.True(t, errors.As(err, &errWithPos))
	pos := errWithPos.GetPosition()
	require.Equal(t, "foo.proto", pos.Filename)
	require.Equal(t, 4, pos.Line)
}

func TestOptions_Reporters(t *testing.T) {
	sources := map[string]string{
		"dep.proto": `syntax = "proto3"; package dep; message Dep {}`,
		"foo.proto": `syntax = "proto3";
import "dep.proto";
message Foo {
  Bar bar = 1;
  Baz baz = 2;
}
`,
	}
	var errs []reporter.ErrorWithPos
	var warnings []reporter.ErrorWithPos
	opts := protosource.Options{
		ErrorReporter: func(err reporter.ErrorWithPos) error {
			errs = append(errs, err)
			return nil
		},
		WarningReporter: func(err reporter.ErrorWithPos) {
			warnings = append(warnings, err)
		},
	}
	_, err := opts.Compile(context.Background(), sources, "foo.proto")
	require.ErrorIs(t, err, protosource.ErrCompile)
	require.ErrorIs(t, err, reporter.ErrInvalidSource)
	require.Len(t, errs, 2)

	// fix the errors; the unused import is still reported, as a warning
	errs, warnings = nil, nil
	sources["foo.proto"] = `syntax = "proto3"; import "dep.proto"; message Foo {}`
	schema, err := opts.Compile(context.Background(), sources, "foo.proto")
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, warnings, 1)
	require.Equal(t, "foo.proto", warnings[0].GetPosition().Filename)
	require.NotNil(t, schema.MessageDescriptor("dep.Dep"))
}

func TestOptions_IncludeSourceInfo(t *testing.T) {
	const comment = "A person in the address book."

	schema, err := protosource.Compile(context.Background(), testutil.Sources, "person.proto")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, schema.PrintProto(&buf))
	require.NotContains(t, buf.String(), comment)
	require.Nil(t, schema.FileDescriptorSet().GetFile()[0].GetSourceCodeInfo())

	schema, err = protosource.Options{IncludeSourceInfo: true}.Compile(context.Background(), testutil.Sources, "person.proto")
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, schema.PrintProto(&buf))
	require.Contains(t, buf.String(), comment)
	require.NotNil(t, schema.FileDescriptorSet().GetFile()[0].GetSourceCodeInfo())
}

func TestCompileFiles(t *testing.T) {
	dir := t.TempDir()
	for name, source := range testutil.Sources {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(source), 0o644))
	}

	schema, err := protosource.Options{ImportPaths: []string{dir}}.CompileFiles(context.Background(), "schema2.proto")
	require.NoError(t, err)
	require.Equal(t, "schema2.proto", schema.Primary().Path())
	require.Equal(t, protoreflect.FullName("schema3.Msg3"),
		schema.MessageDescriptor("Msg2").Fields().ByName("msg3").Message().FullName())

	_, err = protosource.Options{ImportPaths: []string{dir}}.CompileFiles(context.Background(), "schema4.proto")
	require.ErrorIs(t, err, protosource.ErrCompile)
}
