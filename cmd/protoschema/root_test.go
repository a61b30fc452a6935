package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/descriptorpb"
	"gopkg.in/yaml.v3"

	"github.com/jhump/protodynamic/grpcschema"
	"github.com/jhump/protodynamic/internal/testutil"
	"github.com/jhump/protodynamic/protoschema"
)

type testState struct {
	*globalState
	stdin  *bytes.Buffer
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestState(args ...string) *testState {
	ts := &testState{
		stdin:  &bytes.Buffer{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	ts.globalState = newGlobalState(context.Background(), append([]string{"protoschema"}, args...), ts.stdin, ts.stdout, ts.stderr)
	return ts
}

func (ts *testState) run() int {
	return newRootCommand(ts.globalState).execute()
}

func writeSet(t *testing.T, set *descriptorpb.FileDescriptorSet) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.pb")
	require.NoError(t, os.WriteFile(path, testutil.Marshal(t, set), 0o644))
	return path
}

func TestDescribe(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "person.proto"))

	ts := newTestState("describe", path)
	require.Equal(t, 0, ts.run(), ts.stderr.String())
	want := "primary: person.proto\n\n" +
		"file person.proto (proto2, package person)\n" +
		"  message person.Person\n" +
		"  message person.Person.PhoneNumber\n" +
		"  enum person.Person.PhoneType\n"
	assert.Equal(t, want, ts.stdout.String())
}

func TestDescribe_YAML(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "directory.proto"))

	ts := newTestState("describe", "--format", "yaml", path)
	require.Equal(t, 0, ts.run(), ts.stderr.String())

	var summary schemaSummary
	require.NoError(t, yaml.Unmarshal(ts.stdout.Bytes(), &summary))
	assert.Equal(t, "directory.proto", summary.Primary)
	require.Len(t, summary.Files, 2)
	assert.Equal(t, "person.proto", summary.Files[0].Path)
	assert.Equal(t, fileSummary{
		Path:     "directory.proto",
		Package:  "directory",
		Syntax:   "proto2",
		Imports:  []string{"person.proto"},
		Messages: []string{"directory.LookupRequest"},
		Services: []string{"directory.Directory"},
	}, summary.Files[1])
}

func TestDescribe_Stdin(t *testing.T) {
	ts := newTestState("describe", "-f", "proto", "-")
	ts.stdin.Write(testutil.Marshal(t, testutil.Compile(t, testutil.Sources, "schema3.proto")))
	require.Equal(t, 0, ts.run(), ts.stderr.String())
	assert.Contains(t, ts.stdout.String(), "message Msg3 {")
	assert.Contains(t, ts.stdout.String(), "package schema3;")
}

func TestDescribe_PrototextFormat(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "schema3.proto"))

	ts := newTestState("describe", "-f", "prototext", path)
	require.Equal(t, 0, ts.run(), ts.stderr.String())
	assert.Contains(t, ts.stdout.String(), `name: "schema3.proto"`)
}

func TestDescribe_Errors(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "schema3.proto"))
	garbage := filepath.Join(t.TempDir(), "garbage.pb")
	require.NoError(t, os.WriteFile(garbage, []byte("not a descriptor set"), 0o644))

	testCases := []struct {
		name     string
		args     []string
		exitCode int
		message  string
	}{
		{"unknown format", []string{"describe", "-f", "xml", path}, exitError, `unsupported format \"xml\"`},
		{"missing file", []string{"describe", filepath.Join(t.TempDir(), "nope.pb")}, exitError, "nope.pb"},
		{"malformed", []string{"describe", garbage}, exitInvalidInput, "malformed descriptor set"},
		{"no args", []string{"describe"}, exitError, "accepts 1 arg(s)"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestState(tc.args...)
			assert.Equal(t, tc.exitCode, ts.run())
			assert.Contains(t, ts.stderr.String(), tc.message)
			assert.Empty(t, ts.stdout.String())
		})
	}
}

func TestLookup(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "person.proto"))

	ts := newTestState("lookup", path, "Person", "person.Person.PhoneType")
	require.Equal(t, 0, ts.run(), ts.stderr.String())
	want := "message person.Person (person.proto)\n" +
		"  required int32 id = 1\n" +
		"  required string name = 2\n" +
		"  optional string email = 3\n" +
		"  repeated person.Person.PhoneNumber phone = 4\n" +
		"\n" +
		"enum person.Person.PhoneType (person.proto)\n" +
		"  MOBILE = 0\n" +
		"  HOME = 1\n" +
		"  WORK = 2\n"
	assert.Equal(t, want, ts.stdout.String())
}

func TestLookup_YAML(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "schema2.proto"))

	ts := newTestState("lookup", "-f", "yaml", path, "Msg2")
	require.Equal(t, 0, ts.run(), ts.stderr.String())

	var results []typeSummary
	require.NoError(t, yaml.Unmarshal(ts.stdout.Bytes(), &results))
	assert.Equal(t, []typeSummary{{
		Name: "schema2.Msg2",
		Kind: "message",
		File: "schema2.proto",
		Fields: []fieldSummary{
			{Name: "id", Number: 1, Label: "optional", Type: "int32"},
			{Name: "msg3", Number: 2, Label: "optional", Type: "schema3.Msg3"},
		},
	}}, results)
}

func TestLookup_NotFound(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "person.proto"))

	ts := newTestState("lookup", path, "Person", "Address")
	assert.Equal(t, exitError, ts.run())
	assert.Contains(t, ts.stderr.String(), `no message or enum named \"Address\"`)
	assert.Empty(t, ts.stdout.String())
}

func TestMerge(t *testing.T) {
	schema1 := writeSet(t, testutil.Compile(t, testutil.Sources, "schema1.proto"))
	directory := writeSet(t, testutil.Compile(t, testutil.Sources, "directory.proto"))
	out := filepath.Join(t.TempDir(), "merged.pb")

	ts := newTestState("merge", "-o", out, "--name", "all.proto", "--package", "all", "--syntax", "proto3", schema1, directory)
	require.Equal(t, 0, ts.run(), ts.stderr.String())
	assert.Empty(t, ts.stdout.String())
	assert.Contains(t, ts.stderr.String(), "Merged schemas")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	merged, err := protoschema.Parse(data)
	require.NoError(t, err)

	primary := merged.Primary()
	assert.Equal(t, "all.proto", primary.Path())
	assert.Equal(t, "all", string(primary.Package()))
	assert.Equal(t, "proto3", primary.Syntax().String())
	assert.Len(t, merged.Files(), 6)
	assert.NotNil(t, merged.MessageDescriptor("directory.LookupRequest"))
	assert.NotNil(t, merged.MessageDescriptor("schema3.Msg3"))
}

func TestMerge_Conflict(t *testing.T) {
	person := writeSet(t, testutil.Compile(t, testutil.Sources, "person.proto"))
	other := writeSet(t, testutil.Compile(t, map[string]string{
		"person.proto": "syntax = \"proto2\";\npackage person;\nmessage Person { optional string name = 1; }\n",
	}, "person.proto"))

	ts := newTestState("merge", person, other)
	assert.Equal(t, exitInvalidInput, ts.run())
	assert.Contains(t, ts.stderr.String(), "merge conflict")
	assert.Empty(t, ts.stdout.String())
}

func TestMerge_BadSyntax(t *testing.T) {
	person := writeSet(t, testutil.Compile(t, testutil.Sources, "person.proto"))

	ts := newTestState("merge", "--syntax", "editions", person)
	assert.Equal(t, exitInvalidInput, ts.run())
	assert.Contains(t, ts.stderr.String(), `unsupported syntax \"editions\"`)
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"person.proto", "directory.proto"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(testutil.Sources[name]), 0o644))
	}

	ts := newTestState("compile", "-I", dir, "directory.proto")
	require.Equal(t, 0, ts.run(), ts.stderr.String())

	schema, err := protoschema.Parse(ts.stdout.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "directory.proto", schema.Primary().Path())
	assert.NotNil(t, schema.MessageDescriptor("person.Person"))
}

func TestCompile_Errors(t *testing.T) {
	dir := t.TempDir()
	source := "syntax = \"proto3\";\n\nmessage Foo {\n  Bar bar = 1;\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.proto"), []byte(source), 0o644))

	ts := newTestState("compile", "-I", dir, "foo.proto")
	assert.Equal(t, exitInvalidInput, ts.run())
	stderr := ts.stderr.String()
	assert.Contains(t, stderr, "level=error")
	assert.Contains(t, stderr, "position=")
	assert.Contains(t, stderr, "foo.proto:4:")
	assert.Contains(t, stderr, "compilation failed")
	assert.Empty(t, ts.stdout.String())
}

func TestFetch(t *testing.T) {
	schema, err := protoschema.FromFileDescriptorSet(testutil.Compile(t, testutil.Sources, "directory.proto"))
	require.NoError(t, err)

	l := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	grpcschema.RegisterReflection(s, schema)
	go func() { _ = s.Serve(l) }()
	t.Cleanup(s.Stop)

	out := filepath.Join(t.TempDir(), "fetched.pb")
	ts := newTestState("fetch", "--plaintext", "-o", out, "passthrough:///bufnet", "directory.Directory")
	ts.dialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return l.DialContext(ctx)
		}),
	}
	require.Equal(t, 0, ts.run(), ts.stderr.String())
	assert.Contains(t, ts.stderr.String(), "Fetched schema")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	fetched, err := protoschema.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "directory.proto", fetched.Primary().Path())
	assert.Equal(t, schema.String(), fetched.String())
}

func TestLogging(t *testing.T) {
	path := writeSet(t, testutil.Compile(t, testutil.Sources, "schema3.proto"))

	t.Run("default", func(t *testing.T) {
		ts := newTestState("describe", path)
		require.Equal(t, 0, ts.run())
		assert.NotContains(t, ts.stderr.String(), "Loaded schema")
	})
	t.Run("verbose", func(t *testing.T) {
		ts := newTestState("describe", "-v", path)
		require.Equal(t, 0, ts.run())
		assert.Contains(t, ts.stderr.String(), `level=debug msg="Loaded schema"`)
	})
	t.Run("json", func(t *testing.T) {
		ts := newTestState("--verbose", "--log-format", "json", "describe", path)
		require.Equal(t, 0, ts.run())
		lines := strings.Split(strings.TrimSpace(ts.stderr.String()), "\n")
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"msg":"Loaded schema"`)
		assert.Contains(t, lines[0], `"primary":"schema3.proto"`)
	})
	t.Run("bad format", func(t *testing.T) {
		ts := newTestState("--log-format", "xml", "describe", path)
		assert.Equal(t, exitError, ts.run())
		assert.Contains(t, ts.stderr.String(), `unsupported log format \"xml\"`)
		assert.Empty(t, ts.stdout.String())
	})
}
