package protosource

import (
	"context"
	"fmt"

	"github.com/bufbuild/protocompile"
	"github.com/bufbuild/protocompile/reporter"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodynamic/protoschema"
)

// ErrCompile is wrapped by all errors that result from invalid source, such
// as syntax errors, unresolvable imports, and references to unknown types. It
// wraps protoschema.ErrInvalidInput.
var ErrCompile = fmt.Errorf("%w: compilation failed", protoschema.ErrInvalidInput)

// Options configures how source files are compiled into a schema. The zero
// value is ready to use.
type Options struct {
	// The paths used to search for files, both those named in calls to
	// CompileFiles and those referenced in import statements. If empty, paths
	// are relative to the current working directory. Ignored by Compile,
	// whose sources are keyed by import path.
	ImportPaths []string
	// If true, the files in the schema will include source code info, so
	// comments in the source appear in the output of Schema.PrintProto.
	IncludeSourceInfo bool
	// If non-nil, this is called for every error found in the source. If it
	// returns nil, compilation continues, so that more errors can be
	// reported. If it returns an error, compilation stops and that error is
	// returned. If nil, compilation stops at the first error.
	ErrorReporter reporter.ErrorReporter
	// If non-nil, this is called for every warning, such as unused imports.
	WarningReporter reporter.WarningReporter
	// Options used to link the compiled files into a schema.
	Schema protoschema.Options
}

// Compile compiles the named files, whose contents are provided in the given
// sources map (keyed by path), into a schema. The last named file is the
// schema's primary file. It is the same as calling Options{}.Compile.
func Compile(ctx context.Context, sources map[string]string, names ...string) (*protoschema.Schema, error) {
	return Options{}.Compile(ctx, sources, names...)
}

// Compile compiles the named files, whose contents are provided in the given
// sources map, into a schema using these options.
func (opts Options) Compile(ctx context.Context, sources map[string]string, names ...string) (*protoschema.Schema, error) {
	return opts.compile(ctx, &protocompile.SourceResolver{
		Accessor: protocompile.SourceAccessorFromMap(sources),
	}, names)
}

// CompileFiles reads the named files from the file system and compiles them
// into a schema. The last named file is the schema's primary file. It is the
// same as calling Options{}.CompileFiles.
func CompileFiles(ctx context.Context, names ...string) (*protoschema.Schema, error) {
	return Options{}.CompileFiles(ctx, names...)
}

// CompileFiles reads the named files from the file system, searching the
// import paths, and compiles them into a schema using these options.
func (opts Options) CompileFiles(ctx context.Context, names ...string) (*protoschema.Schema, error) {
	return opts.compile(ctx, &protocompile.SourceResolver{
		ImportPaths: opts.ImportPaths,
	}, names)
}

func (opts Options) compile(ctx context.Context, resolver protocompile.Resolver, names []string) (*protoschema.Schema, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no files named", protoschema.ErrInvalidInput)
	}
	compiler := &protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(resolver),
		Reporter: reporter.NewReporter(opts.ErrorReporter, opts.WarningReporter),
	}
	if opts.IncludeSourceInfo {
		compiler.SourceInfoMode = protocompile.SourceInfoStandard
	}
	results, err := compiler.Compile(ctx, names...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}
	fds := make([]protoreflect.FileDescriptor, len(results))
	for i, res := range results {
		fds[i] = res
	}
	return opts.Schema.FromFileDescriptor(fds...)
}
