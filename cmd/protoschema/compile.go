package main

import (
	"github.com/bufbuild/protocompile/reporter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jhump/protodynamic/protosource"
)

type compileCmd struct {
	gs                *globalState
	output            string
	importPaths       []string
	includeSourceInfo bool
}

func getCmdCompile(gs *globalState) *cobra.Command {
	c := &compileCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "compile <file.proto>...",
		Short: "Compile protobuf sources into a schema",
		Long: "Compile compiles the given protobuf source files, and everything they import, into a schema. " +
			"The last file named is the schema's primary file.",
		Args: cobra.MinimumNArgs(1),
		RunE: c.run,
	}
	flags := cmd.Flags()
	flags.StringVarP(&c.output, "output", "o", "", "file to write the schema to (default stdout)")
	flags.StringArrayVarP(&c.importPaths, "import-path", "I", nil, "directory in which to search for imports")
	flags.BoolVar(&c.includeSourceInfo, "include-source-info", false, "include source code info, such as comments")
	return cmd
}

func (c *compileCmd) run(cmd *cobra.Command, args []string) error {
	opts := protosource.Options{
		ImportPaths:       c.importPaths,
		IncludeSourceInfo: c.includeSourceInfo,
		ErrorReporter: func(err reporter.ErrorWithPos) error {
			c.gs.logger.WithField("position", err.GetPosition().String()).Error(err.Unwrap())
			// keep going, to report as many errors as possible
			return nil
		},
		WarningReporter: func(err reporter.ErrorWithPos) {
			c.gs.logger.WithField("position", err.GetPosition().String()).Warn(err.Unwrap())
		},
	}
	schema, err := opts.CompileFiles(cmd.Context(), args...)
	if err != nil {
		return err
	}
	c.gs.logger.WithFields(logrus.Fields{
		"primary": schema.Primary().Path(),
		"files":   len(schema.Files()),
	}).Debug("Compiled schema")
	return writeSchema(c.gs, c.output, schema)
}
