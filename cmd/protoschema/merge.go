package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodynamic/protoschema"
)

type mergeCmd struct {
	gs      *globalState
	output  string
	name    string
	pkg     string
	syntax  string
	imports []string
}

func getCmdMerge(gs *globalState) *cobra.Command {
	c := &mergeCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "merge <file>...",
		Short: "Merge schemas into one",
		Long: "Merge combines the files of several schemas into a single schema. The merged schema's " +
			"primary file is a new, empty file that imports the files of all merged schemas. Files that " +
			"appear in more than one schema must be identical.",
		Args: cobra.MinimumNArgs(1),
		RunE: c.run,
	}
	flags := cmd.Flags()
	flags.StringVarP(&c.output, "output", "o", "", "file to write the merged schema to (default stdout)")
	flags.StringVar(&c.name, "name", "", "name of the new primary file (default is generated)")
	flags.StringVar(&c.pkg, "package", "", "package of the new primary file")
	flags.StringVar(&c.syntax, "syntax", "proto2", "syntax of the new primary file, 'proto2' or 'proto3'")
	flags.StringArrayVar(&c.imports, "import", nil, "additional file for the primary file to import; must be in a merged schema")
	return cmd
}

func (c *mergeCmd) run(_ *cobra.Command, args []string) error {
	builder := protoschema.NewBuilder().SetPackage(protoreflect.FullName(c.pkg))
	if c.name != "" {
		builder.SetName(c.name)
	}
	switch c.syntax {
	case "proto2":
		builder.SetSyntax(protoreflect.Proto2)
	case "proto3":
		builder.SetSyntax(protoreflect.Proto3)
	default:
		return fmt.Errorf("%w: unsupported syntax %q", protoschema.ErrInvalidInput, c.syntax)
	}
	for _, path := range args {
		schema, err := readSchema(c.gs, path)
		if err != nil {
			return err
		}
		if err := builder.TryAddSchema(schema); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	for _, imp := range c.imports {
		builder.AddDependency(imp)
	}
	merged, err := builder.Build()
	if err != nil {
		return err
	}
	c.gs.logger.WithFields(logrus.Fields{
		"primary": merged.Primary().Path(),
		"files":   len(merged.Files()),
	}).Info("Merged schemas")
	return writeSchema(c.gs, c.output, merged)
}
