package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodynamic/protoschema"
)

type describeCmd struct {
	gs     *globalState
	format string
}

func getCmdDescribe(gs *globalState) *cobra.Command {
	c := &describeCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "describe <file>",
		Short: "Describe the contents of a schema",
		Long: "Describe lists the files of a schema, along with the messages, enums, and services " +
			"each file defines. Use \"-\" to read the schema from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: c.run,
	}
	cmd.Flags().StringVarP(&c.format, "format", "f", "text",
		"output format: 'text', 'yaml', 'proto' (protobuf source), or 'prototext'")
	return cmd
}

type schemaSummary struct {
	Primary string        `yaml:"primary"`
	Files   []fileSummary `yaml:"files"`
}

type fileSummary struct {
	Path     string   `yaml:"path"`
	Package  string   `yaml:"package,omitempty"`
	Syntax   string   `yaml:"syntax"`
	Imports  []string `yaml:"imports,omitempty"`
	Messages []string `yaml:"messages,omitempty"`
	Enums    []string `yaml:"enums,omitempty"`
	Services []string `yaml:"services,omitempty"`
}

func (c *describeCmd) run(_ *cobra.Command, args []string) error {
	schema, err := readSchema(c.gs, args[0])
	if err != nil {
		return err
	}
	switch c.format {
	case "text":
		_, err = fmt.Fprint(c.gs.stdout, summarize(schema).String())
		return err
	case "yaml":
		return writeYAML(c.gs, summarize(schema))
	case "proto":
		return schema.PrintProto(c.gs.stdout)
	case "prototext":
		_, err = fmt.Fprint(c.gs.stdout, schema.String())
		return err
	default:
		return fmt.Errorf("unsupported format %q", c.format)
	}
}

func summarize(schema *protoschema.Schema) schemaSummary {
	summary := schemaSummary{Primary: schema.Primary().Path()}
	for _, fd := range schema.Files() {
		fs := fileSummary{
			Path:    fd.Path(),
			Package: string(fd.Package()),
			Syntax:  fd.Syntax().String(),
		}
		imports := fd.Imports()
		for i, length := 0, imports.Len(); i < length; i++ {
			fs.Imports = append(fs.Imports, imports.Get(i).Path())
		}
		var addTypes func(msgs protoreflect.MessageDescriptors, enums protoreflect.EnumDescriptors)
		addTypes = func(msgs protoreflect.MessageDescriptors, enums protoreflect.EnumDescriptors) {
			for i, length := 0, enums.Len(); i < length; i++ {
				fs.Enums = append(fs.Enums, string(enums.Get(i).FullName()))
			}
			for i, length := 0, msgs.Len(); i < length; i++ {
				md := msgs.Get(i)
				if md.IsMapEntry() {
					continue
				}
				fs.Messages = append(fs.Messages, string(md.FullName()))
				addTypes(md.Messages(), md.Enums())
			}
		}
		addTypes(fd.Messages(), fd.Enums())
		services := fd.Services()
		for i, length := 0, services.Len(); i < length; i++ {
			fs.Services = append(fs.Services, string(services.Get(i).FullName()))
		}
		summary.Files = append(summary.Files, fs)
	}
	return summary
}

func (s schemaSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "primary: %s\n", s.Primary)
	for _, fs := range s.Files {
		fmt.Fprintf(&b, "\nfile %s (%s", fs.Path, fs.Syntax)
		if fs.Package != "" {
			fmt.Fprintf(&b, ", package %s", fs.Package)
		}
		b.WriteString(")\n")
		for _, imp := range fs.Imports {
			fmt.Fprintf(&b, "  import %s\n", imp)
		}
		for _, name := range fs.Messages {
			fmt.Fprintf(&b, "  message %s\n", name)
		}
		for _, name := range fs.Enums {
			fmt.Fprintf(&b, "  enum %s\n", name)
		}
		for _, name := range fs.Services {
			fmt.Fprintf(&b, "  service %s\n", name)
		}
	}
	return b.String()
}
