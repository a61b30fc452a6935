package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/jhump/protodynamic/protoschema"
)

type lookupCmd struct {
	gs     *globalState
	format string
}

func getCmdLookup(gs *globalState) *cobra.Command {
	c := &lookupCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "lookup <file> <name>...",
		Short: "Show messages and enums in a schema",
		Long: "Lookup finds messages and enums by name and shows their fields or values. Names can be " +
			"fully-qualified or short (package-relative) names, as long as the short name is not ambiguous.",
		Args: cobra.MinimumNArgs(2),
		RunE: c.run,
	}
	cmd.Flags().StringVarP(&c.format, "format", "f", "text", "output format: 'text' or 'yaml'")
	return cmd
}

type typeSummary struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	File   string         `yaml:"file"`
	Fields []fieldSummary `yaml:"fields,omitempty"`
	Values []valueSummary `yaml:"values,omitempty"`
}

type fieldSummary struct {
	Name   string `yaml:"name"`
	Number int32  `yaml:"number"`
	Label  string `yaml:"label"`
	Type   string `yaml:"type"`
	Oneof  string `yaml:"oneof,omitempty"`
}

type valueSummary struct {
	Name   string `yaml:"name"`
	Number int32  `yaml:"number"`
}

func (c *lookupCmd) run(_ *cobra.Command, args []string) error {
	schema, err := readSchema(c.gs, args[0])
	if err != nil {
		return err
	}
	results := make([]typeSummary, 0, len(args)-1)
	for _, name := range args[1:] {
		ts, ok := lookupType(schema, name)
		if !ok {
			return fmt.Errorf("no message or enum named %q in schema", name)
		}
		c.gs.logger.WithFields(logrus.Fields{"name": name, "resolved": ts.Name}).Debug("Found type")
		results = append(results, ts)
	}
	if c.format == "yaml" {
		return writeYAML(c.gs, results)
	} else if c.format != "text" {
		return fmt.Errorf("unsupported format %q", c.format)
	}
	for i, ts := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(c.gs.stdout)
		}
		if _, err := fmt.Fprint(c.gs.stdout, ts.String()); err != nil {
			return err
		}
	}
	return nil
}

func lookupType(schema *protoschema.Schema, name string) (typeSummary, bool) {
	if md := schema.MessageDescriptor(name); md != nil {
		ts := typeSummary{Name: string(md.FullName()), Kind: "message", File: md.ParentFile().Path()}
		fields := md.Fields()
		for i, length := 0, fields.Len(); i < length; i++ {
			fld := fields.Get(i)
			fs := fieldSummary{
				Name:   string(fld.Name()),
				Number: int32(fld.Number()),
				Label:  fld.Cardinality().String(),
				Type:   fieldType(fld),
			}
			if oneof := fld.ContainingOneof(); oneof != nil && !oneof.IsSynthetic() {
				fs.Oneof = string(oneof.Name())
			}
			ts.Fields = append(ts.Fields, fs)
		}
		return ts, true
	}
	if ed := schema.EnumDescriptor(name); ed != nil {
		ts := typeSummary{Name: string(ed.FullName()), Kind: "enum", File: ed.ParentFile().Path()}
		values := ed.Values()
		for i, length := 0, values.Len(); i < length; i++ {
			val := values.Get(i)
			ts.Values = append(ts.Values, valueSummary{Name: string(val.Name()), Number: int32(val.Number())})
		}
		return ts, true
	}
	return typeSummary{}, false
}

func fieldType(fld protoreflect.FieldDescriptor) string {
	switch {
	case fld.IsMap():
		return fmt.Sprintf("map<%s, %s>", fieldType(fld.MapKey()), fieldType(fld.MapValue()))
	case fld.Message() != nil:
		return string(fld.Message().FullName())
	case fld.Enum() != nil:
		return string(fld.Enum().FullName())
	default:
		return fld.Kind().String()
	}
}

func (ts typeSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", ts.Kind, ts.Name, ts.File)
	for _, fs := range ts.Fields {
		fmt.Fprintf(&b, "  %s %s %s = %d", fs.Label, fs.Type, fs.Name, fs.Number)
		if fs.Oneof != "" {
			fmt.Fprintf(&b, " (oneof %s)", fs.Oneof)
		}
		b.WriteString("\n")
	}
	for _, vs := range ts.Values {
		fmt.Fprintf(&b, "  %s = %d\n", vs.Name, vs.Number)
	}
	return b.String()
}
