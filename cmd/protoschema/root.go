package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/jhump/protodynamic/protoschema"
)

const (
	exitError        = 1
	exitInvalidInput = 2
)

type rootCommand struct {
	gs  *globalState
	cmd *cobra.Command
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{gs: gs}
	rootCmd := &cobra.Command{
		Use:               "protoschema",
		Short:             "Inspect, merge, and create protobuf schemas",
		Long:              "protoschema works with schemas stored as serialized google.protobuf.FileDescriptorSet files, like those produced by protoc with --include_imports.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.SetArgs(gs.cmdArgs[1:])
	rootCmd.SetOut(gs.stdout)
	rootCmd.SetErr(gs.stderr)
	rootCmd.SetIn(gs.stdin)

	subCommands := []func(*globalState) *cobra.Command{
		getCmdDescribe, getCmdLookup, getCmdMerge, getCmdCompile, getCmdFetch,
	}
	for _, sc := range subCommands {
		rootCmd.AddCommand(sc(gs))
	}

	c.cmd = rootCmd
	return c
}

func rootCmdPersistentFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&gs.flags.logFormat, "log-format", gs.flags.logFormat, "log output format, 'text' or 'json'")
	return flags
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if c.gs.flags.verbose {
		c.gs.logger.SetLevel(logrus.DebugLevel)
	}
	switch c.gs.flags.logFormat {
	case "json":
		c.gs.logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.gs.flags.logFormat)
	}
	return nil
}

// execute runs the command and returns the process exit code.
func (c *rootCommand) execute() int {
	err := c.cmd.ExecuteContext(c.gs.ctx)
	if err == nil {
		return 0
	}
	c.gs.logger.Error(err)
	if errors.Is(err, protoschema.ErrInvalidInput) {
		return exitInvalidInput
	}
	return exitError
}

// readSchema parses the descriptor set in the named file, or in stdin if the
// name is "-".
func readSchema(gs *globalState, path string) (*protoschema.Schema, error) {
	var r io.Reader
	if path == "-" {
		r = gs.stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	}
	schema, err := protoschema.ParseReader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	gs.logger.WithFields(logrus.Fields{
		"source":  path,
		"primary": schema.Primary().Path(),
		"files":   len(schema.Files()),
	}).Debug("Loaded schema")
	return schema, nil
}

// writeSchema writes the serialized schema to the named file, or to stdout if
// the name is empty or "-".
func writeSchema(gs *globalState, path string, schema *protoschema.Schema) error {
	data, err := schema.Bytes()
	if err != nil {
		return err
	}
	if path == "" || path == "-" {
		_, err = gs.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	gs.logger.WithFields(logrus.Fields{
		"output":  path,
		"primary": schema.Primary().Path(),
		"bytes":   len(data),
	}).Debug("Wrote schema")
	return nil
}

func writeYAML(gs *globalState, v any) error {
	enc := yaml.NewEncoder(gs.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
