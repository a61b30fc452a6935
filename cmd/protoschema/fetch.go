package main

import (
	"crypto/tls"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jhump/protodynamic/grpcschema"
)

type fetchCmd struct {
	gs          *globalState
	output      string
	plaintext   bool
	concurrency int
}

func getCmdFetch(gs *globalState) *cobra.Command {
	c := &fetchCmd{gs: gs}
	cmd := &cobra.Command{
		Use:   "fetch <address> [<symbol>...]",
		Short: "Download a schema from a gRPC server",
		Long: "Fetch uses the server reflection service of the gRPC server at the given address to download " +
			"the files that define the given symbols. If no symbols are given, the files for all services " +
			"that the server exposes are downloaded.",
		Args: cobra.MinimumNArgs(1),
		RunE: c.run,
	}
	flags := cmd.Flags()
	flags.StringVarP(&c.output, "output", "o", "", "file to write the schema to (default stdout)")
	flags.BoolVar(&c.plaintext, "plaintext", false, "use plain-text HTTP/2 instead of TLS")
	flags.IntVar(&c.concurrency, "concurrency", 4, "maximum number of concurrent reflection streams")
	return cmd
}

func (c *fetchCmd) run(cmd *cobra.Command, args []string) error {
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if c.plaintext {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, c.gs.dialOptions...)
	cc, err := grpc.NewClient(args[0], opts...)
	if err != nil {
		return fmt.Errorf("failed to create client for %q: %w", args[0], err)
	}
	defer func() {
		_ = cc.Close()
	}()

	c.gs.logger.WithFields(logrus.Fields{"address": args[0], "symbols": args[1:]}).Debug("Fetching schema")
	schema, err := grpcschema.Options{Concurrency: c.concurrency}.Fetch(cmd.Context(), cc, args[1:]...)
	if err != nil {
		return err
	}
	c.gs.logger.WithFields(logrus.Fields{
		"primary": schema.Primary().Path(),
		"files":   len(schema.Files()),
	}).Info("Fetched schema")
	return writeSchema(c.gs, c.output, schema)
}
