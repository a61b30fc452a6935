package main

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// globalState holds everything that commands read from or write to, so that
// tests can run commands without touching the process's real stdio.
type globalState struct {
	ctx     context.Context
	cmdArgs []string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	logger  *logrus.Logger
	flags   globalFlags

	// added to the options of every gRPC client
	dialOptions []grpc.DialOption
}

type globalFlags struct {
	verbose   bool
	logFormat string
}

func newGlobalState(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) *globalState {
	logger := &logrus.Logger{
		Out:       stderr,
		Formatter: &logrus.TextFormatter{DisableTimestamp: true},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	return &globalState{
		ctx:     ctx,
		cmdArgs: args,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		logger:  logger,
		flags:   globalFlags{logFormat: "text"},
	}
}
