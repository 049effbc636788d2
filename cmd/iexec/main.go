// Command iexec runs a command as a subreaper, optionally inside a new or
// an existing PID namespace, and exits with the status of that command.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/criyle/iexec/pkg/config"
	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/criyle/iexec/pkg/logging"
)

// namespace syscalls and the fork after them must share one thread
func init() {
	runtime.LockOSThread()
	if len(os.Args) > 1 && os.Args[1] == initArg {
		runtime.GOMAXPROCS(1)
	}
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == initArg {
		os.Exit(runInit(os.Args[2:], os.Stderr))
	}
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run is the entry stage: it parses the command line and either supervises
// the command directly or forks the supervisor stage into a PID namespace.
func run(argv []string, stdout, stderr io.Writer) int {
	code := 0
	cmd := newRootCommand(stdout, stderr, func(c *config.Config) error {
		log := logging.New(stderr, c.Verbosity)
		var err error
		code, err = newStage(log).parent(context.Background(), argv[0], c)
		if err != nil {
			errdefs.Report(log, err)
		}
		return nil
	})
	cmd.SetArgs(argv[1:])
	if err := cmd.Execute(); err != nil {
		return usageFailure(stderr, err)
	}
	return code
}

func usageFailure(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "iexec: %v\n", err)
	var u *usageError
	if errors.As(err, &u) {
		fmt.Fprintln(stderr, "Try 'iexec --help' for more information.")
	}
	return errdefs.ExitFailure
}

// runInit is the supervisor stage running inside the PID namespace
func runInit(args []string, stderr io.Writer) int {
	code := 0
	cmd := newInitCommand(stderr, func(c *initConfig) error {
		log := logging.New(stderr, c.Verbosity)
		var err error
		code, err = newStage(log).child(context.Background(), c)
		if err != nil {
			errdefs.Report(log, err)
		}
		return nil
	})
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", initArg, err)
		return errdefs.ExitFailure
	}
	return code
}

func shell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}
