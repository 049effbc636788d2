// Package supervisor runs the target command under a subreaper (or init)
// and propagates its exit status.
package supervisor

import (
	"context"
	"strings"

	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Kernel is the process attribute interface the supervisor needs
type Kernel interface {
	Getpid() int
	SetChildSubreaper() error
	SetPdeathsig(sig unix.Signal) error
}

// Reaper reclaims children, see package reaper
type Reaper interface {
	Reap(ctx context.Context, pid int) (int, error)
	ReapForever(ctx context.Context) error
}

// Command is the positional arguments split at the command boundary
type Command struct {
	// Env are the NAME=VALUE assignments applied to the command only
	Env []string
	// Args is the command and its arguments, empty if none was given
	Args []string
}

// SplitCommand splits args before the first token without '='. Tokens in
// front of it are environment assignments; it and everything after it form
// the command line.
func SplitCommand(args []string) Command {
	i := 0
	for i < len(args) && strings.Contains(args[i], "=") {
		i++
	}
	return Command{
		Env:  args[:i:i],
		Args: args[i:],
	}
}

// Supervisor is the process that starts and outlives the target command
type Supervisor struct {
	log    logrus.FieldLogger
	kernel Kernel
	reaper Reaper
	start  func(Command) (int, error)
}

// New creates a supervisor for the running process
func New(log logrus.FieldLogger, r Reaper) *Supervisor {
	return &Supervisor{
		log:    log,
		kernel: unixKernel{},
		reaper: r,
		start:  startCommand,
	}
}

// Run installs the subreaper flag and the death signal, starts the command
// in args and reaps until it has exited. It returns the exit code for the
// process. Without a command, init reaps forever while any other process
// fails.
func (s *Supervisor) Run(ctx context.Context, deathSig unix.Signal, args []string) (int, error) {
	self := s.kernel.Getpid()

	// init is already the reaper of its namespace
	if self != 1 {
		if err := s.kernel.SetChildSubreaper(); err != nil {
			return errdefs.ExitFailure, errdefs.Process("prctl(PR_SET_CHILD_SUBREAPER)", err)
		}
	}
	if deathSig != 0 {
		if err := s.kernel.SetPdeathsig(deathSig); err != nil {
			return errdefs.ExitFailure, errdefs.Process("prctl(PR_SET_PDEATHSIG)", err)
		}
		s.log.Debugf("parent death signal set to %v", unix.SignalName(deathSig))
	}

	cmd := SplitCommand(args)
	switch {
	case len(cmd.Args) > 0:
		pid, err := s.start(cmd)
		if err != nil {
			return errdefs.ExitCode(err), err
		}
		s.log.Debugf("started %q as pid %d", cmd.Args[0], pid)
		return s.reaper.Reap(ctx, pid)

	case self == 1:
		s.log.Info("no command specified, reaping as init")
		return errdefs.ExitFailure, s.reaper.ReapForever(ctx)

	default:
		return errdefs.ExitFailure, errdefs.Config(
			"No command specified: command needs for non-init process (init pid:1, this pid:%d)", self)
	}
}
