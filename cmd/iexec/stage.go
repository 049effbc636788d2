package main

import (
	"context"
	"os"

	"github.com/criyle/iexec/pkg/config"
	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/criyle/iexec/pkg/pidns"
	"github.com/criyle/iexec/pkg/privilege"
	"github.com/criyle/iexec/pkg/reaper"
	"github.com/criyle/iexec/pkg/supervisor"
	"github.com/sirupsen/logrus"
)

type privileger interface {
	pidns.Privileger
	DropTemporarily() error
}

type namespacer interface {
	Fork(m pidns.Mode, argv []string) (int, error)
	PrepareMounts() error
}

type reaperCloser interface {
	supervisor.Reaper
	Close()
}

// stage holds what the entry and supervisor stages act on
type stage struct {
	log       logrus.FieldLogger
	priv      privileger
	ns        namespacer
	newReaper func() reaperCloser
	supervise func(ctx context.Context, r supervisor.Reaper, c *config.Config) (int, error)
	getpid    func() int
}

func newStage(log logrus.FieldLogger) *stage {
	priv := privilege.NewManager(log)
	return &stage{
		log:       log,
		priv:      priv,
		ns:        pidns.NewController(priv, log),
		newReaper: func() reaperCloser { return reaper.New(log) },
		supervise: func(ctx context.Context, r supervisor.Reaper, c *config.Config) (int, error) {
			return supervisor.New(log, r).Run(ctx, c.DeathSignal, c.Args)
		},
		getpid: os.Getpid,
	}
}

// parent runs the entry stage. Inherit supervises in place; every other
// mode forks the supervisor stage into the namespace and reaps it.
func (s *stage) parent(ctx context.Context, argv0 string, c *config.Config) (int, error) {
	if err := s.priv.DropTemporarily(); err != nil {
		return errdefs.ExitFailure, err
	}

	// no fork: this process is the supervisor
	if !pidns.Forks(c.PIDNS) {
		if err := s.priv.DropPermanently(); err != nil {
			return errdefs.ExitFailure, err
		}
		return s.run(ctx, c)
	}

	_, isNew := c.PIDNS.(pidns.New)
	if s.getpid() == 1 {
		s.log.Warn("running as init process")
		s.log.Warn("-p or --pidns should not be used with init")
	}
	if isNew {
		s.log.Warn("running as init process in new PID namespace")
	}

	r := s.newReaper()
	defer r.Close()

	pid, err := s.ns.Fork(c.PIDNS, initArgs(argv0, c))
	if err != nil {
		return errdefs.ExitCode(err), err
	}
	if err := s.priv.DropPermanently(); err != nil {
		return errdefs.ExitFailure, err
	}
	if isNew {
		s.log.Warnf("to enter this new PID namespace, use %s --pidns=pid:%d %s", argv0, pid, shell())
	}
	return r.Reap(ctx, pid)
}

// child runs the supervisor stage re-executed inside the namespace
func (s *stage) child(ctx context.Context, c *initConfig) (int, error) {
	// a new PID namespace always starts its first process as pid 1
	if c.MountProc && s.getpid() != 1 {
		return errdefs.ExitFailure, errdefs.Config(
			"%s --mount-proc must run as init of a new PID namespace (this pid:%d)", initArg, s.getpid())
	}
	if err := s.priv.DropTemporarily(); err != nil {
		return errdefs.ExitFailure, err
	}
	if c.MountProc {
		if err := s.ns.PrepareMounts(); err != nil {
			return errdefs.ExitFailure, err
		}
	} else if err := s.priv.DropPermanently(); err != nil {
		return errdefs.ExitFailure, err
	}
	return s.run(ctx, &c.Config)
}

func (s *stage) run(ctx context.Context, c *config.Config) (int, error) {
	r := s.newReaper()
	defer r.Close()
	return s.supervise(ctx, r, c)
}
