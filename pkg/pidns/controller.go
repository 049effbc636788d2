package pidns

import (
	"os"

	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/criyle/iexec/pkg/mount"
	"github.com/sirupsen/logrus"
)

// Privileger brackets the namespace syscalls
type Privileger interface {
	Raise() error
	Bracket(fn func() error) error
	DropPermanently() error
}

// Syscalls are the kernel namespace operations used by Controller
type Syscalls interface {
	Unshare(flags int) error
	Setns(fd int, nstype int) error
	Open(path string) (int, error)
	Close(fd int) error
	Mount(m *mount.Mount) error
}

// Starter starts argv as a child process and returns its pid
type Starter func(argv []string) (int, error)

// Controller creates or joins PID namespaces.
//
// unshare and setns change the namespace of the calling thread's future
// children only. All Controller methods and the Starter must run on the
// same locked OS thread (runtime.LockOSThread).
type Controller struct {
	priv  Privileger
	sys   Syscalls
	start Starter
	log   logrus.FieldLogger
}

// NewController creates a controller on the real kernel interface
func NewController(priv Privileger, log logrus.FieldLogger) *Controller {
	return &Controller{
		priv:  priv,
		sys:   unixSyscalls{},
		start: startSelf,
		log:   log,
	}
}

// Enter moves the caller's future children into the namespace selected by
// m. It is a no-op for Inherit.
func (c *Controller) Enter(m Mode) error {
	switch m := m.(type) {
	case Inherit:
		return nil

	case New:
		return c.unshare()

	case EnterByPID:
		c.log.Infof("entering PID namespace by PID=%d", m.PID)
		return c.enterByFile(m.File())

	case EnterByFile:
		return c.enterByFile(m)

	case EnterByFD:
		return c.enterByFD(m)
	}
	return errdefs.Config("invalid pid namespace mode %v", m)
}

// Fork enters m and starts argv as the child that ends up inside the
// namespace. The returned pid is as seen from the caller's namespace.
func (c *Controller) Fork(m Mode, argv []string) (int, error) {
	if !Forks(m) {
		return 0, errdefs.Config("pid namespace mode %v does not fork", m)
	}
	if err := c.Enter(m); err != nil {
		return 0, err
	}
	pid, err := c.start(argv)
	if err != nil {
		return 0, errdefs.Process("fork", err)
	}
	c.log.Debugf("forked pid namespace child %d", pid)
	return pid, nil
}

// PrepareMounts runs inside the first process of a new PID namespace:
// it moves into a new mount namespace, keeps its mounts from propagating
// back to the host and mounts a procfs matching the new PID namespace.
// Privilege is dropped permanently on success. Any failure is fatal since
// a stale /proc misreports every process.
func (c *Controller) PrepareMounts() error {
	c.log.Infof("preparing PID namespace (pid:%d)", os.Getpid())
	if err := c.priv.Raise(); err != nil {
		return err
	}
	if err := c.sys.Unshare(cloneNewNS); err != nil {
		return errdefs.Namespace("unshare while preparing PID namespace", err)
	}
	b := mount.NewPIDNamespaceBuilder()
	c.log.Debug(b)
	for i := range b.Mounts {
		m := &b.Mounts[i]
		if err := c.sys.Mount(m); err != nil {
			return errdefs.Namespace("mount "+m.String()+" while preparing PID namespace", err)
		}
	}
	return c.priv.DropPermanently()
}

func (c *Controller) unshare() error {
	return c.priv.Bracket(func() error {
		if err := c.sys.Unshare(cloneNewPID); err != nil {
			return errdefs.Namespace("unshare while creating new PID namespace", err)
		}
		return nil
	})
}

func (c *Controller) enterByFile(m EnterByFile) error {
	c.log.Infof("entering PID namespace by file=%s", m.Path)
	return c.priv.Bracket(func() error {
		fd, err := c.sys.Open(m.Path)
		if err != nil {
			return errdefs.NamespaceEnter("open while entering PID namespace", err)
		}
		defer c.sys.Close(fd)
		return c.setns(fd)
	})
}

func (c *Controller) enterByFD(m EnterByFD) error {
	c.log.Infof("entering PID namespace by fd=%d", m.FD)
	return c.priv.Bracket(func() error {
		defer c.sys.Close(m.FD)
		return c.setns(m.FD)
	})
}

func (c *Controller) setns(fd int) error {
	if err := c.sys.Setns(fd, cloneNewPID); err != nil {
		return errdefs.NamespaceEnter("setns while entering PID namespace", err)
	}
	return nil
}
