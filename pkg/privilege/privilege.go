// Package privilege toggles the effective uid around the syscalls that need
// it when iexec is installed set-uid root.
//
// setresuid is applied to every thread of a Go process, so the effective uid
// stays consistent for whichever runtime thread issues the next syscall.
package privilege

import (
	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Credentials is the kernel uid interface
type Credentials interface {
	Getuid() int
	Geteuid() int
	Setresuid(ruid, euid, suid int) error
}

type unixCredentials struct{}

func (unixCredentials) Getuid() int                          { return unix.Getuid() }
func (unixCredentials) Geteuid() int                         { return unix.Geteuid() }
func (unixCredentials) Setresuid(ruid, euid, suid int) error { return unix.Setresuid(ruid, euid, suid) }

// Manager owns the uid transitions of the process
type Manager struct {
	cred Credentials
	log  logrus.FieldLogger

	dropped bool
}

// NewManager creates a manager on the process credentials
func NewManager(log logrus.FieldLogger) *Manager {
	return NewManagerWith(unixCredentials{}, log)
}

// NewManagerWith creates a manager on the given credentials
func NewManagerWith(cred Credentials, log logrus.FieldLogger) *Manager {
	return &Manager{cred: cred, log: log}
}

// DropTemporarily sets the effective uid to the real uid. The saved uid is
// kept so Raise can succeed later.
func (m *Manager) DropTemporarily() error {
	uid := m.cred.Getuid()
	if uid == 0 {
		return nil
	}
	if err := m.cred.Setresuid(-1, uid, -1); err != nil {
		return errdefs.Privilege("seteuid", err)
	}
	m.log.Debugf("effective uid dropped to %d", uid)
	return nil
}

// Raise sets the effective uid to 0. It always fails after DropPermanently
// for a non-root real uid.
func (m *Manager) Raise() error {
	if m.dropped && m.cred.Getuid() != 0 {
		return errdefs.PrivilegeRaise(unix.EPERM)
	}
	if err := m.cred.Setresuid(-1, 0, -1); err != nil {
		return errdefs.PrivilegeRaise(err)
	}
	m.log.Debug("effective uid raised to 0")
	return nil
}

// DropPermanently sets real, effective and saved uid to the real uid.
// setuid(2) alone keeps the saved uid when the caller is already
// unprivileged, which would leave Raise possible.
func (m *Manager) DropPermanently() error {
	uid := m.cred.Getuid()
	if uid != 0 {
		if err := m.cred.Setresuid(uid, uid, uid); err != nil {
			return errdefs.Privilege("setuid", err)
		}
		m.log.Debugf("privilege dropped permanently to uid %d", uid)
	}
	m.dropped = true
	return nil
}

// Bracket runs fn with the effective uid raised and drops it temporarily
// afterwards, whether or not fn succeeded.
func (m *Manager) Bracket(fn func() error) error {
	if err := m.Raise(); err != nil {
		return err
	}
	err := fn()
	if dErr := m.DropTemporarily(); err == nil {
		err = dErr
	}
	return err
}
