// Package errdefs defines the failure classes of iexec and how each one
// terminates the process.
package errdefs

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kind classifies a failure
type Kind int

// Failure kinds
const (
	KindConfig Kind = iota + 1
	KindPrivilege
	KindNamespace
	KindExec
	KindWait
	KindProcess
)

// Exit codes
const (
	ExitFailure = 1
	ExitNoCmd   = 127
)

var kindString = []string{
	"",
	"config",
	"privilege",
	"namespace",
	"exec",
	"wait",
	"process",
}

func (k Kind) String() string {
	i := int(k)
	if i > 0 && i < len(kindString) {
		return kindString[i]
	}
	return "unknown"
}

// Error is a classified failure. Op names the operation that failed
// (e.g. "setns", "prctl(PR_SET_CHILD_SUBREAPER)") and Err holds the cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error

	// level overrides the default log level of the kind
	level logrus.Level
}

func (e *Error) Error() string {
	switch {
	case e.Op == "":
		return e.Err.Error()
	case e.Err == nil:
		return e.Op
	default:
		return e.Op + ": " + e.Err.Error()
	}
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer
func (e *Error) Cause() error { return e.Err }

func newError(k Kind, lvl logrus.Level, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err, level: lvl}
}

// Config reports a malformed option value or an unusable invocation
func Config(format string, args ...interface{}) error {
	return newError(KindConfig, logrus.ErrorLevel, "", errors.Errorf(format, args...))
}

// Privilege reports a failed uid transition
func Privilege(op string, err error) error {
	return newError(KindPrivilege, logrus.FatalLevel, op, errors.WithStack(err))
}

// PrivilegeRaise reports that the effective uid could not be promoted
func PrivilegeRaise(err error) error {
	return newError(KindPrivilege, logrus.ErrorLevel, "cannot promote privilege", errors.WithStack(err))
}

// Namespace reports a failed unshare / mount during namespace creation
func Namespace(op string, err error) error {
	return newError(KindNamespace, logrus.FatalLevel, op, errors.WithStack(err))
}

// NamespaceEnter reports a failed open / setns while joining a namespace
func NamespaceEnter(op string, err error) error {
	return newError(KindNamespace, logrus.ErrorLevel, op, errors.WithStack(err))
}

// Exec reports that the target command could not be started
func Exec(name string, err error) error {
	return newError(KindExec, logrus.InfoLevel, name, errors.WithStack(err))
}

// Wait reports an unrecoverable wait failure
func Wait(op string, err error) error {
	return newError(KindWait, logrus.FatalLevel, op, errors.WithStack(err))
}

// Process reports any other fatal process operation failure (prctl, fork)
func Process(op string, err error) error {
	return newError(KindProcess, logrus.FatalLevel, op, errors.WithStack(err))
}

// KindOf returns the kind of err, or 0 if err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is classified as k
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// ExitCode maps err to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if IsKind(err, KindExec) {
		return ExitNoCmd
	}
	return ExitFailure
}

// Level returns the log level err is reported at
func Level(err error) logrus.Level {
	var e *Error
	if errors.As(err, &e) {
		return e.level
	}
	return logrus.FatalLevel
}

// Report logs err once at its level
func Report(log *logrus.Logger, err error) {
	if err == nil {
		return
	}
	log.Log(Level(err), err.Error())
}
