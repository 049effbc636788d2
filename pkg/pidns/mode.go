package pidns

import (
	"strconv"
)

// Mode selects how the supervised process obtains its PID namespace.
// Exactly one of Inherit, New, EnterByPID, EnterByFile or EnterByFD.
type Mode interface {
	String() string
	isMode()
}

// Inherit keeps the current PID namespace and does not fork
type Inherit struct{}

// New creates a fresh PID namespace (with its own mount namespace and /proc)
type New struct{}

// EnterByPID joins the PID namespace of a running process
type EnterByPID struct {
	PID int
}

// EnterByFile joins the PID namespace referenced by a namespace file
type EnterByFile struct {
	Path string
}

// EnterByFD joins the PID namespace referenced by an inherited file descriptor
type EnterByFD struct {
	FD int
}

func (Inherit) isMode()     {}
func (New) isMode()         {}
func (EnterByPID) isMode()  {}
func (EnterByFile) isMode() {}
func (EnterByFD) isMode()   {}

func (Inherit) String() string       { return "inherit" }
func (New) String() string           { return "new" }
func (m EnterByPID) String() string  { return "pid:" + strconv.Itoa(m.PID) }
func (m EnterByFile) String() string { return "file:" + m.Path }
func (m EnterByFD) String() string   { return "fd:" + strconv.Itoa(m.FD) }

// File returns the namespace file of the target process
func (m EnterByPID) File() EnterByFile {
	return EnterByFile{Path: "/proc/" + strconv.Itoa(m.PID) + "/ns/pid"}
}

// Forks reports whether the mode requires the supervisor to run in a
// forked child. unshare / setns on a PID namespace only affect processes
// forked afterwards, never the caller.
func Forks(m Mode) bool {
	_, inherit := m.(Inherit)
	return m != nil && !inherit
}
