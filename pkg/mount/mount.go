// Package mount describes the mount syscalls a freshly created mount
// namespace needs before the supervised command runs.
package mount

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Mount defines syscall for mount points
type Mount struct {
	Source, Target, FsType, Data string
	Flags                        uintptr
}

// IsPrivate reports whether the mount only makes target private
func (m Mount) IsPrivate() bool {
	return m.Flags&unix.MS_PRIVATE != 0
}

// IsReadOnly reports whether the mount is read only
func (m Mount) IsReadOnly() bool {
	return m.Flags&unix.MS_RDONLY == unix.MS_RDONLY
}

func (m Mount) String() string {
	switch {
	case m.IsPrivate():
		rec := ""
		if m.Flags&unix.MS_REC == unix.MS_REC {
			rec = "r"
		}
		return fmt.Sprintf("%sprivate[%s]", rec, m.Target)

	case m.FsType == "proc":
		flag := "rw"
		if m.IsReadOnly() {
			flag = "ro"
		}
		return fmt.Sprintf("proc[%s:%s]", m.Target, flag)

	default:
		return fmt.Sprintf("mount[%s,%s:%s:%x,%s]", m.FsType, m.Source, m.Target, m.Flags, m.Data)
	}
}
