package mount

import (
	"golang.org/x/sys/unix"
)

// Mount calls mount syscall
func (m *Mount) Mount() error {
	return unix.Mount(m.Source, m.Target, m.FsType, m.Flags, m.Data)
}
