package mount

import (
	"strings"

	"golang.org/x/sys/unix"
)

const procFlag = unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC

// Builder builds an ordered list of mounts
type Builder struct {
	Mounts []Mount
}

// NewBuilder creates new mount builder instance
func NewBuilder() *Builder {
	return &Builder{}
}

// NewPIDNamespaceBuilder creates the mounts required by a process that is
// init of a new PID namespace: root made recursively private so nothing
// propagates back to the host, then a fresh procfs over /proc.
func NewPIDNamespaceBuilder() *Builder {
	return NewBuilder().
		WithPrivate("/", true).
		WithProc("/proc")
}

// WithPrivate marks target private, recursively if rec
func (b *Builder) WithPrivate(target string, rec bool) *Builder {
	var flags uintptr = unix.MS_PRIVATE
	if rec {
		flags |= unix.MS_REC
	}
	b.Mounts = append(b.Mounts, Mount{
		Source: "none",
		Target: target,
		Flags:  flags,
	})
	return b
}

// WithProc add proc file system
func (b *Builder) WithProc(target string) *Builder {
	b.Mounts = append(b.Mounts, Mount{
		Source: "proc",
		Target: target,
		FsType: "proc",
		Flags:  procFlag,
	})
	return b
}

func (b Builder) String() string {
	var sb strings.Builder
	sb.WriteString("Mounts: ")
	for i, m := range b.Mounts {
		sb.WriteString(m.String())
		if i != len(b.Mounts)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
