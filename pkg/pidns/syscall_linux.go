package pidns

import (
	"os"
	"os/exec"

	"github.com/criyle/iexec/pkg/mount"
	"golang.org/x/sys/unix"
)

const (
	cloneNewPID = unix.CLONE_NEWPID
	cloneNewNS  = unix.CLONE_NEWNS

	// SelfExe is the running executable, used to re-exec the supervisor
	// stage inside the namespace
	SelfExe = "/proc/self/exe"
)

type unixSyscalls struct{}

func (unixSyscalls) Unshare(flags int) error        { return unix.Unshare(flags) }
func (unixSyscalls) Setns(fd int, nstype int) error { return unix.Setns(fd, nstype) }
func (unixSyscalls) Close(fd int) error             { return unix.Close(fd) }
func (unixSyscalls) Mount(m *mount.Mount) error     { return m.Mount() }

func (unixSyscalls) Open(path string) (int, error) {
	return unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
}

// startSelf re-executes the running binary with argv. The child shares
// stdio and environment; it is started from the calling thread so it
// inherits that thread's pid_for_children namespace.
func startSelf(argv []string) (int, error) {
	cmd := exec.Cmd{
		Path:   SelfExe,
		Args:   argv,
		Env:    os.Environ(),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}
