package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/criyle/iexec/pkg/errdefs"
	"golang.org/x/sys/unix"
)

// defaultPath is searched by execvp when PATH is unset
const defaultPath = "/bin:/usr/bin"

type unixKernel struct{}

func (unixKernel) Getpid() int { return unix.Getpid() }

func (unixKernel) SetChildSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}

func (unixKernel) SetPdeathsig(sig unix.Signal) error {
	return unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(sig), 0, 0, 0)
}

// startCommand starts c with its assignments appended to the environment.
// The command is looked up with the PATH the command itself will see.
func startCommand(c Command) (int, error) {
	env := append(os.Environ(), c.Env...)
	path, err := lookPath(c.Args[0], env)
	if err != nil {
		return 0, errdefs.Exec(c.Args[0], err)
	}
	cmd := exec.Cmd{
		Path:   path,
		Args:   c.Args,
		Env:    env,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if err := cmd.Start(); err != nil {
		return 0, errdefs.Exec(c.Args[0], err)
	}
	return cmd.Process.Pid, nil
}

func lookPath(file string, env []string) (string, error) {
	if strings.Contains(file, "/") {
		return exec.LookPath(file)
	}
	path, ok := lookupEnv(env, "PATH")
	if !ok {
		path = defaultPath
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		if p, err := exec.LookPath(dir + "/" + file); err == nil {
			return p, nil
		}
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

// lookupEnv returns the last value of key in env
func lookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}
