package main

import (
	"io"
	"strconv"

	"github.com/criyle/iexec/pkg/config"
	"github.com/criyle/iexec/pkg/logging"
	"github.com/criyle/iexec/pkg/pidns"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

// initArg selects the supervisor stage re-executed inside a PID namespace
const initArg = "iexec-init"

// initConfig is the command line of the supervisor stage
type initConfig struct {
	config.Config
	// MountProc prepares a private mount namespace with a fresh /proc
	MountProc bool
}

// initArgs builds argv of the supervisor stage for c
func initArgs(argv0 string, c *config.Config) []string {
	args := []string{
		argv0,
		initArg,
		"--deathsig=" + strconv.Itoa(int(c.DeathSignal)),
		"--verbosity=" + strconv.Itoa(int(c.Verbosity)),
	}
	if _, ok := c.PIDNS.(pidns.New); ok {
		args = append(args, "--mount-proc")
	}
	args = append(args, "--")
	return append(args, c.Args...)
}

func newInitCommand(stderr io.Writer, run func(*initConfig) error) *cobra.Command {
	var (
		c         = initConfig{Config: config.Default()}
		deathSig  int
		verbosity int
	)
	cmd := &cobra.Command{
		Use:           initArg,
		Hidden:        true,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.DeathSignal = unix.Signal(deathSig)
			c.Verbosity = logging.Level(verbosity).Clamp()
			c.PIDNS = pidns.Inherit{}
			c.Args = args
			return run(&c)
		},
	}
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.BoolVar(&c.MountProc, "mount-proc", false, "")
	f.IntVar(&deathSig, "deathsig", int(config.DefaultDeathSignal), "")
	f.IntVar(&verbosity, "verbosity", int(logging.DefaultLevel), "")
	return cmd
}
