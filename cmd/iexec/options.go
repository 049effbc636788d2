package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/criyle/iexec/pkg/config"
	"github.com/criyle/iexec/pkg/logging"
	"github.com/criyle/iexec/pkg/pidns"
	"github.com/criyle/iexec/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const usage = `iexec [options] [NAME=VALUE]... [COMMAND [ARG]...]`

const long = `Run COMMAND as a subreaper (or init) that reclaims every orphaned
descendant and exits with the status of COMMAND.

PIDNS is one of inherit, new, pid:PID, file:PATH or fd:FD. A bare number
is taken as a PID and any other bare value as a PATH.`

// levelFlag is one direction of the shared verbosity. -v and -q are applied
// in command line order to the same level.
type levelFlag struct {
	level *logging.Level
	up    bool
}

var _ pflag.Value = (*levelFlag)(nil)

func (f *levelFlag) String() string { return "false" }

func (f *levelFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if !v {
		return nil
	}
	if f.up {
		*f.level = f.level.Increase()
	} else {
		*f.level = f.level.Decrease()
	}
	return nil
}

func (f *levelFlag) Type() string { return "bool" }

type options struct {
	deathSig  string
	pidns     string
	verbosity logging.Level
	version   bool
}

// newRootCommand creates the option model. run receives the parsed config
// and is not called for --help, --version or a malformed option.
func newRootCommand(stdout, stderr io.Writer, run func(*config.Config) error) *cobra.Command {
	o := options{
		deathSig:  "HUP",
		verbosity: logging.DefaultLevel,
	}

	cmd := &cobra.Command{
		Use:           usage,
		Short:         "subreaper and PID namespace process supervisor",
		Long:          long,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.version {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return nil
			}
			c, err := o.config(cmd.Flags().Changed("pidns"), args)
			if err != nil {
				return err
			}
			return run(c)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.SetInterspersed(false)
	f.SortFlags = false
	f.StringVarP(&o.deathSig, "deathsig", "k", o.deathSig, "signal delivered when the parent dies: SIGNAME, SIGNUM or none")
	f.StringVarP(&o.pidns, "pidns", "p", "", "run in a PID namespace (default new when given without value)")
	f.Lookup("pidns").NoOptDefVal = "new"
	f.VarP(&levelFlag{level: &o.verbosity, up: true}, "verbose", "v", "increase verbosity")
	f.Lookup("verbose").NoOptDefVal = "true"
	f.VarP(&levelFlag{level: &o.verbosity}, "quiet", "q", "decrease verbosity")
	f.Lookup("quiet").NoOptDefVal = "true"
	f.BoolVarP(&o.version, "version", "V", false, "print version and exit")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})
	return cmd
}

func (o *options) config(pidnsSet bool, args []string) (*config.Config, error) {
	c := config.Default()

	sig, err := config.ParseSignal(o.deathSig)
	if err != nil {
		return nil, &usageError{err}
	}
	c.DeathSignal = sig

	if pidnsSet {
		m, err := config.ParsePIDNS(o.pidns)
		if err != nil {
			return nil, &usageError{err}
		}
		c.PIDNS = m
	} else {
		c.PIDNS = pidns.Inherit{}
	}

	c.Verbosity = o.verbosity
	c.Args = args
	return &c, nil
}

// usageError is a malformed command line
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }
