// Package config holds the parsed iexec options and the parsers for the
// option values that carry semantics (death signal and PID namespace mode).
package config

import (
	"strconv"
	"strings"

	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/criyle/iexec/pkg/logging"
	"github.com/criyle/iexec/pkg/pidns"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// DefaultDeathSignal is delivered when the real parent dies unless
// overridden
const DefaultDeathSignal = unix.SIGHUP

// nsig is one past the largest valid signal number on Linux
const nsig = 65

// Config is built once at startup and read-only afterwards
type Config struct {
	// DeathSignal is installed with PR_SET_PDEATHSIG, 0 disables it
	DeathSignal unix.Signal

	// PIDNS selects the PID namespace of the supervised command
	PIDNS pidns.Mode

	// Verbosity gates diagnostics on stderr
	Verbosity logging.Level

	// Args are the positional arguments: NAME=VALUE assignments followed by
	// the command and its arguments
	Args []string
}

// Default returns the configuration used when no option is given
func Default() Config {
	return Config{
		DeathSignal: DefaultDeathSignal,
		PIDNS:       pidns.Inherit{},
		Verbosity:   logging.DefaultLevel,
	}
}

// ParseSignal parses a death signal spec: a number in 1..64 (decimal,
// 0x hex or 0 octal), a signal name with or without the SIG prefix in any
// case, or "none" which yields 0.
func ParseSignal(spec string) (unix.Signal, error) {
	if spec == "" {
		return 0, errdefs.Config("Invalid signal: %s", spec)
	}
	if strings.EqualFold(spec, "none") {
		return 0, nil
	}
	if n, err := parseNumber(spec, 64); err == nil {
		if n > 0 && n < nsig {
			return unix.Signal(n), nil
		}
		return 0, errdefs.Config("Invalid signal: %s", spec)
	} else if errors.Is(err, strconv.ErrRange) {
		return 0, errdefs.Config("Invalid signal: %s", spec)
	}

	name := strings.ToUpper(spec)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	return 0, errdefs.Config("Invalid signal: %s", spec)
}

// ParsePIDNS parses a PID namespace mode spec:
//
//	"" or new     create a new namespace
//	inherit       keep the current namespace
//	pid:PID       enter the namespace of PID (bare numbers too)
//	file:PATH     enter the namespace file PATH (bare non-numbers too)
//	fd:FD         enter the namespace referenced by an open FD
func ParsePIDNS(spec string) (pidns.Mode, error) {
	lower := strings.ToLower(spec)
	switch {
	case spec == "", lower == "new":
		return pidns.New{}, nil

	case lower == "inherit":
		return pidns.Inherit{}, nil

	case strings.HasPrefix(lower, "pid:"):
		pid, ok := parseInt(spec[len("pid:"):])
		if !ok || pid <= 0 {
			return nil, errdefs.Config("Invalid pidns: %s", spec)
		}
		return pidns.EnterByPID{PID: pid}, nil

	case strings.HasPrefix(lower, "file:"):
		path := spec[len("file:"):]
		if path == "" {
			return nil, errdefs.Config("Invalid pidns: %s", spec)
		}
		return pidns.EnterByFile{Path: path}, nil

	case strings.HasPrefix(lower, "fd:"):
		fd, ok := parseInt(spec[len("fd:"):])
		if !ok || fd < 0 {
			return nil, errdefs.Config("Invalid pidns: %s", spec)
		}
		return pidns.EnterByFD{FD: fd}, nil
	}

	// a bare token is a PID only when it is entirely a number
	switch n, err := parseNumber(spec, 32); {
	case err == nil && n > 0:
		return pidns.EnterByPID{PID: int(n)}, nil
	case err == nil, errors.Is(err, strconv.ErrRange):
		return nil, errdefs.Config("Invalid pidns: %s", spec)
	}
	return pidns.EnterByFile{Path: spec}, nil
}

func parseInt(s string) (int, bool) {
	n, err := parseNumber(s, 32)
	if err != nil {
		return 0, false
	}
	return int(n), true
}

var errSyntax = errors.New("invalid number syntax")

// parseNumber accepts the whole-token forms of strtol with base 0: an
// optional sign, then 0x/0X hex digits, 0-prefixed octal digits or decimal
// digits. Out of range values report strconv.ErrRange.
func parseNumber(s string, bitSize int) (int64, error) {
	body, neg := s, false
	if body != "" && (body[0] == '+' || body[0] == '-') {
		neg = body[0] == '-'
		body = body[1:]
	}
	base := 10
	switch {
	case len(body) > 2 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X'):
		base, body = 16, body[2:]
	case len(body) > 1 && body[0] == '0':
		base, body = 8, body[1:]
	}
	if body == "" {
		return 0, errSyntax
	}
	for _, c := range strings.ToLower(body) {
		if !(c >= '0' && c <= '9' || base == 16 && c >= 'a' && c <= 'f') {
			return 0, errSyntax
		}
	}
	if neg {
		body = "-" + body
	}
	n, err := strconv.ParseInt(body, base, bitSize)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, strconv.ErrRange
		}
		return 0, errSyntax
	}
	return n, nil
}
