// Package reaper reclaims every child of a subreaper or init process while
// keeping track of the exit status of the one child it started.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// DefaultSignalTimeout bounds the wait for SIGCHLD after wait reports no
// children
const DefaultSignalTimeout = time.Second

// WaitFunc blocks until any child changes state
type WaitFunc func() (int, unix.WaitStatus, error)

// Reaper is the wait loop of a supervising process
type Reaper struct {
	log     logrus.FieldLogger
	wait    WaitFunc
	sigchld <-chan os.Signal
	timeout time.Duration
	stop    func()
}

// New creates a reaper on wait4(-1). SIGCHLD notification is registered
// immediately so a child exiting before the loop starts is not missed.
func New(log logrus.FieldLogger) *Reaper {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGCHLD)
	return &Reaper{
		log:     log,
		wait:    waitAny,
		sigchld: ch,
		timeout: DefaultSignalTimeout,
		stop:    func() { signal.Stop(ch) },
	}
}

// Close stops SIGCHLD notification
func (r *Reaper) Close() {
	if r.stop != nil {
		r.stop()
	}
}

// handle is the state of the supervising process
type handle struct {
	self    int
	tracked int // 0 when nothing is tracked

	recorded bool
	status   unix.WaitStatus
}

// Reap waits for children until pid has exited and no child remains, and
// returns the exit code to propagate for pid. Children other than pid were
// reparented to this process and are reclaimed without report.
func (r *Reaper) Reap(ctx context.Context, pid int) (int, error) {
	if pid <= 0 {
		return errdefs.ExitFailure, errdefs.Wait("reap", unix.EINVAL)
	}
	return r.loop(ctx, &handle{self: os.Getpid(), tracked: pid})
}

// ReapForever reclaims children until ctx is done. It only returns on ctx
// cancellation or a fatal wait error.
func (r *Reaper) ReapForever(ctx context.Context) error {
	_, err := r.loop(ctx, &handle{self: os.Getpid()})
	return err
}

func (r *Reaper) loop(ctx context.Context, h *handle) (int, error) {
	if h.tracked != 0 {
		r.log.Debugf("pid %d reaping, tracking child %d", h.self, h.tracked)
	} else {
		r.log.Debugf("pid %d reaping without tracked child", h.self)
	}
	for {
		if err := ctx.Err(); err != nil {
			return errdefs.ExitFailure, err
		}

		pid, ws, err := r.wait()
		switch {
		case err == nil:
			if h.tracked != 0 && pid == h.tracked {
				h.recorded = true
				h.status = ws
				r.log.Debugf("child %d exited: %s", pid, describe(ws))
				// keep going: reparented children may already be queued
				continue
			}
			r.log.Debugf("reaped orphan %d: %s", pid, describe(ws))

		case errors.Is(err, unix.EINTR):
			continue

		case errors.Is(err, unix.ECHILD):
			if h.recorded {
				return ExitCode(h.status), nil
			}
			// the exit may not be reapable yet right after SIGCHLD
			got, cErr := r.awaitSIGCHLD(ctx)
			if cErr != nil {
				return errdefs.ExitFailure, cErr
			}
			if h.tracked == 0 || got {
				continue
			}
			return errdefs.ExitFailure, errdefs.Wait(fmt.Sprintf("child %d exited abnormally", h.tracked), unix.ECHILD)

		default:
			return errdefs.ExitFailure, errdefs.Wait("wait4", err)
		}
	}
}

// awaitSIGCHLD blocks until SIGCHLD arrives or the timeout passes. A
// timeout is not an error, it means nothing died yet.
func (r *Reaper) awaitSIGCHLD(ctx context.Context) (bool, error) {
	t := time.NewTimer(r.timeout)
	defer t.Stop()

	select {
	case <-r.sigchld:
		return true, nil
	case <-t.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func waitAny() (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, 0, nil)
	return pid, ws, err
}

// ExitCode converts a wait status into the exit code propagated by iexec:
// the exit status for a normal exit, 128+signal for a killed process.
func ExitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return 128 + int(ws.Signal())
	}
	return errdefs.ExitFailure
}

func describe(ws unix.WaitStatus) string {
	switch {
	case ws.Exited():
		return fmt.Sprintf("exit status %d", ws.ExitStatus())
	case ws.Signaled():
		if ws.CoreDump() {
			return fmt.Sprintf("signal %v (core dumped)", ws.Signal())
		}
		return fmt.Sprintf("signal %v", ws.Signal())
	}
	return fmt.Sprintf("status %#x", uint32(ws))
}
