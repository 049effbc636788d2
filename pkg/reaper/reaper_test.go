package reaper

import (
	"context"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type waitResult struct {
	pid    int
	status unix.WaitStatus
	err    error
	// before runs when the result is consumed
	before func()
}

// script replays wait results in order, then reports ECHILD forever
type script struct {
	results []waitResult
	calls   int
}

func (s *script) wait() (int, unix.WaitStatus, error) {
	s.calls++
	if len(s.results) == 0 {
		return -1, 0, unix.ECHILD
	}
	r := s.results[0]
	s.results = s.results[1:]
	if r.before != nil {
		r.before()
	}
	if r.err != nil {
		return -1, 0, r.err
	}
	return r.pid, r.status, nil
}

func exited(code int) unix.WaitStatus { return unix.WaitStatus(code << 8) }

func killed(sig unix.Signal) unix.WaitStatus { return unix.WaitStatus(sig) }

func newTestReaper(s *script) (*Reaper, chan os.Signal, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	ch := make(chan os.Signal, 1)
	return &Reaper{
		log:     log,
		wait:    s.wait,
		sigchld: ch,
		timeout: 50 * time.Millisecond,
	}, ch, hook
}

func TestReapTrackedOnly(t *testing.T) {
	s := &script{results: []waitResult{{pid: 10, status: exited(3)}}}
	r, _, _ := newTestReaper(s)

	code, err := r.Reap(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, 2, s.calls, "keeps waiting until no child remains")
}

func TestReapDrainsAfterTrackedExit(t *testing.T) {
	s := &script{results: []waitResult{
		{pid: 21, status: exited(9)},
		{pid: 10, status: exited(0)},
		{pid: 22, status: exited(7)},
		{pid: 23, status: killed(unix.SIGKILL)},
	}}
	r, _, _ := newTestReaper(s)

	code, err := r.Reap(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Empty(t, s.results, "every queued orphan reclaimed")
}

func TestReapSignalled(t *testing.T) {
	s := &script{results: []waitResult{{pid: 10, status: killed(unix.SIGTERM)}}}
	r, _, _ := newTestReaper(s)

	code, err := r.Reap(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 128+int(unix.SIGTERM), code)
}

func TestReapRetriesEINTR(t *testing.T) {
	s := &script{results: []waitResult{
		{err: unix.EINTR},
		{err: unix.EINTR},
		{pid: 30, status: exited(1)},
		{err: unix.EINTR},
		{pid: 10, status: exited(42)},
		{err: unix.EINTR},
	}}
	r, _, _ := newTestReaper(s)

	code, err := r.Reap(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 42, code)
}

// random interleavings of the tracked exit, orphans and interruptions
func TestReapInterleavings(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		want := rnd.Intn(256)
		results := []waitResult{{pid: 1000, status: exited(want)}}
		for j, n := 0, rnd.Intn(8); j < n; j++ {
			results = append(results, waitResult{pid: 2000 + j, status: exited((want + 1 + j) % 256)})
		}
		for j, n := 0, rnd.Intn(4); j < n; j++ {
			results = append(results, waitResult{err: unix.EINTR})
		}
		rnd.Shuffle(len(results), func(a, b int) { results[a], results[b] = results[b], results[a] })

		s := &script{results: results}
		r, _, _ := newTestReaper(s)
		code, err := r.Reap(context.Background(), 1000)
		require.NoError(t, err)
		require.Equal(t, want, code, "iteration %d", i)
		require.Empty(t, s.results)
	}
}

func TestReapTrackedExitAfterECHILD(t *testing.T) {
	var (
		s  = &script{}
		ch chan os.Signal
	)
	s.results = []waitResult{
		{err: unix.ECHILD, before: func() {
			go func() {
				time.Sleep(10 * time.Millisecond)
				ch <- unix.SIGCHLD
			}()
		}},
		{pid: 10, status: exited(5)},
	}
	r, c, _ := newTestReaper(s)
	ch = c

	code, err := r.Reap(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 5, code)
}

func TestReapTrackedVanished(t *testing.T) {
	s := &script{results: []waitResult{{pid: 11, status: exited(0)}}}
	r, _, _ := newTestReaper(s)

	start := time.Now()
	code, err := r.Reap(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, errdefs.ExitFailure, code)
	assert.True(t, errdefs.IsKind(err, errdefs.KindWait))
	assert.ErrorIs(t, err, unix.ECHILD)
	assert.GreaterOrEqual(t, time.Since(start), r.timeout)
}

func TestReapWaitFailure(t *testing.T) {
	s := &script{results: []waitResult{{err: unix.EFAULT}}}
	r, _, _ := newTestReaper(s)

	code, err := r.Reap(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, errdefs.ExitFailure, code)
	assert.ErrorIs(t, err, unix.EFAULT)
	assert.Equal(t, errdefs.ExitFailure, errdefs.ExitCode(err))
}

func TestReapInvalidPid(t *testing.T) {
	r, _, _ := newTestReaper(&script{})
	_, err := r.Reap(context.Background(), 0)
	require.Error(t, err)
}

func TestReapForever(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &script{results: []waitResult{
		{pid: 5, status: exited(0)},
		{err: unix.ECHILD},
		{err: unix.EINTR},
		{pid: 6, status: killed(unix.SIGKILL)},
	}}
	r, ch, hook := newTestReaper(s)
	ch <- unix.SIGCHLD

	done := make(chan error, 1)
	go func() { done <- r.ReapForever(ctx) }()

	// several timeouts pass without a signal and the loop keeps going
	time.Sleep(4 * r.timeout)
	select {
	case err := <-done:
		t.Fatalf("returned early: %v", err)
	default:
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("did not stop on cancel")
	}
	assert.Empty(t, s.results)
	for _, e := range hook.AllEntries() {
		assert.NotContains(t, e.Message, "child 5")
		assert.NotContains(t, e.Message, "child 6")
	}
}

func TestReapForeverWaitFailure(t *testing.T) {
	s := &script{results: []waitResult{{err: unix.EINVAL}}}
	r, _, _ := newTestReaper(s)

	err := r.ReapForever(context.Background())
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindWait))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(exited(0)))
	assert.Equal(t, 255, ExitCode(exited(255)))
	assert.Equal(t, 137, ExitCode(killed(unix.SIGKILL)))
	assert.Equal(t, 129, ExitCode(killed(unix.SIGHUP)))
}
