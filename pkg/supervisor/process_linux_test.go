package supervisor

import (
	"context"
	"testing"

	"github.com/criyle/iexec/pkg/errdefs"
	"github.com/criyle/iexec/pkg/reaper"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runReal(t *testing.T, args ...string) (int, error) {
	t.Helper()
	log, _ := test.NewNullLogger()
	r := reaper.New(log)
	defer r.Close()

	pid, err := startCommand(SplitCommand(args))
	if err != nil {
		return errdefs.ExitCode(err), err
	}
	return r.Reap(context.Background(), pid)
}

func TestStartCommandExitStatus(t *testing.T) {
	code, err := runReal(t, "/bin/sh", "-c", "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestStartCommandSignalled(t *testing.T) {
	code, err := runReal(t, "/bin/sh", "-c", "kill -TERM $$")
	require.NoError(t, err)
	assert.Equal(t, 143, code)
}

func TestStartCommandEnv(t *testing.T) {
	code, err := runReal(t, "IEXEC_TEST=bar", "sh", "-c", `test "$IEXEC_TEST" = bar`)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestStartCommandOrphans(t *testing.T) {
	// the background sleep is reparented away, the tracked exit still wins
	code, err := runReal(t, "sh", "-c", "sleep 0.1 & exit 4")
	require.NoError(t, err)
	assert.Equal(t, 4, code)
}

func TestStartCommandNotFound(t *testing.T) {
	code, err := runReal(t, "iexec-no-such-command")
	require.Error(t, err)
	assert.Equal(t, errdefs.ExitNoCmd, code)
	assert.True(t, errdefs.IsKind(err, errdefs.KindExec))
}

func TestStartCommandUsesAssignedPath(t *testing.T) {
	code, err := runReal(t, "PATH=/nonexistent", "sh", "-c", "true")
	require.Error(t, err)
	assert.Equal(t, errdefs.ExitNoCmd, code)
}

func TestLookupEnv(t *testing.T) {
	env := []string{"PATH=/a", "X=1", "PATH=/b", "NOVALUE"}
	v, ok := lookupEnv(env, "PATH")
	assert.True(t, ok)
	assert.Equal(t, "/b", v)

	_, ok = lookupEnv(env, "NOVALUE")
	assert.False(t, ok)
	_, ok = lookupEnv(env, "Y")
	assert.False(t, ok)
}
