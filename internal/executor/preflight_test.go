package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShell struct {
	fail map[string]string
	ran  []string
}

func (f *fakeShell) Run(ctx context.Context, command string) (string, error) {
	f.ran = append(f.ran, command)
	if out, ok := f.fail[command]; ok {
		return out, errors.New("exit status 1")
	}
	return "ok", nil
}

func TestRunPreflight_AllPass(t *testing.T) {
	sh := &fakeShell{}
	err := RunPreflight(context.Background(), sh, []string{"gffread --version", "test -d data"})
	require.NoError(t, err)
	assert.Equal(t, []string{"gffread --version", "test -d data"}, sh.ran)
}

func TestRunPreflight_StopsOnFirstFailure(t *testing.T) {
	sh := &fakeShell{fail: map[string]string{"gffread --version": "gffread: not found\n"}}
	err := RunPreflight(context.Background(), sh, []string{"gffread --version", "test -d data"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPreflightFailed)
	assert.Contains(t, err.Error(), "gffread: not found")
	assert.Len(t, sh.ran, 1)
}

func TestRunPreflight_Empty(t *testing.T) {
	assert.NoError(t, RunPreflight(context.Background(), &fakeShell{}, nil))
}

func TestRunPreflight_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunPreflight(ctx, &fakeShell{}, []string{"true"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunPreflightWithResults_ContinuesPastFailure(t *testing.T) {
	sh := &fakeShell{fail: map[string]string{"a": "boom"}}
	results := RunPreflightWithResults(context.Background(), sh, []string{"a", "b"})
	require.Len(t, results, 2)
	assert.Error(t, results[0].Error)
	assert.Equal(t, "boom", results[0].Output)
	assert.NoError(t, results[1].Error)
}

func TestShellCommandRunner(t *testing.T) {
	r := &ShellCommandRunner{WorkDir: t.TempDir()}
	out, err := r.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	_, err = r.Run(context.Background(), "exit 2")
	assert.Error(t, err)
}
