package shell

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunCapturesOutput(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	runner := New(zap.NewNop())
	out, err := runner.Run(context.Background(), t.TempDir(), "sh", "-c", "echo baked; echo warn 1>&2")
	require.NoError(t, err)
	assert.Contains(t, string(out), "baked")
	assert.Contains(t, string(out), "warn")
}

func TestRunReturnsExitError(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	runner := New(nil)
	_, err := runner.Run(context.Background(), t.TempDir(), "sh", "-c", "echo nothing to commit; exit 1")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Contains(t, exitErr.Output, "nothing to commit")
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Run(context.Background(), "", "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
}

func TestCommandLineQuotes(t *testing.T) {
	t.Parallel()

	got := CommandLine("git", "commit", "-m", "Updating site", "--author=Jane <j@x.org>")
	assert.Equal(t, "git commit -m 'Updating site' '--author=Jane <j@x.org>'", got)
}
