package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	calls  [][]string
	failOn string
	cancel context.CancelFunc
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.cancel != nil {
		f.cancel()
	}
	if f.failOn != "" && args[len(args)-2] == f.failOn {
		return []byte("rsync: link_stat failed"), errors.New("exit status 23")
	}
	return nil, nil
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestSyncExpandsGlobsAndLiterals(t *testing.T) {
	t.Parallel()

	wp := t.TempDir()
	touch(t, filepath.Join(wp, "favicon.ico"))
	touch(t, filepath.Join(wp, "favicon-32.png"))

	runner := &fakeRunner{}
	s, err := New(Config{
		WordpressDir: wp,
		BakedDir:     "/srv/baked",
		Paths: []Path{
			{Source: "wp-content", Dest: "."},
			{Source: "favicon*", Dest: "."},
			{Source: "slides/", Dest: "slides"},
		},
	}, runner, zap.NewNop())
	require.NoError(t, err)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 3}, res)

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"rsync", "-havz", "--delete", filepath.Join(wp, "wp-content"), "/srv/baked/"}, runner.calls[0])
	assert.Equal(t, []string{"rsync", "-havz", "--delete",
		filepath.Join(wp, "favicon-32.png"), filepath.Join(wp, "favicon.ico"), "/srv/baked/"}, runner.calls[1])
	assert.Equal(t, []string{"rsync", "-havz", "--delete", filepath.Join(wp, "slides") + "/", "/srv/baked/slides"}, runner.calls[2])
}

func TestSyncIsBestEffort(t *testing.T) {
	t.Parallel()

	wp := t.TempDir()
	runner := &fakeRunner{failOn: filepath.Join(wp, "404.html")}
	s, err := New(Config{
		WordpressDir: wp,
		BakedDir:     "/srv/baked",
		RsyncBin:     "/usr/bin/rsync",
		RsyncArgs:    []string{"-a"},
		Paths: []Path{
			{Source: "404.html"},
			{Source: "nothing-*.png"},
			{Source: "wp-includes"},
		},
	}, runner, nil)
	require.NoError(t, err)

	res, err := s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Synced: 1, Skipped: 1, Failed: 1}, res)
	require.Len(t, runner.calls, 2)
	assert.Equal(t, "/usr/bin/rsync", runner.calls[1][0])
}

func TestSyncStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{cancel: cancel}
	s, err := New(Config{
		BakedDir: "/srv/baked",
		Paths:    []Path{{Source: "/a"}, {Source: "/b"}},
	}, runner, nil)
	require.NoError(t, err)

	_, err = s.Sync(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, runner.calls, 1)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BakedDir: "/srv/baked"}, nil, nil)
	require.Error(t, err)
	_, err = New(Config{}, &fakeRunner{}, nil)
	require.Error(t, err)
}
