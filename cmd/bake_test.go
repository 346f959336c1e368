package cmd

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitebaker/internal/config"
	"github.com/JakeFAU/sitebaker/internal/deploy"
	"github.com/JakeFAU/sitebaker/internal/site"
)

type fakeBake struct {
	req      site.BakeRequest
	all      bool
	slug     string
	commit   *deploy.Commit
	ended    bool
	released bool
	bakeErr  error
}

func (f *fakeBake) BakeAll(context.Context) error {
	f.all = true
	return f.bakeErr
}

func (f *fakeBake) BakeSlug(_ context.Context, slug string) error {
	f.slug = slug
	return f.bakeErr
}

func (f *fakeBake) Deploy(_ context.Context, commit deploy.Commit) error {
	f.commit = &commit
	return nil
}

func (f *fakeBake) Result() site.BakeResult { return site.BakeResult{Staged: 3} }
func (f *fakeBake) End()                    { f.ended = true }

func runCLI(t *testing.T, fake *fakeBake, args ...string) error {
	t.Helper()
	origLoad, origOpen := loadRuntime, openBake
	t.Cleanup(func() { loadRuntime, openBake = origLoad, origOpen })

	loadRuntime = func(string) (*Runtime, error) {
		return &Runtime{Config: config.Config{}, Logger: zap.NewNop()}, nil
	}
	openBake = func(_ context.Context, _ *Runtime, req site.BakeRequest) (siteBake, func(), error) {
		fake.req = req
		return fake, func() { fake.released = true }, nil
	}

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestBakeAllWithoutDeploy(t *testing.T) {
	fake := &fakeBake{}
	require.NoError(t, runCLI(t, fake, "bake", "--force"))

	assert.True(t, fake.all)
	assert.True(t, fake.req.Force)
	assert.Nil(t, fake.commit)
	assert.True(t, fake.ended)
	assert.True(t, fake.released)
}

func TestBakeSlugAndDeploy(t *testing.T) {
	fake := &fakeBake{}
	err := runCLI(t, fake, "bake", "--slug", "hello", "--deploy", "-m", "Fix typo",
		"--author-name", "Ada", "--author-email", "ada@example.org")
	require.NoError(t, err)

	assert.False(t, fake.all)
	assert.Equal(t, "hello", fake.slug)
	require.NotNil(t, fake.commit)
	assert.Equal(t, deploy.Commit{Message: "Fix typo", AuthorName: "Ada", AuthorEmail: "ada@example.org"}, *fake.commit)
}

func TestBakeFailureSkipsDeploy(t *testing.T) {
	fake := &fakeBake{bakeErr: errors.New("db down")}
	err := runCLI(t, fake, "bake", "--deploy")
	require.Error(t, err)

	assert.Nil(t, fake.commit)
	assert.True(t, fake.ended)
}

func TestBakeRejectsPartialAuthor(t *testing.T) {
	fake := &fakeBake{}
	err := runCLI(t, fake, "bake", "--author-name", "Ada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")
	assert.False(t, fake.all)
}

func TestBakeRuntimeLoadFailure(t *testing.T) {
	origLoad := loadRuntime
	t.Cleanup(func() { loadRuntime = origLoad })
	loadRuntime = func(string) (*Runtime, error) { return nil, errors.New("bad config") }

	root := newRootCmd()
	root.SetArgs([]string{"bake"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}
