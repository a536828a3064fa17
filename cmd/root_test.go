package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/config"
)

type fakeStages struct {
	calls  []string
	err    error
	closed bool
}

func (f *fakeStages) News(context.Context) (NewsOutcome, error) {
	f.calls = append(f.calls, "news")
	return NewsOutcome{RunID: "run-1"}, f.err
}

func (f *fakeStages) Timeline(context.Context) (string, error) {
	f.calls = append(f.calls, "timeline")
	return "file:///tmp/t.csv", f.err
}

func (f *fakeStages) Comments(context.Context) (string, error) {
	f.calls = append(f.calls, "comments")
	return "", f.err
}

func (f *fakeStages) Label(context.Context) (LabelOutcome, error) {
	f.calls = append(f.calls, "label")
	return LabelOutcome{}, f.err
}

func (f *fakeStages) Serve(context.Context) error {
	f.calls = append(f.calls, "serve")
	return f.err
}

func (f *fakeStages) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeStages) Close(context.Context) error {
	f.closed = true
	return nil
}

func withFakeApp(t *testing.T, fake *fakeStages) *config.Config {
	t.Helper()
	var seen config.Config
	prev := newApp
	newApp = func(_ context.Context, cfg config.Config) (Stages, error) {
		seen = cfg
		return fake, nil
	}
	t.Cleanup(func() { newApp = prev })
	return &seen
}

func run(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestSubcommandsDispatch(t *testing.T) {
	for _, name := range []string{"news", "timeline", "comments", "label", "serve"} {
		fake := &fakeStages{}
		withFakeApp(t, fake)
		require.NoError(t, run(name), name)
		assert.Equal(t, []string{name}, fake.calls)
		assert.True(t, fake.closed, name)
	}
}

func TestKeywordsFlagOverridesConfig(t *testing.T) {
	fake := &fakeStages{}
	seen := withFakeApp(t, fake)
	require.NoError(t, run("news", "--keywords", "/tmp/other.yaml"))
	assert.Equal(t, "/tmp/other.yaml", seen.Paths.KeywordsFile)
}

func TestStageErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakeStages{err: boom}
	withFakeApp(t, fake)
	require.ErrorIs(t, run("label"), boom)

	fake.err = context.Canceled
	require.NoError(t, run("news"), "interrupted harvests still report what they saved")
}

func TestMissingConfigFileFails(t *testing.T) {
	withFakeApp(t, &fakeStages{})
	require.Error(t, run("news", "--config", "/does/not/exist.yaml"))
}
