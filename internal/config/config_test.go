package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Harvest.BatchSize)
	assert.Equal(t, 3, cfg.Harvest.Workers)
	assert.Equal(t, 5, cfg.Harvest.CheckpointEvery)
	assert.Equal(t, 40*time.Second, cfg.TaskTimeout())
	assert.Equal(t, 30*time.Second, cfg.PageLoadTimeout())
	assert.Equal(t, FetchModeHeadless, cfg.Fetch.Mode)
	assert.Equal(t, 100, cfg.Feed.LimitPerKeyword)
	assert.Equal(t, 2, cfg.Feed.Retries)
	assert.Equal(t, 250, cfg.Timeline.MaxItems)
	assert.Equal(t, int64(100), cfg.Comments.PageSize)
	require.Len(t, cfg.Label.Inputs, 3)
	assert.Equal(t, "YouTube", cfg.Label.Inputs[2].Source)
	assert.Equal(t, 5000, cfg.Label.Inputs[2].Limit)
	assert.Equal(t, "data/processed/hasil_analisis_sentimen_final.csv", cfg.Label.Output)
	assert.InDelta(t, 0.5, cfg.Label.MinScore, 0)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
harvest:
  batch_size: 4
  workers: 2
  timeout_seconds: 20
  task_grace_seconds: 5
fetch:
  mode: auto
feed:
  start_date: "2024-02-01"
  end_date: "2024-03-01"
timeline:
  username: harvester
  password: hunter2
comments:
  api_key: yt-key
  video_ids: ["qN3axfU1Geo", "JgF-A4rA1s8"]
label:
  inputs:
    - source: Portal Berita
      path: raw/news.csv
storage:
  backend: gcs
  bucket: harvest-bucket
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 4, cfg.Harvest.BatchSize)
	assert.Equal(t, 25*time.Second, cfg.TaskTimeout())
	assert.Equal(t, FetchModeAuto, cfg.Fetch.Mode)
	assert.Equal(t, []string{"qN3axfU1Geo", "JgF-A4rA1s8"}, cfg.Comments.VideoIDs)
	require.Len(t, cfg.Label.Inputs, 1)
	assert.Equal(t, "raw/news.csv", cfg.Label.Inputs[0].Path)
	assert.Equal(t, "harvest-bucket", cfg.Storage.Bucket)
	require.NoError(t, cfg.ValidateTimeline())
	require.NoError(t, cfg.ValidateComments())

	start, end := cfg.FeedWindow(time.Now())
	assert.Equal(t, "2024-02-01", start.Format(time.DateOnly))
	assert.Equal(t, "2024-03-01", end.Format(time.DateOnly))
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "zero batch size", mutate: func(c *Config) { c.Harvest.BatchSize = 0 }, want: "harvest.batch_size"},
		{name: "zero workers", mutate: func(c *Config) { c.Harvest.Workers = 0 }, want: "harvest.workers"},
		{name: "zero timeout", mutate: func(c *Config) { c.Harvest.TimeoutSeconds = 0 }, want: "harvest.timeout_seconds"},
		{name: "zero retries", mutate: func(c *Config) { c.Harvest.MaxRetries = 0 }, want: "harvest.max_retries"},
		{name: "unknown fetch mode", mutate: func(c *Config) { c.Fetch.Mode = "carrier-pigeon" }, want: "fetch.mode"},
		{name: "inverted settle window", mutate: func(c *Config) { c.Fetch.SettleMaxMs = 10 }, want: "fetch.settle_max_ms"},
		{name: "bad start date", mutate: func(c *Config) { c.Feed.StartDate = "01/02/2023" }, want: "feed.start_date"},
		{name: "min score out of range", mutate: func(c *Config) { c.Label.MinScore = 1.5 }, want: "label.min_score"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = "gcs" }, want: "storage.bucket"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "tape" }, want: "storage.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "expected %q in %v", tt.want, err)
		})
	}
}

func TestSourceValidation(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.ValidateTimeline()
	assert.True(t, errors.Is(err, ErrMissingCredentials))

	err = cfg.ValidateComments()
	assert.True(t, errors.Is(err, ErrMissingCredentials))

	cfg.Comments.APIKey = "key"
	err = cfg.ValidateComments()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video_ids")
}
