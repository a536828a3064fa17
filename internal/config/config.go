// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/topic-harvester/internal/storage/local"
)

// Supported fetch modes.
const (
	FetchModeHeadless = "headless"
	FetchModeStatic   = "static"
	FetchModeAuto     = "auto"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Harvest   HarvestConfig   `mapstructure:"harvest"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Timeline  TimelineConfig  `mapstructure:"timeline"`
	Comments  CommentsConfig  `mapstructure:"comments"`
	Label     LabelConfig     `mapstructure:"label"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Progress  ProgressConfig  `mapstructure:"progress"`
}

// ServerConfig controls the dataset API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features and the log file.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// PathsConfig names the on-disk layout shared by every stage.
type PathsConfig struct {
	RawDir       string `mapstructure:"raw_dir"`
	ProcessedDir string `mapstructure:"processed_dir"`
	KeywordsFile string `mapstructure:"keywords_file"`
}

// HarvestConfig governs the batch scheduler and retry wrapper.
type HarvestConfig struct {
	BatchSize        int     `mapstructure:"batch_size"`
	Workers          int     `mapstructure:"workers"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	TaskGraceSeconds int     `mapstructure:"task_grace_seconds"`
	CheckpointEvery  int     `mapstructure:"checkpoint_every"`
	CheckpointLabel  string  `mapstructure:"checkpoint_label"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffBase      float64 `mapstructure:"backoff_base"`
	MaxDelaySeconds  int     `mapstructure:"max_delay_seconds"`
	OutputName       string  `mapstructure:"output_name"`
}

// FetchConfig configures the document fetchers.
type FetchConfig struct {
	Mode               string `mapstructure:"mode"`
	UserAgent          string `mapstructure:"user_agent"`
	SettleMinMs        int    `mapstructure:"settle_min_ms"`
	SettleMaxMs        int    `mapstructure:"settle_max_ms"`
	DisableJavaScript  bool   `mapstructure:"disable_javascript"`
	DisableImages      bool   `mapstructure:"disable_images"`
	PromotionThreshold int    `mapstructure:"promotion_threshold"`
	RespectRobots      bool   `mapstructure:"respect_robots"`
}

// RateLimitConfig configures per-domain politeness.
type RateLimitConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// FeedConfig configures the news search-feed scout.
type FeedConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	Language         string `mapstructure:"language"`
	Country          string `mapstructure:"country"`
	StartDate        string `mapstructure:"start_date"`
	EndDate          string `mapstructure:"end_date"`
	LimitPerKeyword  int    `mapstructure:"limit_per_keyword"`
	Retries          int    `mapstructure:"retries"`
	BaseDelaySeconds int    `mapstructure:"base_delay_seconds"`
	JitterSeconds    int    `mapstructure:"jitter_seconds"`
}

// TimelineConfig configures the social timeline scout.
type TimelineConfig struct {
	Username             string `mapstructure:"username"`
	Password             string `mapstructure:"password"`
	LoginURL             string `mapstructure:"login_url"`
	SearchURL            string `mapstructure:"search_url"`
	MaxItems             int    `mapstructure:"max_items"`
	ScrollDelaySeconds   int    `mapstructure:"scroll_delay_seconds"`
	WaitSeconds          int    `mapstructure:"wait_seconds"`
	QueryDelayMinSeconds int    `mapstructure:"query_delay_min_seconds"`
	QueryDelayMaxSeconds int    `mapstructure:"query_delay_max_seconds"`
	Headless             bool   `mapstructure:"headless"`
	OutputName           string `mapstructure:"output_name"`
}

// CommentsConfig configures the video comment scout.
type CommentsConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	VideoIDs   []string `mapstructure:"video_ids"`
	PageSize   int64    `mapstructure:"page_size"`
	OutputName string   `mapstructure:"output_name"`
}

// LabelInput names one raw CSV consumed by the labeling stage.
type LabelInput struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
	Limit  int    `mapstructure:"limit"`
}

// ClassifierConfig points at the sentiment inference endpoint.
type ClassifierConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LabelConfig configures the labeling stage.
type LabelConfig struct {
	Inputs     []LabelInput     `mapstructure:"inputs"`
	Output     string           `mapstructure:"output"`
	MinScore   float64          `mapstructure:"min_score"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
}

// StorageConfig selects where checkpoints and datasets are written.
type StorageConfig struct {
	Backend string       `mapstructure:"backend"`
	Bucket  string       `mapstructure:"bucket"`
	Prefix  string       `mapstructure:"prefix"`
	Local   local.Config `mapstructure:"local"`
}

// DBConfig controls access to the optional record store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for dataset-ready notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig configures the progress hub.
type ProgressConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	LogEnabled    bool                `mapstructure:"log_enabled"`
	BufferSize    int                 `mapstructure:"buffer_size"`
	Batch         ProgressBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int                 `mapstructure:"sink_timeout_ms"`
}

// ProgressBatchConfig controls sink batching.
type ProgressBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.file", "data/logs/harvester.log")
	v.SetDefault("paths.raw_dir", "data/raw")
	v.SetDefault("paths.processed_dir", "data/processed")
	v.SetDefault("paths.keywords_file", "config/keywords.yaml")

	v.SetDefault("harvest.batch_size", 10)
	v.SetDefault("harvest.workers", 3)
	v.SetDefault("harvest.timeout_seconds", 30)
	v.SetDefault("harvest.task_grace_seconds", 10)
	v.SetDefault("harvest.checkpoint_every", 5)
	v.SetDefault("harvest.checkpoint_label", "batch_checkpoint")
	v.SetDefault("harvest.max_retries", 3)
	v.SetDefault("harvest.backoff_base", 2.0)
	v.SetDefault("harvest.max_delay_seconds", 30)
	v.SetDefault("harvest.output_name", "hasil_crawling_portal_berita")

	v.SetDefault("fetch.mode", FetchModeHeadless)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("fetch.settle_min_ms", 1000)
	v.SetDefault("fetch.settle_max_ms", 3000)
	v.SetDefault("fetch.disable_javascript", false)
	v.SetDefault("fetch.disable_images", true)
	v.SetDefault("fetch.promotion_threshold", 2048)
	v.SetDefault("fetch.respect_robots", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rps", 1.0)
	v.SetDefault("rate_limit.default_burst", 2)

	v.SetDefault("feed.base_url", "https://news.google.com/rss/search")
	v.SetDefault("feed.language", "id")
	v.SetDefault("feed.country", "ID")
	v.SetDefault("feed.start_date", "2023-01-01")
	v.SetDefault("feed.limit_per_keyword", 100)
	v.SetDefault("feed.retries", 2)
	v.SetDefault("feed.base_delay_seconds", 3)
	v.SetDefault("feed.jitter_seconds", 2)

	v.SetDefault("timeline.login_url", "https://twitter.com/login")
	v.SetDefault("timeline.search_url", "https://twitter.com/search")
	v.SetDefault("timeline.max_items", 250)
	v.SetDefault("timeline.scroll_delay_seconds", 15)
	v.SetDefault("timeline.wait_seconds", 20)
	v.SetDefault("timeline.query_delay_min_seconds", 20)
	v.SetDefault("timeline.query_delay_max_seconds", 40)
	v.SetDefault("timeline.headless", false)
	v.SetDefault("timeline.output_name", "hasil_crawling_twitter_multi")

	v.SetDefault("comments.page_size", 100)
	v.SetDefault("comments.output_name", "hasil_crawling_youtube_filtered")

	v.SetDefault("label.inputs", []map[string]any{
		{"source": "Portal Berita", "path": "data/raw/hasil_crawling_portal_berita.csv"},
		{"source": "Twitter", "path": "data/raw/hasil_crawling_twitter.csv"},
		{"source": "YouTube", "path": "data/raw/hasil_crawling_youtube.csv", "limit": 5000},
	})
	v.SetDefault("label.output", "data/processed/hasil_analisis_sentimen_final.csv")
	v.SetDefault("label.min_score", 0.5)
	v.SetDefault("label.classifier.timeout_seconds", 30)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local.base_dir", ".")

	v.SetDefault("db.table", "harvested_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)

	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.log_enabled", true)
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("progress.batch.max_events", 32)
	v.SetDefault("progress.batch.max_wait_ms", 500)
	v.SetDefault("progress.sink_timeout_ms", 2000)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Harvest.BatchSize <= 0 {
		return fmt.Errorf("harvest.batch_size must be > 0")
	}
	if c.Harvest.Workers <= 0 {
		return fmt.Errorf("harvest.workers must be > 0")
	}
	if c.Harvest.TimeoutSeconds <= 0 {
		return fmt.Errorf("harvest.timeout_seconds must be > 0")
	}
	if c.Harvest.CheckpointEvery < 0 {
		return fmt.Errorf("harvest.checkpoint_every must be >= 0")
	}
	if c.Harvest.MaxRetries <= 0 {
		return fmt.Errorf("harvest.max_retries must be > 0")
	}
	switch c.Fetch.Mode {
	case FetchModeHeadless, FetchModeStatic, FetchModeAuto:
	default:
		return fmt.Errorf("fetch.mode must be one of headless, static, auto (got %q)", c.Fetch.Mode)
	}
	if c.Fetch.SettleMaxMs < c.Fetch.SettleMinMs {
		return fmt.Errorf("fetch.settle_max_ms must be >= fetch.settle_min_ms")
	}
	if c.Feed.LimitPerKeyword <= 0 {
		return fmt.Errorf("feed.limit_per_keyword must be > 0")
	}
	if c.Feed.StartDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Feed.StartDate); err != nil {
			return fmt.Errorf("feed.start_date must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Feed.EndDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Feed.EndDate); err != nil {
			return fmt.Errorf("feed.end_date must be YYYY-MM-DD: %w", err)
		}
	}
	if c.Timeline.QueryDelayMaxSeconds < c.Timeline.QueryDelayMinSeconds {
		return fmt.Errorf("timeline.query_delay_max_seconds must be >= timeline.query_delay_min_seconds")
	}
	if c.Label.MinScore < 0 || c.Label.MinScore > 1 {
		return fmt.Errorf("label.min_score must be within [0,1]")
	}
	switch c.Storage.Backend {
	case "local", "memory":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory (got %q)", c.Storage.Backend)
	}
	return nil
}

// ErrMissingCredentials marks a source that cannot run without secrets.
var ErrMissingCredentials = errors.New("missing credentials")

// ValidateTimeline checks the settings the timeline scout cannot run without.
func (c Config) ValidateTimeline() error {
	if c.Timeline.Username == "" || c.Timeline.Password == "" {
		return fmt.Errorf("timeline.username and timeline.password: %w", ErrMissingCredentials)
	}
	if c.Timeline.MaxItems <= 0 {
		return fmt.Errorf("timeline.max_items must be > 0")
	}
	return nil
}

// ValidateComments checks the settings the comment scout cannot run without.
func (c Config) ValidateComments() error {
	if c.Comments.APIKey == "" {
		return fmt.Errorf("comments.api_key: %w", ErrMissingCredentials)
	}
	if len(c.Comments.VideoIDs) == 0 {
		return fmt.Errorf("comments.video_ids must list at least one video")
	}
	return nil
}

// TaskTimeout is the per-task budget given to one fetch worker invocation.
func (c Config) TaskTimeout() time.Duration {
	return time.Duration(c.Harvest.TimeoutSeconds+c.Harvest.TaskGraceSeconds) * time.Second
}

// PageLoadTimeout bounds a single navigation.
func (c Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.Harvest.TimeoutSeconds) * time.Second
}

// FeedWindow resolves the search window, defaulting the end to today.
func (c Config) FeedWindow(now time.Time) (time.Time, time.Time) {
	start, err := time.Parse(time.DateOnly, c.Feed.StartDate)
	if err != nil {
		start = now.AddDate(-1, 0, 0)
	}
	end, err := time.Parse(time.DateOnly, c.Feed.EndDate)
	if err != nil {
		end = now
	}
	return start, end
}
