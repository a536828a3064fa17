package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/api"
	"github.com/JakeFAU/topic-harvester/internal/checkpoint"
	"github.com/JakeFAU/topic-harvester/internal/config"
	"github.com/JakeFAU/topic-harvester/internal/extract"
	"github.com/JakeFAU/topic-harvester/internal/fetcher/auto"
	collyfetcher "github.com/JakeFAU/topic-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/topic-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/hash/sha256"
	"github.com/JakeFAU/topic-harvester/internal/keywords"
	"github.com/JakeFAU/topic-harvester/internal/label"
	"github.com/JakeFAU/topic-harvester/internal/pipeline"
	"github.com/JakeFAU/topic-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/topic-harvester/internal/retry"
	"github.com/JakeFAU/topic-harvester/internal/scheduler"
	"github.com/JakeFAU/topic-harvester/internal/scout"
	"github.com/JakeFAU/topic-harvester/internal/scout/comments"
	"github.com/JakeFAU/topic-harvester/internal/scout/feed"
	"github.com/JakeFAU/topic-harvester/internal/scout/timeline"
	"github.com/JakeFAU/topic-harvester/internal/worker"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (a *App) pacer(lo, hi time.Duration) *scout.Pacer {
	p := scout.NewPacer(lo, hi)
	if a.sleep != nil {
		p.Sleep = a.sleep
	}
	return p
}

func (a *App) staticFetcher() *collyfetcher.Fetcher {
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Fetch.UserAgent,
		RespectRobots: a.cfg.Fetch.RespectRobots,
		Timeout:       a.cfg.PageLoadTimeout(),
	})
}

func (a *App) sessionConfig() headless.SessionConfig {
	return headless.SessionConfig{
		UserAgent:     a.cfg.Fetch.UserAgent,
		DisableImages: a.cfg.Fetch.DisableImages,
	}
}

// articleFetcher picks the fetcher used by the worker pool.
func (a *App) articleFetcher() (harvest.Fetcher, error) {
	static := a.staticFetcher()
	if a.cfg.Fetch.Mode == config.FetchModeStatic {
		return static, nil
	}
	rendered, err := headless.New(headless.Config{
		Session:           a.sessionConfig(),
		PageLoadTimeout:   a.cfg.PageLoadTimeout(),
		SettleMin:         time.Duration(a.cfg.Fetch.SettleMinMs) * time.Millisecond,
		SettleMax:         time.Duration(a.cfg.Fetch.SettleMaxMs) * time.Millisecond,
		DisableJavaScript: a.cfg.Fetch.DisableJavaScript,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	if a.cfg.Fetch.Mode == config.FetchModeHeadless {
		return rendered, nil
	}
	return auto.New(static, rendered, auto.NewPromoter(a.cfg.Fetch.PromotionThreshold), a.logger.Named("fetch")), nil
}

func (a *App) limiter() harvest.Limiter {
	if !a.cfg.RateLimit.Enabled {
		a.logger.Info("rate limiter disabled")
		return nil
	}
	a.logger.Info("rate limiter enabled",
		zap.Float64("default_rps", a.cfg.RateLimit.DefaultRPS),
		zap.Int("default_burst", a.cfg.RateLimit.DefaultBurst),
	)
	return ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.RateLimit.DefaultRPS,
		DefaultBurst: a.cfg.RateLimit.DefaultBurst,
	})
}

func (a *App) recordStore() harvest.RecordStore {
	if a.records == nil {
		return nil
	}
	return a.records
}

// NewsPipeline assembles the news harvest from configuration.
func (a *App) NewsPipeline(kw []string) (*pipeline.News, error) {
	fetcher, err := a.articleFetcher()
	if err != nil {
		return nil, err
	}
	w := worker.New(fetcher, extract.New(), sha256.New(), a.limiter(), a.logger.Named("worker"))
	sched := scheduler.New(
		scheduler.Config{
			BatchSize:       a.cfg.Harvest.BatchSize,
			Workers:         a.cfg.Harvest.Workers,
			TaskTimeout:     a.cfg.TaskTimeout(),
			CheckpointEvery: a.cfg.Harvest.CheckpointEvery,
			CheckpointLabel: a.cfg.Harvest.CheckpointLabel,
		},
		w,
		checkpoint.New(a.store, a.cfg.Paths.RawDir, a.clock, a.logger.Named("checkpoint")),
		a.emitter(),
		a.clock,
		a.logger.Named("scheduler"),
	)

	policy := retry.New(a.cfg.Feed.Retries, a.cfg.Harvest.BackoffBase, a.logger.Named("retry"))
	policy.MaxDelay = seconds(a.cfg.Harvest.MaxDelaySeconds)
	feedScout := feed.New(feed.Config{
		BaseURL:  a.cfg.Feed.BaseURL,
		Language: a.cfg.Feed.Language,
		Country:  a.cfg.Feed.Country,
		Limit:    a.cfg.Feed.LimitPerKeyword,
	}, a.staticFetcher(), policy, a.logger.Named("feed"))

	from, to := a.cfg.FeedWindow(a.clock.Now())
	base := seconds(a.cfg.Feed.BaseDelaySeconds)
	return pipeline.NewNews(pipeline.NewsConfig{
		Keywords:   kw,
		From:       from,
		To:         to,
		RawDir:     a.cfg.Paths.RawDir,
		OutputName: a.cfg.Harvest.OutputName,
		Topic:      a.cfg.PubSub.TopicName,
	}, pipeline.NewsDeps{
		Scout:     feedScout,
		Pacer:     a.pacer(base, base+seconds(a.cfg.Feed.JitterSeconds)),
		Runner:    sched,
		Store:     a.store,
		Records:   a.recordStore(),
		Publisher: a.publisher,
		IDs:       a.ids,
		Clock:     a.clock,
		Logger:    a.logger.Named("news"),
	}), nil
}

// News harvests articles for every search keyword.
func (a *App) News(ctx context.Context) (pipeline.NewsResult, error) {
	set, err := a.keywords()
	if err != nil {
		return pipeline.NewsResult{}, err
	}
	news, err := a.NewsPipeline(set.Search)
	if err != nil {
		return pipeline.NewsResult{}, err
	}
	return news.Run(ctx)
}

func (a *App) rawSink() pipeline.RawSink {
	return pipeline.RawSink{
		Store:     a.store,
		Publisher: a.publisher,
		Topic:     a.cfg.PubSub.TopicName,
		Dir:       a.cfg.Paths.RawDir,
		Clock:     a.clock,
		IDs:       a.ids,
		Logger:    a.logger.Named("raw"),
	}
}

// Timeline logs into the social timeline and scrolls every query. Posts
// gathered before a failure are still saved.
func (a *App) Timeline(ctx context.Context) (string, error) {
	if err := a.cfg.ValidateTimeline(); err != nil {
		return "", err
	}
	set, err := a.keywords()
	if err != nil {
		return "", err
	}
	sc := a.sessionConfig()
	sc.Headful = !a.cfg.Timeline.Headless
	session, err := headless.NewSession(ctx, sc)
	if err != nil {
		return "", fmt.Errorf("timeline browser: %w", err)
	}
	defer session.Close()

	tl := timeline.New(timeline.Config{
		LoginURL:    a.cfg.Timeline.LoginURL,
		SearchURL:   a.cfg.Timeline.SearchURL,
		Username:    a.cfg.Timeline.Username,
		Password:    a.cfg.Timeline.Password,
		MaxItems:    a.cfg.Timeline.MaxItems,
		ScrollDelay: seconds(a.cfg.Timeline.ScrollDelaySeconds),
		Wait:        seconds(a.cfg.Timeline.WaitSeconds),
	}, timeline.NewBrowserPage(session), a.logger.Named("timeline"))

	pacer := a.pacer(seconds(a.cfg.Timeline.QueryDelayMinSeconds), seconds(a.cfg.Timeline.QueryDelayMaxSeconds))
	posts, runErr := tl.Run(ctx, set.TimelineQueries, pacer)
	a.logger.Info("timeline finished", zap.Int("posts", len(posts)))

	// The run context may be cancelled; saving gets its own budget.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	uri, err := a.rawSink().SavePosts(saveCtx, a.cfg.Timeline.OutputName, posts)
	return uri, errors.Join(runErr, err)
}

// Comments collects on-topic comments for the configured videos.
func (a *App) Comments(ctx context.Context) (string, error) {
	if err := a.cfg.ValidateComments(); err != nil {
		return "", err
	}
	set, err := a.keywords()
	if err != nil {
		return "", err
	}
	yt, err := comments.NewYouTube(ctx, a.cfg.Comments.APIKey)
	if err != nil {
		return "", err
	}
	sc := comments.New(yt, set.Relevant(), a.cfg.Comments.PageSize, a.logger.Named("comments"))
	found, stats := sc.Collect(ctx, a.cfg.Comments.VideoIDs)
	a.logger.Info("comments finished", zap.Int("relevant", stats.Relevant), zap.Int("skipped", stats.Skipped))

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	return a.rawSink().SaveComments(saveCtx, a.cfg.Comments.OutputName, found)
}

// Classifier returns the HTTP classifier when an endpoint is configured and
// the keyword lexicon otherwise.
func (a *App) Classifier(set keywords.Set) label.Classifier {
	cc := a.cfg.Label.Classifier
	if cc.Endpoint != "" {
		a.logger.Info("using sentiment endpoint", zap.String("endpoint", cc.Endpoint))
		policy := retry.New(a.cfg.Harvest.MaxRetries, a.cfg.Harvest.BackoffBase, a.logger.Named("retry"))
		policy.MaxDelay = seconds(a.cfg.Harvest.MaxDelaySeconds)
		return label.NewHTTPClassifier(cc.Endpoint, cc.Token, seconds(cc.TimeoutSeconds), policy)
	}
	a.logger.Warn("no sentiment endpoint configured, using keyword lexicon")
	return label.NewLexicon(set.Positive, set.Negative)
}

// Label cleans and classifies the raw datasets and writes the processed one.
func (a *App) Label(ctx context.Context) (label.Summary, string, error) {
	set, err := a.keywords()
	if err != nil {
		return label.Summary{}, "", err
	}
	classifier := a.Classifier(set)
	inputs := make([]label.Input, 0, len(a.cfg.Label.Inputs))
	for _, in := range a.cfg.Label.Inputs {
		inputs = append(inputs, label.Input{Source: in.Source, Path: in.Path, Limit: in.Limit})
	}
	labeler := label.New(classifier, a.cfg.Label.MinScore, a.logger.Named("label"))
	return labeler.Run(ctx, inputs, a.store, a.cfg.Label.Output)
}

// Handler returns the dataset API handler.
func (a *App) Handler() http.Handler {
	src := api.FileSource{Path: a.datasetPath()}
	return api.NewServer(src, a.cfg.Auth, a.logger.Named("api")).Handler()
}

// Serve runs the dataset API until ctx ends.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port), zap.String("dataset", a.datasetPath()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	a.logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
