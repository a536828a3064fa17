package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/app"
	"github.com/JakeFAU/topic-harvester/internal/label"
	"github.com/JakeFAU/topic-harvester/internal/pipeline"
)

// NewsOutcome is what the news command reports.
type NewsOutcome = pipeline.NewsResult

// LabelOutcome is what the label command reports.
type LabelOutcome struct {
	Summary label.Summary
	URI     string
}

type appStages struct {
	app *app.App
}

func (s appStages) News(ctx context.Context) (NewsOutcome, error) {
	return s.app.News(ctx)
}

func (s appStages) Timeline(ctx context.Context) (string, error) {
	return s.app.Timeline(ctx)
}

func (s appStages) Comments(ctx context.Context) (string, error) {
	return s.app.Comments(ctx)
}

func (s appStages) Label(ctx context.Context) (LabelOutcome, error) {
	summary, uri, err := s.app.Label(ctx)
	return LabelOutcome{Summary: summary, URI: uri}, err
}

func (s appStages) Serve(ctx context.Context) error {
	return s.app.Serve(ctx)
}

func (s appStages) Logger() *zap.Logger {
	return s.app.Logger()
}

func (s appStages) Close(ctx context.Context) error {
	return s.app.Close(ctx)
}
