// Package cmd defines the harvester's CLI commands. Each stage of the
// pipeline is one subcommand:
//   - news: search the news feed per keyword, harvest the articles through the
//     batch scheduler and write the raw CSV/XLSX dataset.
//   - timeline: log into the social timeline and scroll every query.
//   - comments: page through video comments and keep the on-topic ones.
//   - label: clean and classify the raw datasets into the processed dataset.
//   - serve: expose the processed dataset over HTTP.
//
// Configuration comes from the --config YAML file and HARVEST_* environment
// variables; the keyword lists come from --keywords.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/app"
	"github.com/JakeFAU/topic-harvester/internal/config"
)

type appKeyType string

const appKey appKeyType = "app"

// Stages is the application surface the subcommands use.
type Stages interface {
	News(ctx context.Context) (NewsOutcome, error)
	Timeline(ctx context.Context) (string, error)
	Comments(ctx context.Context) (string, error)
	Label(ctx context.Context) (LabelOutcome, error)
	Serve(ctx context.Context) error
	Logger() *zap.Logger
	Close(ctx context.Context) error
}

// newApp is the application factory; tests replace it.
var newApp = func(ctx context.Context, cfg config.Config) (Stages, error) {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return appStages{a}, nil
}

type options struct {
	configFile   string
	keywordsFile string
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "harvester",
		Short: "Harvest, label and serve public sentiment on a topic.",
		Long: `harvester collects news articles, timeline posts and video comments
about a topic, labels their sentiment and serves the resulting dataset.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.keywordsFile != "" {
				cfg.Paths.KeywordsFile = opts.keywordsFile
			}
			stages, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, stages))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if stages, ok := cmd.Context().Value(appKey).(Stages); ok && stages != nil {
				return stages.Close(context.WithoutCancel(cmd.Context()))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.keywordsFile, "keywords", "", "keyword file, overrides paths.keywords_file")

	cmd.AddCommand(newNewsCmd(), newTimelineCmd(), newCommentsCmd(), newLabelCmd(), newServeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (Stages, error) {
	stages, ok := ctx.Value(appKey).(Stages)
	if !ok || stages == nil {
		return nil, errors.New("application not initialized")
	}
	return stages, nil
}

// Execute runs the CLI with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
