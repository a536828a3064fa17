package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newNewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Harvest news articles for every search keyword",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := stages.News(cmd.Context())
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("news harvest: %w", err)
			}
			stages.Logger().Info("news command finished",
				zap.String("run_id", res.RunID),
				zap.Int("references", res.References),
				zap.Int("records", len(res.Records)),
				zap.Strings("uris", res.URIs),
			)
			return nil
		},
	}
}

func newTimelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Scroll the social timeline for every query",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			uri, err := stages.Timeline(cmd.Context())
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("timeline harvest: %w", err)
			}
			stages.Logger().Info("timeline command finished", zap.String("uri", uri))
			return nil
		},
	}
}

func newCommentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments",
		Short: "Collect on-topic comments from the configured videos",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			uri, err := stages.Comments(cmd.Context())
			if err != nil {
				return fmt.Errorf("comment harvest: %w", err)
			}
			stages.Logger().Info("comments command finished", zap.String("uri", uri))
			return nil
		},
	}
}

func newLabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label",
		Short: "Clean and classify the raw datasets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out, err := stages.Label(cmd.Context())
			if err != nil {
				return fmt.Errorf("labeling: %w", err)
			}
			stages.Logger().Info("label command finished",
				zap.String("uri", out.URI),
				zap.Int("rows", out.Summary.Total),
			)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the processed dataset over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stages, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return stages.Serve(cmd.Context())
		},
	}
}
