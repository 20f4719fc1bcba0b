package cmd

import (
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/snapshot"
)

func feedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "out-dir",
			Usage: "Directory receiving the data files",
		},
	}
}

// FetchFeaturesCmd returns the fetch-features command.
func FetchFeaturesCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch-features",
		Usage: "Download the new-features feed",
		Flags: append(feedFlags(),
			&cli.StringFlag{
				Name:  "url",
				Usage: "Feed URL (default from config)",
			},
		),
		Action: fetchFeaturesAction,
	}
}

// FetchAdvisoriesCmd returns the fetch-advisories command.
func FetchAdvisoriesCmd() *cli.Command {
	return &cli.Command{
		Name:   "fetch-advisories",
		Usage:  "Download the published security advisories",
		Flags:  feedFlags(),
		Action: fetchAdvisoriesAction,
	}
}

func newFeedClient(ctx *CommandContext) *feeds.Client {
	cfg := ctx.Config.Feeds
	return feeds.NewClient(feeds.ClientOptions{
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Token:             cfg.Token,
		Logger:            ctx.Logger,
	})
}

func fetchFeaturesAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		url := c.String("url")
		if url == "" {
			url = ctx.Config.Feeds.FeaturesURL
		}
		raw, features, err := newFeedClient(ctx).FetchFeatures(contextOrBackground(c), url)
		if err != nil {
			return err
		}
		path := ctx.Config.Path(ctx.Config.Output.Features)
		if err := snapshot.WriteIndented(path, raw); err != nil {
			return err
		}
		color.Green("Wrote %d features to %s", len(features), path)
		return nil
	})
}

func fetchAdvisoriesAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		cfg := ctx.Config.Feeds
		if cfg.Token == "" {
			ctx.Logger.Warn("GITHUB_TOKEN not set, requests are subject to the anonymous rate limit")
		}
		advisories, err := newFeedClient(ctx).FetchAdvisories(contextOrBackground(c), cfg.AdvisoryAPIBase, cfg.Owner, cfg.Repo)
		if err != nil {
			return err
		}
		path := ctx.Config.Path(ctx.Config.Output.Advisories)
		if err := snapshot.WriteJSON(path, advisories); err != nil {
			return err
		}
		color.Green("Wrote %d advisories to %s", len(advisories), path)
		return nil
	})
}
