package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/ingest"
)

// IngestCmd returns the ingest command.
func IngestCmd() *cli.Command {
	return &cli.Command{
		Name:    "ingest",
		Aliases: []string{"i"},
		Usage:   "Fetch the origin, assign versions and write the commits snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"r"},
				Usage:   "Path to the local mirror",
			},
			&cli.StringFlag{
				Name:  "origin",
				Usage: "Remote URL to fetch from (empty to use the local repository as-is)",
			},
			&cli.StringFlag{
				Name:  "reader",
				Usage: "History reader (gogit, cli)",
			},
			&cli.StringFlag{
				Name:  "base-tag",
				Usage: "Oldest tag included in the snapshot",
			},
			&cli.StringFlag{
				Name:  "version-mode",
				Usage: "Version assignment (bfs, describe)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Branches enumerated at once",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent describe calls in describe mode",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Directory receiving the data files",
			},
			&cli.BoolFlag{
				Name:  "skip-fetch",
				Usage: "Use the local mirror without fetching",
			},
		},
		Action: ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		cfg := ctx.Config
		mode, err := ingest.ParseVersionMode(cfg.Ingest.VersionMode)
		if err != nil {
			return err
		}
		source, err := ctx.OpenSource()
		if err != nil {
			return err
		}

		runCtx, stop := signal.NotifyContext(contextOrBackground(c), os.Interrupt, syscall.SIGTERM)
		defer stop()

		color.Green("Ingesting %s since %s", cfg.Repo.Dir, cfg.Ingest.BaseTag)
		res, err := ingest.New(source, ingest.Options{
			Build: git.BuildOptions{
				BaseTag:              cfg.Ingest.BaseTag,
				FixedBranches:        cfg.Ingest.FixedBranches,
				ReleaseBranchPattern: cfg.Ingest.ReleaseBranchPattern,
				TagPattern:           cfg.Ingest.TagPattern,
				Concurrency:          cfg.Ingest.Concurrency,
			},
			VersionMode:       mode,
			DescribeWorkers:   cfg.Ingest.DescribeWorkers,
			DescribeBatch:     cfg.Ingest.DescribeBatch,
			SupportRev:        cfg.Ingest.SupportRev,
			SupportPath:       cfg.Ingest.SupportPath,
			SnapshotPath:      cfg.Path(cfg.Output.Commits),
			SupportOutputPath: cfg.Path(cfg.Output.Support),
			SkipFetch:         c.Bool("skip-fetch"),
			Logger:            ctx.Logger,
		}).Run(runCtx)
		if err != nil {
			return err
		}

		for _, w := range res.Warnings {
			color.Yellow("Warning: %s", w)
		}
		color.Green("Wrote %d commits, %d tags, %d branches to %s",
			len(res.Document.Commits),
			len(res.Document.Refs.Tags),
			len(res.Document.Refs.Branches),
			cfg.Path(cfg.Output.Commits))
		return nil
	})
}

// contextOrBackground returns the command's context, which is nil when an action
// is invoked directly.
func contextOrBackground(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
