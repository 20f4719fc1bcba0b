package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/commitkind"
	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/output"
)

// ChangelogCmd returns the changelog command.
func ChangelogCmd() *cli.Command {
	flags := append(snapshotFlags(), reportFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "start",
			Usage: "Exclusive start ref (default: previous version of end)",
		},
		&cli.StringFlag{
			Name:  "end",
			Usage: "Inclusive end ref (default: latest)",
		},
		&cli.StringFlag{
			Name:    "kind",
			Aliases: []string{"k"},
			Usage:   "Only show commits of this kind (feature, fix, security, ...)",
		},
		&cli.StringFlag{
			Name:  "search",
			Usage: "Only show commits whose subject contains this text",
		},
	)

	return &cli.Command{
		Name:      "changelog",
		Aliases:   []string{"log"},
		Usage:     "List the commits between two refs",
		ArgsUsage: "[<start>..<end>]",
		Flags:     flags,
		Action:    changelogAction,
	}
}

// ResolveCmd returns the resolve command.
func ResolveCmd() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a tag, branch or hash prefix to a commit",
		ArgsUsage: "<ref>",
		Flags:     snapshotFlags(),
		Action:    resolveAction,
	}
}

// PreviousCmd returns the previous command.
func PreviousCmd() *cli.Command {
	return &cli.Command{
		Name:      "previous",
		Usage:     "Show the newest release tag that is an ancestor of a ref",
		ArgsUsage: "<ref>",
		Flags:     snapshotFlags(),
		Action:    previousAction,
	}
}

// RefsCmd returns the refs command.
func RefsCmd() *cli.Command {
	return &cli.Command{
		Name:   "refs",
		Usage:  "List the branches and tags of the snapshot",
		Flags:  append(snapshotFlags(), reportFlags()...),
		Action: refsAction,
	}
}

// rangeArgs returns the start and end refs from the positional range spec or flags.
func rangeArgs(c *cli.Context) (start, end string, err error) {
	start, end = c.String("start"), c.String("end")
	if c.NArg() == 0 {
		return start, end, nil
	}
	if c.NArg() > 1 {
		return "", "", fmt.Errorf("expected a single range argument, got %d", c.NArg())
	}
	if start != "" || end != "" {
		return "", "", fmt.Errorf("a range argument cannot be combined with --start or --end")
	}
	return changelog.ParseRangeSpec(c.Args().First())
}

func changelogAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		start, end, err := rangeArgs(c)
		if err != nil {
			return err
		}
		kind, err := commitkind.ParseKind(c.String("kind"))
		if err != nil {
			return err
		}
		engine, err := ctx.LoadEngine(c)
		if err != nil {
			return err
		}

		res, err := engine.Changelog(changelog.Query{
			Start:  start,
			End:    end,
			Filter: commitkind.Filter{Kind: kind, Search: c.String("search")},
		})
		if err != nil {
			return err
		}

		report := &output.RangeReport{
			GeneratedAt: time.Now(),
			Result:      res,
			Classifier:  engine.Classifier(),
		}
		opts := OutputOptions(c)
		return output.NewRangeReportWriter(opts.Format).Write(report, opts)
	})
}

// refArg returns the single positional ref.
func refArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one ref argument")
	}
	return c.Args().First(), nil
}

func resolveAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		ref, err := refArg(c)
		if err != nil {
			return err
		}
		engine, err := ctx.LoadEngine(c)
		if err != nil {
			return err
		}
		hash, err := engine.ResolveRef(ref)
		if err != nil {
			return err
		}
		commit, _ := engine.Commit(hash)
		fmt.Fprintf(c.App.Writer, "%s %s %s\n", hash, commit.Version, commit.Subject)
		return nil
	})
}

func previousAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		ref, err := refArg(c)
		if err != nil {
			return err
		}
		engine, err := ctx.LoadEngine(c)
		if err != nil {
			return err
		}
		tag, ok, err := engine.PreviousVersion(ref)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(c.App.Writer, "No release tag precedes %s\n", ref)
			return nil
		}
		hash, _ := engine.ResolveRef(tag)
		fmt.Fprintf(c.App.Writer, "%s %s\n", tag, git.ShortHash(hash, 12))
		return nil
	})
}

func refsAction(c *cli.Context) error {
	return executeWithContext(c, func(ctx *CommandContext, c *cli.Context) error {
		engine, err := ctx.LoadEngine(c)
		if err != nil {
			return err
		}
		report := &output.RefsReport{
			BaseTag:      engine.BaseTag(),
			TotalCommits: engine.TotalCommits(),
			GeneratedAt:  engine.GeneratedAt(),
			DefaultStart: engine.DefaultStartRef(),
			DefaultEnd:   engine.DefaultEndRef(),
			Refs:         engine.SortedRefs(),
		}
		opts := OutputOptions(c)
		return output.NewRefsReportWriter(opts.Format).Write(report, opts)
	})
}
