package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/discourse/discourse-releases/config"
	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/commitkind"
	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/logging"
	"github.com/discourse/discourse-releases/internal/output"
	"github.com/discourse/discourse-releases/internal/snapshot"
)

// CommandContext holds common state for command execution.
type CommandContext struct {
	Config *config.Config
	Logger *slog.Logger
}

// NewCommandContext loads configuration and builds the logger from CLI flags.
func NewCommandContext(c *cli.Context) (*CommandContext, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level: level,
		JSON:  cfg.Log.JSON,
		Quiet: c.Bool("quiet"),
	})
	return &CommandContext{Config: cfg, Logger: logger}, nil
}

// executeWithContext wraps the common setup shared by every command.
func executeWithContext(c *cli.Context, fn func(*CommandContext, *cli.Context) error) error {
	ctx, err := NewCommandContext(c)
	if err != nil {
		return err
	}
	return fn(ctx, c)
}

// SourceOptions maps the repository and ingestion settings to a history source.
func (ctx *CommandContext) SourceOptions() git.SourceOptions {
	cfg := ctx.Config
	branches := append([]string{}, cfg.Ingest.FixedBranches...)
	if cfg.Ingest.ReleaseBranchPattern != "" {
		branches = append(branches, cfg.Ingest.ReleaseBranchPattern)
	}
	return git.SourceOptions{
		RepoDir:    cfg.Repo.Dir,
		Origin:     cfg.Repo.Origin,
		Branches:   branches,
		TagPattern: cfg.Ingest.TagPattern,
	}
}

// OpenSource opens the configured history source.
func (ctx *CommandContext) OpenSource() (git.HistorySource, error) {
	opts := ctx.SourceOptions()
	if ctx.Config.Repo.Reader == "cli" {
		return git.NewCLISource(opts), nil
	}
	src, err := git.NewGoGitSource(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return src, nil
}

// Classifier builds the commit kind classifier from the default and configured patterns.
func (ctx *CommandContext) Classifier() (*commitkind.Classifier, error) {
	patterns := commitkind.DefaultPatterns()
	for name, extra := range ctx.Config.CommitKinds {
		kind, err := commitkind.ParseKind(name)
		if err != nil || kind == "" {
			return nil, fmt.Errorf("commitKinds: unknown kind %q", name)
		}
		patterns[kind] = append(patterns[kind], extra...)
	}
	return commitkind.NewClassifier(patterns)
}

// SnapshotPath returns the --snapshot flag or the configured commits file.
func (ctx *CommandContext) SnapshotPath(c *cli.Context) string {
	if p := c.String("snapshot"); p != "" {
		return p
	}
	return ctx.Config.Path(ctx.Config.Output.Commits)
}

// LoadEngine loads the snapshot and the feature and advisory documents next to it.
// Missing feed documents are logged and treated as empty.
func (ctx *CommandContext) LoadEngine(c *cli.Context) (*changelog.Engine, error) {
	path := ctx.SnapshotPath(c)
	doc, err := snapshot.Load(path)
	if err != nil {
		return nil, err
	}
	classifier, err := ctx.Classifier()
	if err != nil {
		return nil, err
	}

	featuresPath := ctx.Config.Path(ctx.Config.Output.Features)
	features, err := feeds.LoadFeatures(featuresPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		ctx.Logger.Warn("features document not found", "path", featuresPath)
	}
	advisoriesPath := ctx.Config.Path(ctx.Config.Output.Advisories)
	advisories, err := feeds.LoadAdvisories(advisoriesPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		ctx.Logger.Warn("advisories document not found", "path", advisoriesPath)
	}

	engine, err := changelog.New(doc, changelog.Options{
		Features:        features,
		Advisories:      advisories,
		Classifier:      classifier,
		PrimaryBranches: ctx.Config.Ingest.FixedBranches,
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	ctx.Logger.Debug("snapshot loaded", "path", path, "commits", engine.TotalCommits(), "generatedAt", engine.GeneratedAt())
	return engine, nil
}

// OutputOptions creates OutputOptions from CLI flags.
func OutputOptions(c *cli.Context) output.OutputOptions {
	return output.OutputOptions{
		Format:     getOutputFormat(c.String("format")),
		Top:        c.Int("top"),
		OutputPath: c.String("output"),
		Details:    c.Bool("details"),
	}
}
