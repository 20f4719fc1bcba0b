// Package ingest runs one ingestion: fetch the origin, build the commit graph, assign
// versions and write the snapshot.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/snapshot"
	"github.com/discourse/discourse-releases/internal/version"
)

// VersionMode selects how commits are labelled.
type VersionMode string

const (
	// ModeBFS walks the in-memory graph to the nearest tag.
	ModeBFS VersionMode = "bfs"
	// ModeDescribe asks the history source to describe every commit.
	ModeDescribe VersionMode = "describe"
)

// ParseVersionMode parses a mode name. Empty yields ModeBFS.
func ParseVersionMode(s string) (VersionMode, error) {
	switch VersionMode(s) {
	case "", ModeBFS:
		return ModeBFS, nil
	case ModeDescribe:
		return ModeDescribe, nil
	default:
		return "", fmt.Errorf("invalid version mode %q (expected bfs or describe)", s)
	}
}

// Options configures a Pipeline.
type Options struct {
	Build git.BuildOptions

	VersionMode     VersionMode
	DescribeWorkers int
	DescribeBatch   int

	// SupportRev and SupportPath locate the versions document in the repository.
	SupportRev  string
	SupportPath string

	// SnapshotPath is the snapshot destination. SupportOutputPath, when set, receives
	// a copy of the versions document.
	SnapshotPath      string
	SupportOutputPath string

	SkipFetch bool

	Now    func() time.Time
	Logger *slog.Logger
}

// Result describes a completed run.
type Result struct {
	RunID    string
	Document *snapshot.Document
	Warnings []git.Warning
	Duration time.Duration
}

// Pipeline runs ingestion against a HistorySource.
type Pipeline struct {
	source git.HistorySource
	opts   Options
}

// New creates a pipeline.
func New(source git.HistorySource, opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SupportRev == "" {
		opts.SupportRev = "main"
	}
	if opts.SupportPath == "" {
		opts.SupportPath = "versions.json"
	}
	return &Pipeline{source: source, opts: opts}
}

// Run executes one ingestion. Nothing is written unless every step before the write
// succeeds.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.opts.Now()
	runID := uuid.NewString()
	logger := p.opts.Logger.With("run", runID)

	mode, err := ParseVersionMode(string(p.opts.VersionMode))
	if err != nil {
		return nil, err
	}
	if p.opts.SnapshotPath == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}

	if !p.opts.SkipFetch {
		logger.Info("fetching origin")
		if err := p.source.Fetch(ctx); err != nil {
			return nil, err
		}
	}

	buildOpts := p.opts.Build
	buildOpts.Logger = logger
	graph, warnings, err := git.NewGraphBuilder(p.source, buildOpts).Build(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("assigning versions", "mode", mode, "commits", len(graph.Commits))
	switch mode {
	case ModeDescribe:
		pool := version.NewPool(p.opts.DescribeWorkers)
		err = version.NewDescribeAssigner(p.source, pool, p.opts.DescribeBatch, logger).AssignAll(ctx, graph)
	default:
		err = version.NewAssigner(graph, logger).AssignAll()
	}
	if err != nil {
		return nil, err
	}

	raw, provisional, err := p.provisional(ctx, graph, logger)
	if err != nil {
		return nil, err
	}

	doc := snapshot.FromGraph(graph, provisional, p.opts.Now())

	if raw != nil && p.opts.SupportOutputPath != "" {
		if err := snapshot.WriteIndented(p.opts.SupportOutputPath, raw); err != nil {
			return nil, fmt.Errorf("write versions document: %w", err)
		}
	}
	if err := snapshot.Write(p.opts.SnapshotPath, doc); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	res := &Result{
		RunID:    runID,
		Document: doc,
		Warnings: warnings,
		Duration: p.opts.Now().Sub(start),
	}
	logger.Info("snapshot written",
		"path", p.opts.SnapshotPath,
		"commits", len(doc.Commits),
		"provisional", len(provisional),
		"duration", res.Duration)
	return res, nil
}

// provisional reads the versions document and derives the next unreleased versions.
// A missing document is logged and yields no provisional versions. A read failure or
// a malformed document fails the run.
func (p *Pipeline) provisional(ctx context.Context, graph *git.CommitGraph, logger *slog.Logger) ([]byte, map[string]version.Provisional, error) {
	raw, err := p.source.ReadFile(ctx, p.opts.SupportRev, p.opts.SupportPath)
	if err != nil {
		if !errors.Is(err, git.ErrFileNotFound) {
			return nil, nil, git.NewUpstreamFetchError("read "+p.opts.SupportRev+":"+p.opts.SupportPath, err)
		}
		logger.Warn("versions document unavailable, skipping provisional versions",
			"rev", p.opts.SupportRev, "path", p.opts.SupportPath, "error", err)
		return nil, map[string]version.Provisional{}, nil
	}
	support, err := version.ParseSupport(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, version.ComputeProvisional(graph.AllTags, graph.Refs.Branches, support, logger), nil
}
