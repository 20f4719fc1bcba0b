package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// BuildOptions configures the graph builder.
type BuildOptions struct {
	BaseTag string

	// FixedBranches are always requested (e.g. main, stable, latest).
	FixedBranches []string
	// ReleaseBranchPattern selects release-line branches by name (doublestar syntax).
	ReleaseBranchPattern string
	// TagPattern selects version tags (doublestar syntax).
	TagPattern string

	// Concurrency bounds the number of branches enumerated at once. Values < 1 mean sequential.
	Concurrency int

	Logger *slog.Logger
}

// GraphBuilder assembles a CommitGraph from a HistorySource.
type GraphBuilder struct {
	source HistorySource
	opts   BuildOptions
	logger *slog.Logger
}

// NewGraphBuilder creates a builder reading from source.
func NewGraphBuilder(source HistorySource, opts BuildOptions) *GraphBuilder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphBuilder{source: source, opts: opts, logger: logger}
}

// Build enumerates every configured branch, merges their histories by hash and builds
// the tag and branch tables. Missing branches are skipped with a warning.
func (b *GraphBuilder) Build(ctx context.Context) (*CommitGraph, []Warning, error) {
	if b.opts.BaseTag == "" {
		return nil, nil, errors.New("base tag is required")
	}

	branches, warnings, err := b.Branches(ctx)
	if err != nil {
		return nil, warnings, err
	}

	histories, err := b.readBranches(ctx, branches)
	if err != nil {
		return nil, warnings, err
	}

	graph := NewCommitGraph(b.opts.BaseTag)
	b.logger.Info("collecting commits", "branches", branches)
	for i, branch := range branches {
		added := 0
		for _, c := range histories[i] {
			if graph.Add(c) {
				added++
			}
		}
		b.logger.Info("branch collected", "branch", branch, "new", added, "total", len(histories[i]))
	}

	allTags, err := b.source.Tags(ctx, b.opts.TagPattern)
	if err != nil {
		return nil, warnings, NewUpstreamFetchError("list tags", err)
	}
	graph.AllTags = allTags
	for name, hash := range allTags {
		if graph.Has(hash) {
			graph.Refs.Tags[name] = hash
		}
	}

	for _, branch := range branches {
		hash, err := b.source.ResolveBranch(ctx, branch)
		if err != nil {
			return nil, warnings, NewUpstreamFetchError("resolve "+branch, err)
		}
		graph.Refs.Branches[branch] = hash
	}

	b.logger.Info("graph built",
		"commits", len(graph.Commits),
		"tags", len(graph.Refs.Tags),
		"branches", len(graph.Refs.Branches),
		"warnings", len(warnings))
	return graph, warnings, nil
}

// Branches returns the fixed branches that exist followed by every release branch
// matching the naming convention, without duplicates.
func (b *GraphBuilder) Branches(ctx context.Context) ([]string, []Warning, error) {
	var warnings []Warning
	seen := make(map[string]struct{})
	var branches []string

	for _, name := range b.opts.FixedBranches {
		if _, dup := seen[name]; dup {
			continue
		}
		ok, err := b.source.BranchExists(ctx, name)
		if err != nil {
			return nil, warnings, NewUpstreamFetchError("check branch "+name, err)
		}
		if !ok {
			w := Warning{Branch: name, Message: "branch not found upstream, skipped"}
			b.logger.Warn("skipping branch", "branch", name, "reason", w.Message)
			warnings = append(warnings, w)
			continue
		}
		seen[name] = struct{}{}
		branches = append(branches, name)
	}

	if b.opts.ReleaseBranchPattern != "" {
		release, err := b.source.ListBranches(ctx, b.opts.ReleaseBranchPattern)
		if err != nil {
			return nil, warnings, NewUpstreamFetchError("list branches", err)
		}
		for _, name := range release {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			branches = append(branches, name)
		}
	}

	return branches, warnings, nil
}

// readBranches logs every branch through a bounded errgroup. Results are indexed by
// branch position so the merge order stays deterministic.
func (b *GraphBuilder) readBranches(ctx context.Context, branches []string) ([][]*Commit, error) {
	results := make([][]*Commit, len(branches))

	g, gctx := errgroup.WithContext(ctx)
	limit := b.opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, branch := range branches {
		i, branch := i, branch
		g.Go(func() error {
			commits, err := b.source.Log(gctx, b.opts.BaseTag, branch)
			if err != nil {
				var upstream *UpstreamFetchError
				if errors.As(err, &upstream) {
					return err
				}
				return NewUpstreamFetchError(fmt.Sprintf("log %s..%s", b.opts.BaseTag, branch), err)
			}
			results[i] = commits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
