package version

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/discourse/discourse-releases/internal/git"
)

// DefaultWorkers is the describe fan-out width.
const DefaultWorkers = 100

// Pool runs jobs on a fixed number of workers draining a shared queue.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given number of workers. Values < 1 use DefaultWorkers.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Pool{workers: workers}
}

// Workers returns the pool width.
func (p *Pool) Workers() int {
	return p.workers
}

// Run applies fn to every key and returns the results once all workers have exited.
// The first error cancels the remaining work and no results are returned.
func (p *Pool) Run(ctx context.Context, keys []string, fn func(context.Context, string) (string, error)) (map[string]string, error) {
	jobs := make(chan string)
	type result struct {
		key, value string
	}
	results := make(chan result, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	workers := min(p.workers, len(keys))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for key := range jobs {
				value, err := fn(gctx, key)
				if err != nil {
					return err
				}
				results <- result{key: key, value: value}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, key := range keys {
			select {
			case jobs <- key:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	out := make(map[string]string, len(keys))
	for r := range results {
		out[r.key] = r.value
	}
	return out, nil
}

// ParseDescribe parses `git describe --tags --long` output ("tag-N-gabbrev").
func ParseDescribe(out string) (Label, error) {
	out = strings.TrimSpace(out)
	g := strings.LastIndex(out, "-g")
	if g < 0 {
		return Label{}, fmt.Errorf("unexpected describe output %q", out)
	}
	rest := out[:g]
	d := strings.LastIndexByte(rest, '-')
	if d <= 0 {
		return Label{}, fmt.Errorf("unexpected describe output %q", out)
	}
	n, err := strconv.Atoi(rest[d+1:])
	if err != nil {
		return Label{}, fmt.Errorf("unexpected describe distance in %q: %w", out, err)
	}
	return Label{Tag: rest[:d], Distance: n}, nil
}

// DescribeAssigner labels commits with per-commit describe calls against a
// HistorySource, in batches fully joined before the next one starts.
type DescribeAssigner struct {
	source    git.HistorySource
	pool      *Pool
	batchSize int
	logger    *slog.Logger
}

// NewDescribeAssigner creates a describe-based assigner. batchSize < 1 uses the pool width.
func NewDescribeAssigner(source git.HistorySource, pool *Pool, batchSize int, logger *slog.Logger) *DescribeAssigner {
	if pool == nil {
		pool = NewPool(DefaultWorkers)
	}
	if batchSize < 1 {
		batchSize = pool.Workers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DescribeAssigner{source: source, pool: pool, batchSize: batchSize, logger: logger}
}

// AssignAll labels every commit in graph. Nothing is written to the graph unless every
// batch succeeds. A commit that cannot be described is a GraphIntegrityError.
func (d *DescribeAssigner) AssignAll(ctx context.Context, graph *git.CommitGraph) error {
	hashes := make([]string, 0, len(graph.Commits))
	for h := range graph.Commits {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	describe := func(ctx context.Context, hash string) (string, error) {
		out, err := d.source.Describe(ctx, hash)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("describe %s: %w: %w", git.ShortHash(hash, 12), &GraphIntegrityError{Hash: hash}, err)
		}
		l, err := ParseDescribe(out)
		if err != nil {
			return "", err
		}
		return l.String(), nil
	}

	labels := make(map[string]string, len(hashes))
	for start := 0; start < len(hashes); start += d.batchSize {
		end := min(start+d.batchSize, len(hashes))
		batch, err := d.pool.Run(ctx, hashes[start:end], describe)
		if err != nil {
			return err
		}
		for h, l := range batch {
			labels[h] = l
		}
		d.logger.Debug("describe batch complete", "done", end, "total", len(hashes))
	}

	for h, l := range labels {
		graph.Commits[h].Version = l
	}
	d.logger.Info("versions assigned", "commits", len(labels), "mode", "describe")
	return nil
}
