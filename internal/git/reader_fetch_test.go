package git

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
)

// requireGit skips tests that need the git executable. go-git's file transport
// also shells out to git-upload-pack.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

type sourceFactory struct {
	name string
	open func(t *testing.T, opts SourceOptions) HistorySource
}

func sourceFactories() []sourceFactory {
	return []sourceFactory{
		{name: "gogit", open: func(t *testing.T, opts SourceOptions) HistorySource {
			src, err := NewGoGitSource(opts)
			if err != nil {
				t.Fatalf("NewGoGitSource: %v", err)
			}
			return src
		}},
		{name: "cli", open: func(t *testing.T, opts SourceOptions) HistorySource {
			return NewCLISource(opts)
		}},
	}
}

func mirrorOptions(t *testing.T, origin string) SourceOptions {
	return SourceOptions{
		RepoDir:    filepath.Join(t.TempDir(), "mirror"),
		Origin:     origin,
		Branches:   []string{"main", "stable", "latest", "release/*"},
		TagPattern: "v*",
	}
}

func TestSource_FetchMirrorsOrigin(t *testing.T) {
	requireGit(t)
	for _, f := range sourceFactories() {
		t.Run(f.name, func(t *testing.T) {
			r, hashes := buildFixture(t)
			src := f.open(t, mirrorOptions(t, r.dir))
			ctx := context.Background()

			if err := src.Fetch(ctx); err != nil {
				t.Fatalf("Fetch: %v", err)
			}

			branches, err := src.ListBranches(ctx, "")
			if err != nil {
				t.Fatalf("ListBranches: %v", err)
			}
			if want := []string{"main", "release/1.0"}; !reflect.DeepEqual(branches, want) {
				t.Fatalf("branches = %v, expected %v", branches, want)
			}

			tags, err := src.Tags(ctx, "v*")
			if err != nil {
				t.Fatalf("Tags: %v", err)
			}
			if tags["v1.0.0"] != hashes["A"].String() || tags["v1.1.0"] != hashes["C"].String() {
				t.Fatalf("tags = %v", tags)
			}

			graph, warnings, err := NewGraphBuilder(src, BuildOptions{
				BaseTag:              "v1.0.0",
				FixedBranches:        []string{"main", "stable", "latest"},
				ReleaseBranchPattern: "release/*",
				TagPattern:           "v*",
				Concurrency:          2,
			}).Build(ctx)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			var skipped []string
			for _, w := range warnings {
				skipped = append(skipped, w.Branch)
			}
			if want := []string{"stable", "latest"}; !reflect.DeepEqual(skipped, want) {
				t.Fatalf("skipped = %v, expected %v", skipped, want)
			}
			if len(graph.Commits) != 3 {
				t.Fatalf("commits = %d, expected 3", len(graph.Commits))
			}

			data, err := src.ReadFile(ctx, "main", "versions.json")
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if strings.TrimSpace(string(data)) != "{}" {
				t.Fatalf("versions.json = %q", data)
			}
			if _, err := src.ReadFile(ctx, "main", "missing.json"); !errors.Is(err, ErrFileNotFound) {
				t.Fatalf("ReadFile(missing path) err = %v, expected ErrFileNotFound", err)
			}
			if _, err := src.ReadFile(ctx, "stable", "versions.json"); !errors.Is(err, ErrFileNotFound) {
				t.Fatalf("ReadFile(missing branch) err = %v, expected ErrFileNotFound", err)
			}
		})
	}
}

func TestSource_RefetchFollowsOrigin(t *testing.T) {
	requireGit(t)
	for _, f := range sourceFactories() {
		t.Run(f.name, func(t *testing.T) {
			r, hashes := buildFixture(t)
			src := f.open(t, mirrorOptions(t, r.dir))
			ctx := context.Background()

			if err := src.Fetch(ctx); err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			before, err := src.Describe(ctx, hashes["B"].String())
			if err != nil {
				t.Fatalf("Describe: %v", err)
			}
			if !strings.HasPrefix(before, "v1.0.0-1-g") {
				t.Fatalf("Describe(B) = %q before refetch", before)
			}

			// Tag B and drop the release branch upstream.
			if _, err := r.repo.CreateTag("v1.0.5", hashes["B"], nil); err != nil {
				t.Fatalf("CreateTag: %v", err)
			}
			if err := r.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName("release/1.0")); err != nil {
				t.Fatalf("RemoveReference: %v", err)
			}

			if err := src.Fetch(ctx); err != nil {
				t.Fatalf("second Fetch: %v", err)
			}
			after, err := src.Describe(ctx, hashes["B"].String())
			if err != nil {
				t.Fatalf("Describe: %v", err)
			}
			if !strings.HasPrefix(after, "v1.0.5-0-g") {
				t.Fatalf("Describe(B) = %q after refetch, expected v1.0.5", after)
			}
			exists, err := src.BranchExists(ctx, "release/1.0")
			if err != nil || exists {
				t.Fatalf("BranchExists(release/1.0) = %v, %v after upstream removal", exists, err)
			}
		})
	}
}

func TestSource_FetchUnreachableOrigin(t *testing.T) {
	requireGit(t)
	for _, f := range sourceFactories() {
		t.Run(f.name, func(t *testing.T) {
			src := f.open(t, mirrorOptions(t, filepath.Join(t.TempDir(), "no-such-repo")))

			err := src.Fetch(context.Background())
			var upstream *UpstreamFetchError
			if !errors.As(err, &upstream) {
				t.Fatalf("expected UpstreamFetchError, got %v", err)
			}
		})
	}
}

func TestGoGitSource_DescribePrefersReleaseTag(t *testing.T) {
	r, hashes := buildFixture(t)
	if _, err := r.repo.CreateTag("beta-latest", hashes["C"], nil); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	src, err := NewGoGitSource(SourceOptions{RepoDir: r.dir})
	if err != nil {
		t.Fatalf("NewGoGitSource: %v", err)
	}

	got, err := src.Describe(context.Background(), hashes["C"].String())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.HasPrefix(got, "v1.1.0-0-g") {
		t.Fatalf("Describe(C) = %q, expected v1.1.0", got)
	}
}

func TestGoGitSource_DescribeCachesTags(t *testing.T) {
	r, hashes := buildFixture(t)
	src, err := NewGoGitSource(SourceOptions{RepoDir: r.dir, TagPattern: "v*"})
	if err != nil {
		t.Fatalf("NewGoGitSource: %v", err)
	}
	ctx := context.Background()

	if _, err := src.Describe(ctx, hashes["C"].String()); err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if src.tagsByCommit[hashes["C"].String()] != "v1.1.0" {
		t.Fatalf("tagsByCommit = %v", src.tagsByCommit)
	}

	// Tags created after the first describe are not seen until the next fetch.
	if _, err := r.repo.CreateTag("v1.0.5", hashes["B"], nil); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	got, err := src.Describe(ctx, hashes["B"].String())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.HasPrefix(got, "v1.0.0-1-g") {
		t.Fatalf("Describe(B) = %q, expected the cached v1.0.0", got)
	}
}

func TestSelectBranches(t *testing.T) {
	upstream := []string{"release/1.0", "main", "master", "release/2.0", "feature/x"}

	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{name: "FixedAndGlob", patterns: []string{"main", "stable", "release/*"}, want: []string{"main", "release/1.0", "release/2.0"}},
		{name: "MissingFixed", patterns: []string{"stable", "latest"}, want: nil},
		{name: "RefPrefix", patterns: []string{"refs/heads/main"}, want: []string{"main"}},
		{name: "EmptyPatternIgnored", patterns: []string{""}, want: nil},
		{name: "NoPatterns", patterns: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectBranches(tt.patterns, upstream); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("selectBranches(%v) = %v, expected %v", tt.patterns, got, tt.want)
			}
		})
	}
}
