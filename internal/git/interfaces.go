package git

import "context"

// HistorySource defines the interface for reading refs and commit history from a repository.
// This abstraction allows the graph builder to run against go-git, the git CLI, or a mock.
type HistorySource interface {
	// Fetch updates the local mirror from the configured origin.
	Fetch(ctx context.Context) error
	// ListBranches returns local branch names matching the doublestar pattern.
	ListBranches(ctx context.Context, pattern string) ([]string, error)
	// BranchExists reports whether the named branch exists locally.
	BranchExists(ctx context.Context, name string) (bool, error)
	// Log returns the commits reachable from branch but not from baseTag.
	Log(ctx context.Context, baseTag, branch string) ([]*Commit, error)
	// Tags returns tag name -> commit hash for tags matching the pattern, with annotated
	// tags dereferenced to their commit.
	Tags(ctx context.Context, pattern string) (map[string]string, error)
	// ResolveBranch returns the commit hash at the tip of the named branch.
	ResolveBranch(ctx context.Context, name string) (string, error)
	// Describe returns a describe-style string ("<tag>-<n>-g<hash>") for a commit.
	Describe(ctx context.Context, hash string) (string, error)
	// ReadFile returns the contents of path at rev. Errors for a missing rev or path
	// wrap ErrFileNotFound.
	ReadFile(ctx context.Context, rev, path string) ([]byte, error)
}

// Compile-time interface conformance checks.
var (
	_ HistorySource = (*GoGitSource)(nil)
	_ HistorySource = (*CLISource)(nil)
	_ HistorySource = (*MockSource)(nil)
)
