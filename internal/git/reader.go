package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SourceOptions configures a HistorySource.
type SourceOptions struct {
	RepoDir string
	Origin  string // remote URL; empty means the local repository is used as-is

	// Branches lists branch names or glob patterns to mirror from the origin.
	Branches []string
	// TagPattern filters tag names (doublestar syntax). Empty matches every tag.
	TagPattern string
}

// GoGitSource reads history through go-git.
// Access to the underlying repository is serialised; go-git storers are not safe for
// concurrent use.
type GoGitSource struct {
	mu   sync.Mutex
	repo *git.Repository
	opts SourceOptions

	baseTag      string
	baseClosure  map[plumbing.Hash]struct{}
	tagsByCommit map[string]string
}

// NewGoGitSource opens the repository at opts.RepoDir, initialising a bare repository
// when the directory does not contain one yet and an origin is configured.
func NewGoGitSource(opts SourceOptions) (*GoGitSource, error) {
	repo, err := git.PlainOpen(opts.RepoDir)
	if errors.Is(err, git.ErrRepositoryNotExists) && opts.Origin != "" {
		if mkErr := os.MkdirAll(opts.RepoDir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create repo dir: %w", mkErr)
		}
		repo, err = git.PlainInit(opts.RepoDir, true)
	}
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", opts.RepoDir, err)
	}
	return &GoGitSource{repo: repo, opts: opts}, nil
}

// NewGoGitSourceFromRepository wraps an already opened repository.
func NewGoGitSourceFromRepository(repo *git.Repository, opts SourceOptions) *GoGitSource {
	return &GoGitSource{repo: repo, opts: opts}
}

// Fetch mirrors the configured branches and all tags from the origin. Configured
// branches missing upstream are not fetched, and stale local copies of them are
// removed, so the graph builder reports them as skipped.
func (s *GoGitSource) Fetch(ctx context.Context) error {
	if s.opts.Origin == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	remote := git.NewRemote(s.repo.Storer, &gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{s.opts.Origin},
	})

	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return NewUpstreamFetchError("list "+s.opts.Origin, err)
	}
	var heads []string
	for _, ref := range refs {
		if ref.Name().IsBranch() {
			heads = append(heads, ref.Name().Short())
		}
	}
	branches := selectBranches(s.opts.Branches, heads)

	specs := make([]gitconfig.RefSpec, 0, len(branches)+1)
	for _, b := range branches {
		specs = append(specs, gitconfig.RefSpec(branchRefSpec(b)))
	}
	specs = append(specs, gitconfig.RefSpec("+refs/tags/*:refs/tags/*"))

	err = remote.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: specs,
		Tags:     git.NoTags,
		Force:    true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return NewUpstreamFetchError("fetch "+s.opts.Origin, err)
	}

	if err := s.pruneBranches(branches); err != nil {
		return err
	}
	s.baseClosure = nil
	s.tagsByCommit = nil
	return nil
}

// pruneBranches removes local branches matching the configured patterns that were
// not fetched.
func (s *GoGitSource) pruneBranches(fetched []string) error {
	keep := make(map[string]struct{}, len(fetched))
	for _, b := range fetched {
		keep[b] = struct{}{}
	}
	iter, err := s.repo.Branches()
	if err != nil {
		return err
	}
	var stale []plumbing.ReferenceName
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if _, ok := keep[name]; !ok && matchesAny(s.opts.Branches, name) {
			stale = append(stale, ref.Name())
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, name := range stale {
		if err := s.repo.Storer.RemoveReference(name); err != nil {
			return fmt.Errorf("prune %s: %w", name.Short(), err)
		}
	}
	return nil
}

// ListBranches returns local branch names matching pattern, sorted by name.
func (s *GoGitSource) ListBranches(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.repo.Branches()
	if err != nil {
		return nil, err
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if matchesPattern(pattern, name) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// BranchExists reports whether refs/heads/<name> exists.
func (s *GoGitSource) BranchExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Log returns every commit reachable from branch that is not reachable from baseTag.
// The base commit itself is excluded.
func (s *GoGitSource) Log(ctx context.Context, baseTag, branch string) ([]*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tip, err := s.resolveCommitHash(plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	exclude, err := s.closureOf(ctx, baseTag)
	if err != nil {
		return nil, err
	}

	var results []*Commit
	err = s.walk(ctx, tip, exclude, func(c *object.Commit) {
		results = append(results, convertCommit(c))
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Tags returns tag name -> commit hash for tags matching pattern.
func (s *GoGitSource) Tags(_ context.Context, pattern string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags(pattern)
}

func (s *GoGitSource) tags(pattern string) (map[string]string, error) {
	iter, err := s.repo.Tags()
	if err != nil {
		return nil, err
	}
	tags := make(map[string]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if !matchesPattern(pattern, name) {
			return nil
		}
		hash, err := s.peel(ref.Hash())
		if err != nil {
			return fmt.Errorf("dereference tag %s: %w", name, err)
		}
		tags[name] = hash.String()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// ResolveBranch returns the commit at the tip of the named branch.
func (s *GoGitSource) ResolveBranch(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.resolveCommitHash(plumbing.NewBranchReferenceName(name))
	if err != nil {
		return "", fmt.Errorf("resolve branch %s: %w", name, err)
	}
	return hash.String(), nil
}

// Describe finds the nearest tagged ancestor of hash by breadth-first search and
// formats the result the way `git describe --tags --long` does. A commit carrying
// several tags is named by PreferTag.
func (s *GoGitSource) Describe(ctx context.Context, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCommit, err := s.describeTags()
	if err != nil {
		return "", err
	}

	start := plumbing.NewHash(hash)
	visited := make(map[plumbing.Hash]struct{})
	queue := []plumbing.Hash{start}
	found := ""
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		if tag, ok := byCommit[current.String()]; ok {
			if found == "" {
				found = tag
			}
			continue
		}
		visited[current] = struct{}{}
		c, err := s.repo.CommitObject(current)
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				continue
			}
			return "", err
		}
		queue = append(queue, c.ParentHashes...)
	}
	if found == "" {
		return "", fmt.Errorf("no names found, cannot describe %s", hash)
	}
	return fmt.Sprintf("%s-%d-g%s", found, len(visited), ShortHash(hash, 7)), nil
}

// ReadFile returns the contents of path at the tip of rev (a branch name).
func (s *GoGitSource) ReadFile(_ context.Context, rev, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.resolveCommitHash(plumbing.NewBranchReferenceName(rev))
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, fmt.Errorf("resolve %s: %w", rev, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	c, err := s.repo.CommitObject(hash)
	if err != nil {
		return nil, err
	}
	f, err := c.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, fmt.Errorf("read %s:%s: %w", rev, path, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s:%s: %w", rev, path, err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(contents), nil
}

// describeTags returns the commit -> tag map used by Describe, built once per fetch.
func (s *GoGitSource) describeTags() (map[string]string, error) {
	if s.tagsByCommit != nil {
		return s.tagsByCommit, nil
	}
	tags, err := s.tags(s.opts.TagPattern)
	if err != nil {
		return nil, err
	}
	s.tagsByCommit = TagsByCommit(tags)
	return s.tagsByCommit, nil
}

// closureOf returns every commit reachable from the tag, inclusive. The result is
// cached for the lifetime of the source since every branch shares the same base.
func (s *GoGitSource) closureOf(ctx context.Context, tag string) (map[plumbing.Hash]struct{}, error) {
	if s.baseClosure != nil && s.baseTag == tag {
		return s.baseClosure, nil
	}
	base, err := s.resolveCommitHash(plumbing.NewTagReferenceName(tag))
	if err != nil {
		return nil, fmt.Errorf("resolve base tag %s: %w", tag, err)
	}
	closure := make(map[plumbing.Hash]struct{})
	err = s.walk(ctx, base, nil, func(c *object.Commit) {
		closure[c.Hash] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	s.baseTag = tag
	s.baseClosure = closure
	return closure, nil
}

// walk visits every commit reachable from start, skipping (and not expanding) commits
// in stop. Missing objects are treated as traversal boundaries.
func (s *GoGitSource) walk(ctx context.Context, start plumbing.Hash, stop map[plumbing.Hash]struct{}, visit func(*object.Commit)) error {
	seen := make(map[plumbing.Hash]struct{})
	queue := []plumbing.Hash{start}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := queue[0]
		queue = queue[1:]
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		if _, ok := stop[h]; ok {
			continue
		}
		c, err := s.repo.CommitObject(h)
		if err != nil {
			if errors.Is(err, plumbing.ErrObjectNotFound) {
				continue
			}
			return err
		}
		visit(c)
		queue = append(queue, c.ParentHashes...)
	}
	return nil
}

func (s *GoGitSource) resolveCommitHash(name plumbing.ReferenceName) (plumbing.Hash, error) {
	ref, err := s.repo.Reference(name, true)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return s.peel(ref.Hash())
}

// peel dereferences annotated tag objects down to the commit they point at.
func (s *GoGitSource) peel(h plumbing.Hash) (plumbing.Hash, error) {
	for {
		tag, err := s.repo.TagObject(h)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return h, nil
		}
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if tag.TargetType != plumbing.TagObject && tag.TargetType != plumbing.CommitObject {
			return plumbing.ZeroHash, fmt.Errorf("tag %s points at a %s", tag.Name, tag.TargetType)
		}
		h = tag.Target
	}
}

func convertCommit(c *object.Commit) *Commit {
	subject, body := splitSubjectBody(c.Message)
	parents := make([]string, len(c.ParentHashes))
	for i, p := range c.ParentHashes {
		parents[i] = p.String()
	}
	return &Commit{
		Hash:    c.Hash.String(),
		Parents: parents,
		Author:  c.Author.Name,
		Date:    c.Committer.When,
		Subject: subject,
		Body:    body,
	}
}

// branchRefSpec turns a branch name or glob ("release/*") into a mirroring refspec.
func branchRefSpec(branch string) string {
	branch = strings.TrimPrefix(branch, "refs/heads/")
	return "+refs/heads/" + branch + ":refs/heads/" + branch
}

// selectBranches expands the configured names and globs against the branches that
// exist upstream. Names absent upstream are dropped. The result is sorted.
func selectBranches(patterns, upstream []string) []string {
	var out []string
	for _, name := range upstream {
		if matchesAny(patterns, name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if matchesPattern(strings.TrimPrefix(p, "refs/heads/"), name) {
			return true
		}
	}
	return false
}

// matchesPattern checks a ref name against a doublestar pattern. An empty pattern
// matches everything.
func matchesPattern(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	matched, err := doublestar.Match(pattern, name)
	return err == nil && matched
}
