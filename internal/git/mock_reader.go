package git

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockSource is an in-memory HistorySource.
// It allows tests to provide a predefined commit graph without needing a real Git repository.
type MockSource struct {
	Commits  map[string]*Commit
	Branches map[string]string
	TagRefs  map[string]string
	Files    map[string][]byte // keyed by "rev:path"

	FetchErr    error
	DescribeErr error
	ReadFileErr error

	mu            sync.Mutex
	FetchCalls    int
	DescribeCalls int
}

// NewMockSource creates a MockSource over the given commits.
func NewMockSource(commits []*Commit) *MockSource {
	m := &MockSource{
		Commits:  make(map[string]*Commit, len(commits)),
		Branches: make(map[string]string),
		TagRefs:  make(map[string]string),
		Files:    make(map[string][]byte),
	}
	for _, c := range commits {
		m.Commits[c.Hash] = c
	}
	return m
}

// Fetch returns the predefined fetch error.
func (m *MockSource) Fetch(_ context.Context) error {
	m.mu.Lock()
	m.FetchCalls++
	m.mu.Unlock()
	if m.FetchErr != nil {
		return NewUpstreamFetchError("mock fetch", m.FetchErr)
	}
	return nil
}

// ListBranches returns branch names matching pattern.
func (m *MockSource) ListBranches(_ context.Context, pattern string) ([]string, error) {
	var names []string
	for name := range m.Branches {
		if matchesPattern(pattern, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// BranchExists reports whether the branch is defined.
func (m *MockSource) BranchExists(_ context.Context, name string) (bool, error) {
	_, ok := m.Branches[name]
	return ok, nil
}

// Log returns reachable(branch) minus reachable(baseTag), copies of the stored commits.
func (m *MockSource) Log(_ context.Context, baseTag, branch string) ([]*Commit, error) {
	tip, ok := m.Branches[branch]
	if !ok {
		return nil, fmt.Errorf("unknown branch %s", branch)
	}
	exclude := map[string]struct{}{}
	if base, ok := m.TagRefs[baseTag]; ok {
		exclude = m.closure(base)
	}
	var out []*Commit
	for h := range m.closure(tip) {
		if _, skip := exclude[h]; skip {
			continue
		}
		c := *m.Commits[h]
		c.Parents = append([]string(nil), c.Parents...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

// Tags returns tags matching pattern.
func (m *MockSource) Tags(_ context.Context, pattern string) (map[string]string, error) {
	out := make(map[string]string)
	for name, h := range m.TagRefs {
		if matchesPattern(pattern, name) {
			out[name] = h
		}
	}
	return out, nil
}

// ResolveBranch returns the branch tip.
func (m *MockSource) ResolveBranch(_ context.Context, name string) (string, error) {
	h, ok := m.Branches[name]
	if !ok {
		return "", fmt.Errorf("unknown branch %s", name)
	}
	return h, nil
}

// Describe performs the same nearest-tag search as `git describe --tags --long`.
func (m *MockSource) Describe(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	m.DescribeCalls++
	m.mu.Unlock()
	if m.DescribeErr != nil {
		return "", m.DescribeErr
	}
	byCommit := TagsByCommit(m.TagRefs)
	visited := make(map[string]struct{})
	queue := []string{hash}
	found := ""
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		if tag, ok := byCommit[current]; ok {
			if found == "" {
				found = tag
			}
			continue
		}
		visited[current] = struct{}{}
		if c, ok := m.Commits[current]; ok {
			queue = append(queue, c.Parents...)
		}
	}
	if found == "" {
		return "", fmt.Errorf("no names found, cannot describe %s", hash)
	}
	return fmt.Sprintf("%s-%d-g%s", found, len(visited), ShortHash(hash, 7)), nil
}

// ReadFile returns Files["rev:path"], or ReadFileErr when set.
func (m *MockSource) ReadFile(_ context.Context, rev, path string) ([]byte, error) {
	if m.ReadFileErr != nil {
		return nil, m.ReadFileErr
	}
	data, ok := m.Files[rev+":"+path]
	if !ok {
		return nil, fmt.Errorf("read %s:%s: %w", rev, path, ErrFileNotFound)
	}
	return data, nil
}

func (m *MockSource) closure(start string) map[string]struct{} {
	seen := make(map[string]struct{})
	queue := []string{start}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if _, ok := seen[h]; ok {
			continue
		}
		c, ok := m.Commits[h]
		if !ok {
			continue
		}
		seen[h] = struct{}{}
		queue = append(queue, c.Parents...)
	}
	return seen
}
