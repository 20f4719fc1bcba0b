// Package changelog answers ref-resolution and range queries over a loaded snapshot.
package changelog

import (
	"sort"
	"strings"

	"github.com/discourse/discourse-releases/internal/commitkind"
	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/snapshot"
	"github.com/discourse/discourse-releases/internal/version"
)

// DefaultEndRef is the end ref used when a query leaves it empty.
const DefaultEndRef = "latest"

// DefaultPrimaryBranches are listed first, in this order, by Branches.
var DefaultPrimaryBranches = []string{"main", "stable", "latest"}

// Options configures an Engine.
type Options struct {
	Features        []feeds.Feature
	Advisories      []feeds.Advisory
	Classifier      *commitkind.Classifier
	PrimaryBranches []string
}

// Engine is an immutable view over one snapshot. All methods are safe for
// concurrent use.
type Engine struct {
	graph       *git.CommitGraph
	hashes      []string
	tags        []string
	branches    []string
	provisional map[string]version.Provisional
	generatedAt string

	features   []feeds.Feature
	advisories []feeds.Advisory
	classifier *commitkind.Classifier
}

// New builds an engine from a snapshot document.
func New(doc *snapshot.Document, opts Options) (*Engine, error) {
	g, err := doc.Graph()
	if err != nil {
		return nil, err
	}
	e := NewFromGraph(g, opts)
	e.provisional = doc.ProvisionalVersions
	e.generatedAt = doc.GeneratedAt
	return e, nil
}

// NewFromGraph builds an engine directly over a graph. The graph must not be
// modified afterwards.
func NewFromGraph(g *git.CommitGraph, opts Options) *Engine {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = commitkind.Default()
	}
	primary := opts.PrimaryBranches
	if primary == nil {
		primary = DefaultPrimaryBranches
	}

	hashes := make([]string, 0, len(g.Commits))
	for h := range g.Commits {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	return &Engine{
		graph:      g,
		hashes:     hashes,
		tags:       sortTags(g.Refs.Tags),
		branches:   orderBranches(g.Refs.Branches, primary),
		features:   opts.Features,
		advisories: opts.Advisories,
		classifier: classifier,
	}
}

// Commit returns the commit with the given full hash.
func (e *Engine) Commit(hash string) (git.Commit, bool) {
	c, ok := e.graph.Commits[hash]
	if !ok {
		return git.Commit{}, false
	}
	return *c, true
}

// BaseTag returns the lower bound of the retained history.
func (e *Engine) BaseTag() string {
	return e.graph.BaseTag
}

// TotalCommits returns the number of retained commits.
func (e *Engine) TotalCommits() int {
	return len(e.graph.Commits)
}

// GeneratedAt returns the snapshot generation timestamp, if recorded.
func (e *Engine) GeneratedAt() string {
	return e.generatedAt
}

// ProvisionalVersions returns the unreleased versions recorded in the snapshot.
func (e *Engine) ProvisionalVersions() map[string]version.Provisional {
	return e.provisional
}

// Classifier returns the commit-kind classifier used for filtering.
func (e *Engine) Classifier() *commitkind.Classifier {
	return e.classifier
}

// SortedTags returns tag names in descending version order.
func (e *Engine) SortedTags() []string {
	return append([]string(nil), e.tags...)
}

// Branches returns branch names with the primary branches first.
func (e *Engine) Branches() []string {
	return append([]string(nil), e.branches...)
}

// RefType distinguishes branches from tags in SortedRefs.
type RefType string

const (
	RefBranch RefType = "branch"
	RefTag    RefType = "tag"
)

// Ref is a named ref and its type.
type Ref struct {
	Name string  `json:"value"`
	Type RefType `json:"type"`
}

// SortedRefs returns every branch followed by every tag in SortedTags order.
func (e *Engine) SortedRefs() []Ref {
	refs := make([]Ref, 0, len(e.branches)+len(e.tags))
	for _, b := range e.branches {
		refs = append(refs, Ref{Name: b, Type: RefBranch})
	}
	for _, t := range e.tags {
		refs = append(refs, Ref{Name: t, Type: RefTag})
	}
	return refs
}

// DefaultStartRef returns the newest tag, or "" when there are none.
func (e *Engine) DefaultStartRef() string {
	if len(e.tags) == 0 {
		return ""
	}
	return e.tags[0]
}

// DefaultEndRef returns the ref used when a query has no end.
func (e *Engine) DefaultEndRef() string {
	return DefaultEndRef
}

// sortTags orders tags by descending version. Legacy ".betaN" suffixes compare as
// pre-releases. Names that do not parse follow all valid versions in reverse
// lexicographic order.
func sortTags(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if c := version.Compare(names[i], names[j]); c != 0 {
			return c > 0
		}
		return names[i] > names[j]
	})
	return names
}

func orderBranches(branches map[string]string, primary []string) []string {
	out := make([]string, 0, len(branches))
	seen := make(map[string]struct{}, len(primary))
	for _, name := range primary {
		if _, ok := branches[name]; ok {
			if _, dup := seen[name]; !dup {
				out = append(out, name)
				seen[name] = struct{}{}
			}
		}
	}
	var rest []string
	for name := range branches {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		return strings.Compare(rest[i], rest[j]) > 0
	})
	return append(out, rest...)
}
