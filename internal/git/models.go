package git

import (
	"strings"
	"time"
)

// HashLength is the length of a full hex commit hash.
const HashLength = 40

// Commit represents a single commit in the retained history window.
type Commit struct {
	Hash    string
	Parents []string
	Author  string
	Date    time.Time
	Subject string
	Body    string
	Version string // assigned label, empty until computed
}

// IsRoot returns true if the commit has no parents.
func (c *Commit) IsRoot() bool {
	return len(c.Parents) == 0
}

// IsMerge returns true if the commit has two or more parents.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// ShortHash returns the first n characters of the commit hash.
func ShortHash(hash string, n int) string {
	if len(hash) <= n {
		return hash
	}
	return hash[:n]
}

// RefTable maps tag and branch names to commit hashes.
type RefTable struct {
	Tags     map[string]string
	Branches map[string]string
}

// NewRefTable returns an empty RefTable.
func NewRefTable() RefTable {
	return RefTable{
		Tags:     make(map[string]string),
		Branches: make(map[string]string),
	}
}

// CommitGraph is the commit DAG for every configured branch, bounded below by BaseTag.
type CommitGraph struct {
	Commits map[string]*Commit
	Refs    RefTable
	BaseTag string

	// AllTags holds every matching tag, including tags whose target lies outside the
	// retained window. Only used as the terminal set for version assignment.
	AllTags map[string]string
}

// NewCommitGraph returns an empty graph bounded by baseTag.
func NewCommitGraph(baseTag string) *CommitGraph {
	return &CommitGraph{
		Commits: make(map[string]*Commit),
		Refs:    NewRefTable(),
		BaseTag: baseTag,
		AllTags: make(map[string]string),
	}
}

// Add inserts a commit unless one with the same hash is already present.
// It reports whether the commit was inserted.
func (g *CommitGraph) Add(c *Commit) bool {
	if c == nil || c.Hash == "" {
		return false
	}
	if _, exists := g.Commits[c.Hash]; exists {
		return false
	}
	g.Commits[c.Hash] = c
	return true
}

// Has returns true if the hash is part of the retained commit set.
func (g *CommitGraph) Has(hash string) bool {
	_, ok := g.Commits[hash]
	return ok
}

// Warning records a non-fatal condition encountered while building the graph.
type Warning struct {
	Branch  string
	Message string
}

func (w Warning) String() string {
	return w.Branch + ": " + w.Message
}

// splitSubjectBody splits a raw commit message into subject line and body.
func splitSubjectBody(message string) (string, string) {
	message = strings.TrimRight(message, "\n")
	subject, body, _ := strings.Cut(message, "\n")
	return strings.TrimSpace(subject), strings.TrimSpace(body)
}
