// Package snapshot defines the serialized changelog snapshot and its file I/O.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/version"
)

// Commit is the serialized form of a git.Commit.
type Commit struct {
	Hash    string   `json:"hash"`
	Parents []string `json:"parents"`
	Author  string   `json:"author"`
	Date    string   `json:"date"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Version string   `json:"version"`
}

// Refs holds the tag and branch tables.
type Refs struct {
	Tags     map[string]string `json:"tags"`
	Branches map[string]string `json:"branches"`
}

// Document is the snapshot handed from ingestion to the query engine.
// New fields must be additive.
type Document struct {
	Commits             map[string]Commit              `json:"commits"`
	Refs                Refs                           `json:"refs"`
	BaseTag             string                         `json:"baseTag"`
	BaseCommit          string                         `json:"baseCommit,omitempty"`
	ProvisionalVersions map[string]version.Provisional `json:"provisionalVersions,omitempty"`
	GeneratedAt         string                         `json:"generatedAt,omitempty"`
}

// FromGraph projects a labelled graph into a Document.
func FromGraph(g *git.CommitGraph, provisional map[string]version.Provisional, generatedAt time.Time) *Document {
	doc := &Document{
		Commits: make(map[string]Commit, len(g.Commits)),
		Refs: Refs{
			Tags:     copyMap(g.Refs.Tags),
			Branches: copyMap(g.Refs.Branches),
		},
		BaseTag:             g.BaseTag,
		BaseCommit:          g.AllTags[g.BaseTag],
		ProvisionalVersions: provisional,
	}
	if !generatedAt.IsZero() {
		doc.GeneratedAt = generatedAt.UTC().Format(time.RFC3339)
	}
	for hash, c := range g.Commits {
		parents := make([]string, len(c.Parents))
		copy(parents, c.Parents)
		doc.Commits[hash] = Commit{
			Hash:    c.Hash,
			Parents: parents,
			Author:  c.Author,
			Date:    c.Date.Format(time.RFC3339),
			Subject: c.Subject,
			Body:    c.Body,
			Version: c.Version,
		}
	}
	return doc
}

// Graph rebuilds the commit graph described by the document.
func (d *Document) Graph() (*git.CommitGraph, error) {
	g := git.NewCommitGraph(d.BaseTag)
	for name, hash := range d.Refs.Tags {
		g.Refs.Tags[name] = hash
		g.AllTags[name] = hash
	}
	if d.BaseCommit != "" {
		g.AllTags[d.BaseTag] = d.BaseCommit
	}
	for name, hash := range d.Refs.Branches {
		g.Refs.Branches[name] = hash
	}

	hashes := make([]string, 0, len(d.Commits))
	for h := range d.Commits {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	for _, key := range hashes {
		rec := d.Commits[key]
		hash := rec.Hash
		if hash == "" {
			hash = key
		}
		if hash != key {
			return nil, fmt.Errorf("commit %s stored under key %s", hash, key)
		}
		var date time.Time
		if rec.Date != "" {
			parsed, err := time.Parse(time.RFC3339, rec.Date)
			if err != nil {
				return nil, fmt.Errorf("commit %s: invalid date %q: %w", git.ShortHash(hash, 12), rec.Date, err)
			}
			date = parsed
		}
		g.Add(&git.Commit{
			Hash:    hash,
			Parents: append([]string(nil), rec.Parents...),
			Author:  rec.Author,
			Date:    date,
			Subject: rec.Subject,
			Body:    rec.Body,
			Version: rec.Version,
		})
	}
	return g, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
