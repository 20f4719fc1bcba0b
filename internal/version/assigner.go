package version

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/discourse/discourse-releases/internal/git"
)

// GraphIntegrityError reports a retained commit with no tagged ancestor.
// Ingestion must abort without writing a snapshot when it occurs.
type GraphIntegrityError struct {
	Hash string
}

func (e *GraphIntegrityError) Error() string {
	return fmt.Sprintf("graph integrity: no tagged ancestor found for commit %s", e.Hash)
}

// CommitTags builds the commit -> tag reverse map. When several tags target one
// commit a strict release tag (vX.Y.Z) wins; remaining ties go to the smallest name.
func CommitTags(tags map[string]string) map[string]string {
	return git.TagsByCommit(tags)
}

// Assigner computes nearest-tag labels over a CommitGraph by breadth-first search.
type Assigner struct {
	graph       *git.CommitGraph
	commitToTag map[string]string
	cache       map[string]Label
	logger      *slog.Logger
}

// NewAssigner creates an assigner. Terminal tags come from graph.AllTags so that
// tags below the retained window (the base tag) still end a search.
func NewAssigner(graph *git.CommitGraph, logger *slog.Logger) *Assigner {
	if logger == nil {
		logger = slog.Default()
	}
	tags := graph.AllTags
	if len(tags) == 0 {
		tags = graph.Refs.Tags
	}
	return &Assigner{
		graph:       graph,
		commitToTag: CommitTags(tags),
		cache:       make(map[string]Label),
		logger:      logger,
	}
}

// Label returns the label for hash. Untagged parents outside the retained window are
// traversal boundaries and are not counted.
func (a *Assigner) Label(hash string) (Label, error) {
	if l, ok := a.cache[hash]; ok {
		return l, nil
	}
	if tag, ok := a.commitToTag[hash]; ok {
		l := Label{Tag: tag}
		a.cache[hash] = l
		return l, nil
	}

	visited := make(map[string]struct{})
	queue := []string{hash}
	tag := ""
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		if t, ok := a.commitToTag[current]; ok {
			if tag == "" {
				tag = t
			}
			continue
		}
		c, ok := a.graph.Commits[current]
		if !ok {
			continue
		}
		visited[current] = struct{}{}
		queue = append(queue, c.Parents...)
	}

	if tag == "" {
		return Label{}, &GraphIntegrityError{Hash: hash}
	}
	l := Label{Tag: tag, Distance: len(visited)}
	a.cache[hash] = l
	return l, nil
}

// AssignAll labels every commit in the graph. Labels are only written once every
// commit has been resolved, so a failure leaves the graph untouched.
func (a *Assigner) AssignAll() error {
	hashes := make([]string, 0, len(a.graph.Commits))
	for h := range a.graph.Commits {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	labels := make(map[string]string, len(hashes))
	for _, h := range hashes {
		l, err := a.Label(h)
		if err != nil {
			return err
		}
		labels[h] = l.String()
	}

	for h, l := range labels {
		a.graph.Commits[h].Version = l
	}
	a.logger.Info("versions assigned", "commits", len(labels), "tags", len(a.commitToTag))
	return nil
}
