package changelog

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/discourse/discourse-releases/internal/git"
)

// TraverseParents returns the breadth-first closure over parent edges from hash,
// including hash itself. Hashes outside the snapshot end the walk silently.
func (e *Engine) TraverseParents(hash string) mapset.Set[string] {
	visited := mapset.NewThreadUnsafeSet[string]()
	queue := []string{hash}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == "" || visited.Contains(current) {
			continue
		}
		c, ok := e.graph.Commits[current]
		if !ok {
			continue
		}
		visited.Add(current)
		for _, p := range c.Parents {
			if !visited.Contains(p) {
				queue = append(queue, p)
			}
		}
	}
	return visited
}

// CommitsBetween returns the commits reachable from endRef but not from startRef.
// Order is unspecified; see SortByDate.
func (e *Engine) CommitsBetween(startRef, endRef string) ([]git.Commit, error) {
	startHash, err := e.ResolveRef(startRef)
	if err != nil {
		return nil, err
	}
	endHash, err := e.ResolveRef(endRef)
	if err != nil {
		return nil, err
	}
	return e.commitsBetweenHashes(startHash, endHash), nil
}

// commitsBetweenHashes computes reachable(end) - reachable(start). An empty start
// excludes nothing.
func (e *Engine) commitsBetweenHashes(startHash, endHash string) []git.Commit {
	between := e.TraverseParents(endHash)
	if startHash != "" {
		between = between.Difference(e.TraverseParents(startHash))
	}
	out := make([]git.Commit, 0, between.Cardinality())
	between.Each(func(h string) bool {
		out = append(out, *e.graph.Commits[h])
		return false
	})
	return out
}

// PreviousVersion returns the newest tag, in SortedTags order, whose commit is a
// strict ancestor of ref. ok is false when no such tag exists.
func (e *Engine) PreviousVersion(ref string) (tag string, ok bool, err error) {
	hash, err := e.ResolveRef(ref)
	if err != nil {
		return "", false, err
	}
	if _, known := e.graph.Commits[hash]; !known {
		return "", false, nil
	}

	ancestors := e.TraverseParents(hash)
	ancestors.Remove(hash)
	if ancestors.Cardinality() == 0 {
		return "", false, nil
	}

	for _, name := range e.tags {
		if ancestors.Contains(e.graph.Refs.Tags[name]) {
			return name, true, nil
		}
	}
	return "", false, nil
}

// SortByDate sorts commits newest first, or oldest first when ascending is set.
// Equal timestamps are ordered by hash.
func SortByDate(commits []git.Commit, ascending bool) {
	sort.SliceStable(commits, func(i, j int) bool {
		a, b := commits[i], commits[j]
		if !a.Date.Equal(b.Date) {
			if ascending {
				return a.Date.Before(b.Date)
			}
			return a.Date.After(b.Date)
		}
		return a.Hash < b.Hash
	})
}
