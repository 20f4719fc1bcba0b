package changelog

import (
	"github.com/discourse/discourse-releases/internal/commitkind"
	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/git"
)

// Query describes one changelog request. An empty End uses DefaultEndRef; an
// empty Start uses the previous version of End, or the whole history when End has
// no previous version.
type Query struct {
	Start  string
	End    string
	Filter commitkind.Filter
}

// Result is the answer to a Query.
type Result struct {
	Start     string
	End       string
	StartHash string
	EndHash   string

	// Commits holds the filtered range, newest first.
	Commits []git.Commit
	// Total is the size of the unfiltered range.
	Total  int
	Counts map[commitkind.Kind]int

	Range      *Range
	Features   []feeds.Feature
	Advisories []feeds.Advisory
}

// Changelog resolves the query's refs, computes the range and attaches the kind
// counts, feature announcements and advisories that fall inside it. Counts,
// features and advisories are computed over the unfiltered range.
func (e *Engine) Changelog(q Query) (*Result, error) {
	end := q.End
	if end == "" {
		end = e.DefaultEndRef()
	}
	endHash, err := e.ResolveRef(end)
	if err != nil {
		return nil, err
	}

	start := q.Start
	startHash := ""
	if start == "" {
		prev, ok, err := e.PreviousVersion(end)
		if err != nil {
			return nil, err
		}
		if ok {
			start = prev
		}
	}
	if start != "" {
		startHash, err = e.ResolveRef(start)
		if err != nil {
			return nil, err
		}
	}

	all := e.commitsBetweenHashes(startHash, endHash)
	SortByDate(all, false)

	res := &Result{
		Start:      start,
		End:        end,
		StartHash:  startHash,
		EndHash:    endHash,
		Commits:    e.classifier.Apply(all, q.Filter),
		Total:      len(all),
		Counts:     e.classifier.Count(all),
		Features:   e.FilterFeatures(e.features, all),
		Advisories: FilterAdvisories(e.advisories, all),
	}
	if r, ok := VersionRange(all); ok {
		res.Range = &r
	}
	return res, nil
}
