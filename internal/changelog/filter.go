package changelog

import (
	"regexp"

	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/git"
	"github.com/discourse/discourse-releases/internal/version"
)

var explicitVersion = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Range is a half-open version interval (Oldest, Newest] derived from a commit set.
// Bounds are canonical semver strings.
type Range struct {
	Oldest string `json:"oldest"`
	Newest string `json:"newest"`
}

// Contains reports whether v lies strictly above Oldest and at or below Newest.
func (r Range) Contains(v string) bool {
	if r.Oldest == "" || r.Newest == "" {
		return false
	}
	if _, ok := version.Canonical(v); !ok {
		return false
	}
	return version.Compare(v, r.Oldest) > 0 && version.Compare(v, r.Newest) <= 0
}

// VersionRange derives the range from the version labels of the newest and oldest
// commits by date. ok is false for an empty set or when either label does not parse.
func VersionRange(commits []git.Commit) (Range, bool) {
	if len(commits) == 0 {
		return Range{}, false
	}
	sorted := append([]git.Commit(nil), commits...)
	SortByDate(sorted, false)

	newest, okN := version.Canonical(sorted[0].Version)
	oldest, okO := version.Canonical(sorted[len(sorted)-1].Version)
	if !okN || !okO {
		return Range{}, false
	}
	return Range{Oldest: oldest, Newest: newest}, true
}

// FilterFeatures returns the features that belong to the commit set. A feature with
// an explicit version is matched against the version range; otherwise its version
// field is resolved as a ref and must land on a commit in the set. Features whose
// ref does not resolve are excluded.
func (e *Engine) FilterFeatures(features []feeds.Feature, commits []git.Commit) []feeds.Feature {
	out := []feeds.Feature{}
	if len(commits) == 0 || len(features) == 0 {
		return out
	}
	r, hasRange := VersionRange(commits)
	members := make(map[string]struct{}, len(commits))
	for _, c := range commits {
		members[c.Hash] = struct{}{}
	}

	for _, f := range features {
		v := f.DiscourseVersion
		if v == "" {
			continue
		}
		if explicitVersion.MatchString(v) {
			if hasRange && r.Contains(v) {
				out = append(out, f)
			}
			continue
		}
		res := e.Resolve(v)
		if !res.OK() {
			continue
		}
		if _, ok := members[res.Hash]; ok {
			out = append(out, f)
		}
	}
	return out
}

// FilterAdvisories returns the advisories with at least one patched version in the
// commit set's version range.
func FilterAdvisories(advisories []feeds.Advisory, commits []git.Commit) []feeds.Advisory {
	out := []feeds.Advisory{}
	r, ok := VersionRange(commits)
	if !ok {
		return out
	}
	for _, a := range advisories {
		for _, v := range a.PatchedVersions {
			if r.Contains(v) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}
