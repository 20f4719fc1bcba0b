package version

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
)

// SupportEntry is one minor line from versions.json.
type SupportEntry struct {
	Released  bool `json:"released"`
	Supported bool `json:"supported"`
}

// EndOfLife reports whether the line was released and is no longer supported.
func (e SupportEntry) EndOfLife() bool {
	return e.Released && !e.Supported
}

// InDevelopment reports whether the line is supported but not yet released.
func (e SupportEntry) InDevelopment() bool {
	return !e.Released && e.Supported
}

// Support maps "MAJOR.MINOR" to its support entry.
type Support map[string]SupportEntry

// ParseSupport decodes a versions.json document.
func ParseSupport(data []byte) (Support, error) {
	var s Support
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse versions document: %w", err)
	}
	return s, nil
}

// Provisional is an unreleased version and the branch it will be cut from.
type Provisional struct {
	Branch string `json:"branch"`
}

// ComputeProvisional returns the next unreleased version of every supported minor line,
// keyed by version. The in-development line maps to the "latest" branch and released
// lines to "release/MAJOR.MINOR". Lines whose branch is not in branches are skipped.
func ComputeProvisional(tags, branches map[string]string, support Support, logger *slog.Logger) map[string]Provisional {
	if logger == nil {
		logger = slog.Default()
	}

	latestPatch := make(map[string]int)
	for tag := range tags {
		minor, patch, ok := MinorPatch(tag)
		if !ok {
			continue
		}
		if cur, seen := latestPatch[minor]; !seen || patch > cur {
			latestPatch[minor] = patch
		}
	}

	minors := make([]string, 0, len(support))
	for m := range support {
		minors = append(minors, m)
	}
	sort.Strings(minors)

	out := make(map[string]Provisional)
	for _, minor := range minors {
		entry := support[minor]
		if entry.EndOfLife() {
			continue
		}

		branch := "release/" + minor
		if entry.InDevelopment() {
			branch = "latest"
		}
		if _, ok := branches[branch]; !ok {
			logger.Info("skipping provisional version", "minor", minor, "branch", branch, "reason", "branch not found")
			continue
		}

		next := fmt.Sprintf("v%s.0", minor)
		if patch, ok := latestPatch[minor]; ok {
			next = fmt.Sprintf("v%s.%d", minor, patch+1)
		}
		out[next] = Provisional{Branch: branch}
		logger.Info("provisional version", "version", next, "branch", branch)
	}
	return out
}
