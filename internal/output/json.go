package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/feeds"
	"github.com/discourse/discourse-releases/internal/git"
)

// JSONRangeWriter writes range reports as JSON.
type JSONRangeWriter struct{}

// JSONRangeReport is the JSON output structure for a range report.
type JSONRangeReport struct {
	Start       string           `json:"start"`
	End         string           `json:"end"`
	StartHash   string           `json:"startHash,omitempty"`
	EndHash     string           `json:"endHash"`
	GeneratedAt string           `json:"generatedAt"`
	Total       int              `json:"total"`
	Counts      map[string]int   `json:"counts"`
	Range       *changelog.Range `json:"range,omitempty"`
	Commits     []JSONCommit     `json:"commits"`
	Features    []feeds.Feature  `json:"features"`
	Advisories  []feeds.Advisory `json:"advisories"`
}

// JSONCommit is the JSON output structure for a single commit.
type JSONCommit struct {
	Hash    string `json:"hash"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Author  string `json:"author,omitempty"`
	Date    string `json:"date,omitempty"`
	Body    string `json:"body,omitempty"`
}

func newJSONCommit(report *RangeReport, c git.Commit, details bool) JSONCommit {
	jc := JSONCommit{
		Hash:    c.Hash,
		Version: c.Version,
		Kind:    string(kindOf(report.Classifier, c)),
		Subject: c.Subject,
	}
	if details {
		jc.Author = c.Author
		jc.Date = c.Date.UTC().Format(time.RFC3339)
		jc.Body = c.Body
	}
	return jc
}

// Write outputs the range report as JSON.
func (w *JSONRangeWriter) Write(report *RangeReport, options OutputOptions) error {
	res := report.Result
	commits := limitTop(res.Commits, options.Top)

	jsonCommits := make([]JSONCommit, len(commits))
	for i, c := range commits {
		jsonCommits[i] = newJSONCommit(report, c, options.Details)
	}

	counts := make(map[string]int, len(res.Counts))
	for k, n := range res.Counts {
		counts[string(k)] = n
	}

	jsonReport := JSONRangeReport{
		Start:       res.Start,
		End:         res.End,
		StartHash:   res.StartHash,
		EndHash:     res.EndHash,
		GeneratedAt: report.GeneratedAt.UTC().Format(time.RFC3339),
		Total:       res.Total,
		Counts:      counts,
		Range:       res.Range,
		Commits:     jsonCommits,
		Features:    nonNil(res.Features),
		Advisories:  nonNil(res.Advisories),
	}
	return writeJSON(jsonReport, options.OutputPath)
}

// JSONRefsWriter writes ref listings as JSON.
type JSONRefsWriter struct{}

// JSONRefsReport is the JSON output structure for a ref listing.
type JSONRefsReport struct {
	BaseTag      string          `json:"baseTag"`
	TotalCommits int             `json:"totalCommits"`
	GeneratedAt  string          `json:"generatedAt,omitempty"`
	DefaultStart string          `json:"defaultStart"`
	DefaultEnd   string          `json:"defaultEnd"`
	Refs         []changelog.Ref `json:"refs"`
}

// Write outputs the refs as JSON.
func (w *JSONRefsWriter) Write(report *RefsReport, options OutputOptions) error {
	return writeJSON(JSONRefsReport{
		BaseTag:      report.BaseTag,
		TotalCommits: report.TotalCommits,
		GeneratedAt:  report.GeneratedAt,
		DefaultStart: report.DefaultStart,
		DefaultEnd:   report.DefaultEnd,
		Refs:         nonNil(limitTop(report.Refs, options.Top)),
	}, options.OutputPath)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeJSON(data interface{}, outputPath string) error {
	encoder := json.NewEncoder(os.Stdout)
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer file.Close()
		encoder = json.NewEncoder(file)
	}

	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
