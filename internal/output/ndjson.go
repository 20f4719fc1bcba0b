package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// NDJSONRangeWriter writes range reports as NDJSON (one JSON object per line) for
// pipelines.
type NDJSONRangeWriter struct{}

// NDJSONSummary is the first line of NDJSON output.
type NDJSONSummary struct {
	Type       string         `json:"type"`
	Start      string         `json:"start"`
	End        string         `json:"end"`
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Features   int            `json:"features"`
	Advisories int            `json:"advisories"`
}

// NDJSONCommit is one commit line.
type NDJSONCommit struct {
	Type string `json:"type"`
	JSONCommit
}

// Write outputs a summary line followed by one line per commit.
func (w *NDJSONRangeWriter) Write(report *RangeReport, options OutputOptions) error {
	res := report.Result
	commits := limitTop(res.Commits, options.Top)

	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	counts := make(map[string]int, len(res.Counts))
	for k, n := range res.Counts {
		counts[string(k)] = n
	}
	summary := NDJSONSummary{
		Type:       "summary",
		Start:      res.Start,
		End:        res.End,
		Total:      res.Total,
		Counts:     counts,
		Features:   len(res.Features),
		Advisories: len(res.Advisories),
	}
	if err := writeNDJSONLine(out, summary); err != nil {
		return err
	}

	for _, c := range commits {
		entry := NDJSONCommit{Type: "commit", JSONCommit: newJSONCommit(report, c, options.Details)}
		if err := writeNDJSONLine(out, entry); err != nil {
			return err
		}
	}
	return nil
}

func writeNDJSONLine(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal NDJSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
