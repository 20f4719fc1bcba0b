package output

import (
	"io"
	"os"
	"strings"

	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/commitkind"
	"github.com/discourse/discourse-releases/internal/git"
)

const (
	reportDateLayout     = "2006-01-02"
	reportDateTimeLayout = "2006-01-02T15:04:05"
	shortHashLength      = 10
	maxSubjectLength     = 72
)

func limitTop[T any](items []T, top int) []T {
	if top <= 0 || top >= len(items) {
		return items
	}
	return items[:top]
}

// rangeLabel renders the resolved range as "start..end", or "..end" when the range
// reaches back to the start of history.
func rangeLabel(res *changelog.Result) string {
	return res.Start + ".." + res.End
}

// versionWindow renders the half-open version window, or "" when there is none.
func versionWindow(res *changelog.Result) string {
	if res.Range == nil {
		return ""
	}
	return "(" + res.Range.Oldest + ", " + res.Range.Newest + "]"
}

func kindOf(c *commitkind.Classifier, commit git.Commit) commitkind.Kind {
	if c == nil {
		c = commitkind.Default()
	}
	return c.Classify(commit.Subject)
}

func displayHash(hash string, details bool) string {
	if details {
		return hash
	}
	return git.ShortHash(hash, shortHashLength)
}

func truncateMessage(msg string, maxLen int) string {
	if len(msg) <= maxLen {
		return msg
	}
	return msg[:maxLen-3] + "..."
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"|", "\\|",
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
	)
	return replacer.Replace(s)
}

func openOutputWriter(outputPath string) (io.Writer, *os.File, error) {
	if outputPath == "" {
		return os.Stdout, nil, nil
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, nil, err
	}
	return file, file, nil
}
