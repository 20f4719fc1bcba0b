package output

import (
	"fmt"

	"github.com/discourse/discourse-releases/internal/commitkind"
	"github.com/discourse/discourse-releases/internal/git"
)

// MarkdownRangeWriter writes range reports as Markdown, grouped by commit kind.
type MarkdownRangeWriter struct{}

// Write outputs the range report as Markdown.
func (w *MarkdownRangeWriter) Write(report *RangeReport, options OutputOptions) error {
	res := report.Result
	commits := limitTop(res.Commits, options.Top)

	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	fmt.Fprintf(out, "# Changelog %s\n\n", escapeMarkdown(rangeLabel(res)))
	if window := versionWindow(res); window != "" {
		fmt.Fprintf(out, "**Versions:** %s\n\n", window)
	}
	fmt.Fprintf(out, "**Commits:** %d\n\n", res.Total)
	if !report.GeneratedAt.IsZero() {
		fmt.Fprintf(out, "**Generated:** %s\n\n", report.GeneratedAt.Format(reportDateLayout))
	}

	if len(res.Advisories) > 0 {
		fmt.Fprintln(out, "## Security Advisories")
		fmt.Fprintln(out)
		for _, a := range res.Advisories {
			fmt.Fprintf(out, "- [%s](%s) **%s** %s\n", a.GHSAID, a.HTMLURL, a.Severity, escapeMarkdown(a.Summary))
		}
		fmt.Fprintln(out)
	}

	if len(res.Features) > 0 {
		fmt.Fprintln(out, "## New Features")
		fmt.Fprintln(out)
		for _, f := range res.Features {
			fmt.Fprintf(out, "- **%s** (%s)\n", escapeMarkdown(f.Title), f.DiscourseVersion)
		}
		fmt.Fprintln(out)
	}

	groups := make(map[commitkind.Kind][]git.Commit)
	for _, c := range commits {
		k := kindOf(report.Classifier, c)
		groups[k] = append(groups[k], c)
	}
	for _, t := range commitkind.Types {
		group := groups[t.Kind]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(out, "## %s (%d)\n\n", t.Label, res.Counts[t.Kind])
		fmt.Fprintln(out, "| Hash | Version | Subject |")
		fmt.Fprintln(out, "|------|---------|---------|")
		for _, c := range group {
			fmt.Fprintf(out, "| `%s` | %s | %s |\n",
				displayHash(c.Hash, options.Details), c.Version, escapeMarkdown(c.Subject))
		}
		fmt.Fprintln(out)
	}

	return nil
}
