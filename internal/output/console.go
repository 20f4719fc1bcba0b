package output

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/discourse/discourse-releases/internal/commitkind"
)

// ConsoleRangeWriter writes range reports to the console.
type ConsoleRangeWriter struct{}

// Write outputs the range report to the console.
func (w *ConsoleRangeWriter) Write(report *RangeReport, options OutputOptions) error {
	res := report.Result
	commits := limitTop(res.Commits, options.Top)

	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	color.New(color.FgGreen).Fprintf(out, "Changelog %s\n", rangeLabel(res))
	if window := versionWindow(res); window != "" {
		fmt.Fprintf(out, "Versions: %s\n", window)
	}
	if len(res.Commits) != res.Total {
		fmt.Fprintf(out, "Commits: %d of %d\n", len(res.Commits), res.Total)
	} else {
		fmt.Fprintf(out, "Commits: %d\n", res.Total)
	}
	fmt.Fprintf(out, "%s\n\n", countsLine(res.Counts))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if options.Details {
		fmt.Fprintln(tw, "#\tHash\tVersion\tKind\tDate\tAuthor\tSubject")
	} else {
		fmt.Fprintln(tw, "#\tHash\tVersion\tKind\tSubject")
	}
	for i, c := range commits {
		kind := kindOf(report.Classifier, c)
		kindText := getKindColor(kind)("%s", kind)
		if options.Details {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				i+1, c.Hash, c.Version, kindText,
				c.Date.Format(reportDateTimeLayout), c.Author, c.Subject)
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				i+1, displayHash(c.Hash, false), c.Version, kindText,
				truncateMessage(c.Subject, maxSubjectLength))
		}
	}
	tw.Flush()

	if len(res.Features) > 0 {
		fmt.Fprintln(out)
		color.New(color.FgGreen, color.Underline).Fprintln(out, "New features:")
		for _, f := range res.Features {
			fmt.Fprintf(out, "  - %s (%s)\n", f.Title, f.DiscourseVersion)
		}
	}
	if len(res.Advisories) > 0 {
		fmt.Fprintln(out)
		color.New(color.FgRed, color.Underline).Fprintln(out, "Security advisories:")
		for _, a := range res.Advisories {
			fmt.Fprintf(out, "  - %s [%s] %s\n", a.GHSAID, a.Severity, a.Summary)
		}
	}
	return nil
}

// ConsoleRefsWriter writes ref listings to the console.
type ConsoleRefsWriter struct{}

// Write outputs the refs as a table.
func (w *ConsoleRefsWriter) Write(report *RefsReport, options OutputOptions) error {
	refs := limitTop(report.Refs, options.Top)

	out, file, err := openOutputWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	color.New(color.FgGreen).Fprintf(out, "Snapshot since %s: %d commits\n", report.BaseTag, report.TotalCommits)
	if report.GeneratedAt != "" {
		fmt.Fprintf(out, "Generated: %s\n", report.GeneratedAt)
	}
	fmt.Fprintf(out, "Default range: %s..%s\n\n", report.DefaultStart, report.DefaultEnd)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Type\tName")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%s\n", r.Type, r.Name)
	}
	return tw.Flush()
}

// countsLine renders the non-zero kind counts in display order.
func countsLine(counts map[commitkind.Kind]int) string {
	var parts []string
	for _, t := range commitkind.Types {
		if n := counts[t.Kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", t.Label, n))
		}
	}
	if len(parts) == 0 {
		return "No commits"
	}
	return strings.Join(parts, ", ")
}

func getKindColor(kind commitkind.Kind) func(string, ...interface{}) string {
	switch kind {
	case commitkind.Security:
		return color.RedString
	case commitkind.Feature:
		return color.GreenString
	case commitkind.Fix, commitkind.Perf:
		return color.YellowString
	default:
		return fmt.Sprintf
	}
}
