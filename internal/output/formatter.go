package output

import (
	"time"

	"github.com/discourse/discourse-releases/internal/changelog"
	"github.com/discourse/discourse-releases/internal/commitkind"
)

// Compile-time interface conformance checks.
var (
	_ RangeReportWriter = (*ConsoleRangeWriter)(nil)
	_ RangeReportWriter = (*JSONRangeWriter)(nil)
	_ RangeReportWriter = (*CSVRangeWriter)(nil)
	_ RangeReportWriter = (*MarkdownRangeWriter)(nil)
	_ RangeReportWriter = (*NDJSONRangeWriter)(nil)

	_ RefsReportWriter = (*ConsoleRefsWriter)(nil)
	_ RefsReportWriter = (*JSONRefsWriter)(nil)
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	FormatConsole  OutputFormat = "console"
	FormatJSON     OutputFormat = "json"
	FormatCSV      OutputFormat = "csv"
	FormatMarkdown OutputFormat = "markdown"
	FormatNDJSON   OutputFormat = "ndjson"
)

// OutputOptions controls output behavior.
type OutputOptions struct {
	Format     OutputFormat
	Top        int
	OutputPath string
	// Details adds author, date and full hashes to the commit listing.
	Details bool
}

// RangeReport holds one changelog range query and its answer.
type RangeReport struct {
	GeneratedAt time.Time
	Result      *changelog.Result
	Classifier  *commitkind.Classifier
}

// RefsReport lists the refs of a snapshot.
type RefsReport struct {
	BaseTag      string
	TotalCommits int
	GeneratedAt  string
	DefaultStart string
	DefaultEnd   string
	Refs         []changelog.Ref
}

// RangeReportWriter writes changelog range reports.
type RangeReportWriter interface {
	Write(report *RangeReport, options OutputOptions) error
}

// RefsReportWriter writes ref listings.
type RefsReportWriter interface {
	Write(report *RefsReport, options OutputOptions) error
}

// NewRangeReportWriter creates a range report writer for the specified format.
func NewRangeReportWriter(format OutputFormat) RangeReportWriter {
	switch format {
	case FormatJSON:
		return &JSONRangeWriter{}
	case FormatCSV:
		return &CSVRangeWriter{}
	case FormatMarkdown:
		return &MarkdownRangeWriter{}
	case FormatNDJSON:
		return &NDJSONRangeWriter{}
	default:
		return &ConsoleRangeWriter{}
	}
}

// NewRefsReportWriter creates a refs writer. Only console and JSON are supported;
// other formats fall back to the console.
func NewRefsReportWriter(format OutputFormat) RefsReportWriter {
	if format == FormatJSON || format == FormatNDJSON {
		return &JSONRefsWriter{}
	}
	return &ConsoleRefsWriter{}
}
