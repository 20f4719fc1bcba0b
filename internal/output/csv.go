package output

import (
	"encoding/csv"
	"os"
	"strconv"
)

// CSVRangeWriter writes the commits of a range report as CSV.
type CSVRangeWriter struct{}

// Write outputs one row per commit.
func (w *CSVRangeWriter) Write(report *RangeReport, options OutputOptions) error {
	commits := limitTop(report.Result.Commits, options.Top)

	writer, file, err := createCSVWriter(options.OutputPath)
	if err != nil {
		return err
	}
	if file != nil {
		defer file.Close()
	}

	headers := []string{"Hash", "Version", "Kind", "Subject"}
	if options.Details {
		headers = append(headers, "Author", "Date", "Parents")
	}
	if err := writer.Write(headers); err != nil {
		return err
	}

	for _, c := range commits {
		row := []string{
			c.Hash,
			c.Version,
			string(kindOf(report.Classifier, c)),
			c.Subject,
		}
		if options.Details {
			row = append(row,
				c.Author,
				c.Date.Format(reportDateTimeLayout),
				strconv.Itoa(len(c.Parents)),
			)
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func createCSVWriter(outputPath string) (*csv.Writer, *os.File, error) {
	if outputPath != "" {
		file, err := os.Create(outputPath)
		if err != nil {
			return nil, nil, err
		}
		return csv.NewWriter(file), file, nil
	}
	return csv.NewWriter(os.Stdout), nil, nil
}
