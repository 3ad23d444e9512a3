package report

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderTable(w io.Writer, records []Record, opts Options) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault

	if opts.Title != "" {
		tbl.SetTitle(opts.Title)
	}

	tbl.AppendHeader(table.Row{"Date", "Time", "Commit", "Lines", "Change"})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	for i, rec := range records {
		when := rec.When.In(opts.Location)

		tbl.AppendRow(table.Row{
			when.Format(dateLayout),
			when.Format(timeLayout),
			rec.CommitID,
			humanize.Comma(rec.Lines),
			change(records, i),
		})
	}

	tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("Total: %d commits", len(records)), "", ""})

	_, err := io.WriteString(w, tbl.Render()+"\n")
	if err != nil {
		return fmt.Errorf("write table report: %w", err)
	}

	return nil
}

// change is the difference to the next older record. Records are newest
// first, so the oldest one has nothing to compare to.
func change(records []Record, i int) string {
	if i+1 >= len(records) {
		return ""
	}

	delta := records[i].Lines - records[i+1].Lines

	switch {
	case delta > 0:
		return "+" + humanize.Comma(delta)
	case delta < 0:
		return humanize.Comma(delta)
	default:
		return "0"
	}
}
