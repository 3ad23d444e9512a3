package report

import (
	"fmt"
	"io"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const fullZoomPct = 100

// buildChart returns an HTML line chart of the totals in chronological order.
func buildChart(records []Record, o Options) *charts.Line {
	title := "Lines over time"
	subtitle := o.Title

	if len(records) == 0 {
		subtitle = "No data"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: fullZoomPct}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Commit date"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Lines"}),
	)

	chronological := slices.Clone(records)
	slices.Reverse(chronological)

	labels := make([]string, len(chronological))
	data := make([]opts.LineData, len(chronological))

	for i, rec := range chronological {
		labels[i] = rec.When.In(o.Location).Format(dateLayout)
		data[i] = opts.LineData{Value: rec.Lines, Name: rec.CommitID}
	}

	line.SetXAxis(labels)
	line.AddSeries("lines", data, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.3)}))

	return line
}

func renderPlot(w io.Writer, records []Record, o Options) error {
	err := buildChart(records, o).Render(w)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	return nil
}
