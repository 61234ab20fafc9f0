package util

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// PlotProgress renders a line chart of covered objectives and archive size
// per iteration of a search on subject.
func PlotProgress(w io.Writer, samples []Sample, subject, algorithmName string) error {
	if len(samples) == 0 {
		return fmt.Errorf("no progress samples for %s on %s", algorithmName, subject)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s coverage of %s", algorithmName, subject),
			Subtitle: fmt.Sprintf("%d objectives", samples[len(samples)-1].Objectives),
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "iteration",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "objectives",
			SplitLine: &opts.SplitLine{
				Show: opts.Bool(true),
			},
		}))

	iterations := make([]int, len(samples))
	covered := make([]opts.LineData, len(samples))
	archived := make([]opts.LineData, len(samples))
	for i, s := range samples {
		iterations[i] = s.Iteration
		covered[i] = opts.LineData{Value: s.Covered, Symbol: "circle"}
		archived[i] = opts.LineData{Value: s.ArchiveSize, Symbol: "triangle"}
	}

	line.SetXAxis(iterations).
		AddSeries("Covered", covered).
		AddSeries("Archive size", archived).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
			charts.WithLineChartOpts(opts.LineChart{Step: true}),
		)

	return line.Render(w)
}

// PlotProgressFile writes the chart to <subject>_<algorithm>_progress.html
// in dir and returns the file name.
func PlotProgressFile(dir string, samples []Sample, subject, algorithmName string) (string, error) {
	name := fmt.Sprintf("%s/%s_%s_progress.html", dir, subject, algorithmName)
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := PlotProgress(f, samples, subject, algorithmName); err != nil {
		return "", err
	}
	return name, nil
}
