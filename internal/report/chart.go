// Package report renders a simulation run's equity and drawdown curves to a
// standalone HTML file.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"quantsim/internal/sim"
)

const (
	colorEquity   = "#3b82f6"
	colorCash     = "#34d399"
	colorDrawdown = "#f87171"

	chartWidth  = "1200px"
	chartHeight = "480px"
)

// Write renders the run's snapshots into an HTML report under dir and
// returns the file path.
func Write(dir string, run sim.Run, snapshots []sim.SnapshotRecord) (string, error) {
	if len(snapshots) == 0 {
		return "", fmt.Errorf("no snapshots to render for run %s", run.ID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	xAxis := make([]string, len(snapshots))
	equity := make([]opts.LineData, len(snapshots))
	cash := make([]opts.LineData, len(snapshots))
	drawdown := make([]opts.LineData, len(snapshots))
	for i, snap := range snapshots {
		xAxis[i] = time.UnixMilli(snap.TS).Format("01-02 15:04")
		equity[i] = opts.LineData{Value: snap.Equity}
		cash[i] = opts.LineData{Value: snap.Cash}
		drawdown[i] = opts.LineData{Value: snap.Drawdown * 100}
	}

	equityLine := charts.NewLine()
	equityLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Equity — %s (%s)", run.ID, run.Strategy),
			Subtitle: fmt.Sprintf("return %.2f%%, max drawdown %.2f%%", run.ReturnPct, run.MaxDrawdownPct),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	equityLine.SetXAxis(xAxis)
	equityLine.AddSeries("Equity", equity,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	equityLine.AddSeries("Cash", cash,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorCash, Width: 1}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	drawdownLine := charts.NewLine()
	drawdownLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	drawdownLine.SetXAxis(xAxis)
	drawdownLine.AddSeries("Drawdown", drawdown,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}))

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(equityLine, drawdownLine)

	path := filepath.Join(dir, fmt.Sprintf("run_%s.html", run.ID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", err
	}
	return path, nil
}
