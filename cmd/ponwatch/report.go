package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/ponwatch/internal/model"
	"github.com/tinytelemetry/ponwatch/internal/report"
	"github.com/tinytelemetry/ponwatch/internal/table"
	"go.uber.org/zap"
)

const (
	reportChartHeight = 10
	reportBarWidth    = 3
	maxCellWidth      = 24
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	totalStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Background(lipgloss.Color("208"))
)

type reportOptions struct {
	Rows     int
	TopOLTs  int
	XLSXPath string
}

// runReport refreshes once and prints the pivot head and the OLT ranking.
func runReport(ctx context.Context, cfg appConfig, opts reportOptions, logger *zap.Logger, out io.Writer) error {
	p, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	snap, err := p.state.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	if snap.Alarms.Len() == 0 {
		fmt.Fprintln(out, dimStyle.Render("No alarm rows in either feed."))
		return nil
	}

	fmt.Fprintf(out, "%s  %s\n\n",
		headerStyle.Render("Alarmas"),
		dimStyle.Render(fmt.Sprintf("%d rows (huawei %d, zte %d), %d client matches, fetched %s",
			snap.Alarms.Len(), snap.HuaweiRows, snap.ZTERows, snap.ClientMatches,
			snap.FetchedAt.Format(report.ISOLayout))))

	pivot, err := report.BuildPivot(snap.Alarms, report.DefaultPivotSpec)
	missing, pivotSkipped := table.MissingColumns(err)
	switch {
	case pivotSkipped:
		logger.Warn("pivot skipped", zap.Strings("missing", missing))
		fmt.Fprintln(out, dimStyle.Render("Pivot skipped, missing columns: "+strings.Join(missing, ", ")))
	case err != nil:
		return err
	default:
		fmt.Fprintln(out, renderPivot(pivot.Head(opts.Rows)))
		if opts.Rows >= 0 && len(pivot.Rows) > opts.Rows {
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("... %d more rows", len(pivot.Rows)-opts.Rows)))
		}
	}

	top := report.TopOLTs(snap.Alarms, opts.TopOLTs)
	if len(top) > 0 {
		fmt.Fprintf(out, "\n%s\n\n%s\n", headerStyle.Render("Top OLTs"), renderTopOLTs(top))
	}

	if opts.XLSXPath != "" && !pivotSkipped {
		if err := p.state.ExportPivot(ctx, opts.XLSXPath); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintf(out, "\n%s %s\n", dimStyle.Render("Pivot written to"), shortenPath(opts.XLSXPath))
	}
	return nil
}

// renderPivot lays the pivot out as fixed-width columns.
func renderPivot(p *report.Pivot) string {
	columns := p.Columns()
	records := p.Records()

	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = lipgloss.Width(c)
	}
	for _, rec := range records {
		for i, v := range rec {
			widths[i] = max(widths[i], min(lipgloss.Width(v), maxCellWidth))
		}
	}

	totalIdx := len(columns) - 1
	var b strings.Builder
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = headerStyle.Width(widths[i]).Render(c)
	}
	b.WriteString(strings.Join(cells, "  "))
	b.WriteByte('\n')

	for _, rec := range records {
		for i, v := range rec {
			style := lipgloss.NewStyle()
			if i == totalIdx {
				style = totalStyle
			}
			cells[i] = style.Width(widths[i]).MaxWidth(widths[i]).Render(v)
		}
		b.WriteString(strings.Join(cells, "  "))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderTopOLTs draws one bar per OLT followed by a numbered legend.
func renderTopOLTs(top []model.DimensionCount) string {
	width := len(top) * (reportBarWidth + 1)
	bc := barchart.New(width, reportChartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(reportBarWidth),
		barchart.WithNoAxis(),
	)
	for i, d := range top {
		bc.Push(barchart.BarData{
			Label: fmt.Sprintf("%d", i+1),
			Values: []barchart.BarValue{
				{Name: d.Value, Value: float64(d.Count), Style: barStyle},
			},
		})
	}
	bc.Draw()

	legend := make([]string, len(top))
	for i, d := range top {
		legend[i] = fmt.Sprintf("%s %s %s",
			dimStyle.Render(fmt.Sprintf("%2d", i+1)),
			d.Value,
			totalStyle.Render(fmt.Sprintf("%d", d.Count)))
	}
	return bc.View() + "\n\n" + strings.Join(legend, "\n")
}
