package main

import (
	"fmt"
	"strings"

	"isoconvert/internal/services"
	"isoconvert/internal/workflow"
)

const messageWidth = 60

// renderReport prints the end-of-run summary: one row per image, then a
// totals line.
func renderReport(report *workflow.Report, colorize bool) string {
	headers := []string{"Image", "Preload", "Scan", "Convert", "Titles", "Elapsed", "Detail"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		elapsed := item.Preload.Duration + item.Scan.Duration + item.Convert.Duration
		titles := "-"
		if len(item.Titles) > 0 || item.Scan.Status == services.StatusSucceeded {
			titles = fmt.Sprintf("%d/%d", item.EncodedTitles(), len(item.Titles))
		}
		rows = append(rows, []string{
			item.Label,
			statusCell(item.Preload.Status, colorize),
			statusCell(item.Scan.Status, colorize),
			statusCell(item.Convert.Status, colorize),
			titles,
			formatElapsed(elapsed),
			truncate(itemDetail(item), messageWidth),
		})
	}

	var b strings.Builder
	b.WriteString(renderTable(headers, rows, aligns))
	b.WriteString("\n")
	succeeded, failed := report.Tally()
	fmt.Fprintf(&b, "Run %s: %d succeeded, %d failed in %s", report.RunID, succeeded, failed, formatElapsed(report.Elapsed()))
	if report.Interrupted {
		b.WriteString(" (interrupted)")
	}
	b.WriteString("\n")
	return b.String()
}

// itemDetail returns the most relevant message for the summary: the first
// failing stage, otherwise any informational detail.
func itemDetail(item *workflow.ItemReport) string {
	for _, name := range []string{workflow.StagePreload, workflow.StageScan, workflow.StageConvert} {
		o := item.Stage(name)
		if o.Status == services.StatusFailed || (o.Status == services.StatusTimeout && name != workflow.StagePreload) {
			return name + ": " + o.Message()
		}
	}
	return item.Convert.Message()
}
