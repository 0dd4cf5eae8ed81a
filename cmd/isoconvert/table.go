package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"isoconvert/internal/services"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable draws rows under headers in the rounded style. Short rows are
// padded; columns listed as alignRight in aligns are right-aligned.
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	toRow := func(cells []string) table.Row {
		row := make(table.Row, len(headers))
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		return row
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers))
	for _, cells := range rows {
		tw.AppendRow(toRow(cells))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// statusCell renders a report status, coloured when writing to a terminal.
func statusCell(status string, colorize bool) string {
	if status == "" {
		status = "-"
	}
	if !colorize {
		return status
	}
	switch status {
	case services.StatusSucceeded:
		return text.FgGreen.Sprint(status)
	case services.StatusFailed:
		return text.FgRed.Sprint(status)
	case services.StatusTimeout:
		return text.FgYellow.Sprint(status)
	case services.StatusSkipped:
		return text.FgHiBlack.Sprint(status)
	default:
		return status
	}
}

func passCell(passed, advisory, colorize bool) string {
	label, color := "ok", text.FgGreen
	switch {
	case passed:
	case advisory:
		label, color = "warn", text.FgYellow
	default:
		label, color = "fail", text.FgRed
	}
	if !colorize {
		return label
	}
	return color.Sprint(label)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}
