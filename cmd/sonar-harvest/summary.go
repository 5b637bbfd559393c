package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/sonar-harvest/internal/harvest"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func printSummary(w io.Writer, report *harvest.Report) {
	if len(report.Phases) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Phase", "Retrieved", "Files", "Failures", "Duration"})

	var (
		retrieved, files, failures int
		total                      time.Duration
	)
	for _, p := range report.Phases {
		t.AppendRow(table.Row{p.Name, p.Retrieved, len(p.Files), len(p.Failures), p.Duration.Round(time.Millisecond).String()})
		retrieved += p.Retrieved
		files += len(p.Files)
		failures += len(p.Failures)
		total += p.Duration
	}
	t.AppendFooter(table.Row{"Total", retrieved, files, failures, total.Round(time.Millisecond).String()})
	t.Render()

	if failures == 0 {
		return
	}

	f := table.NewWriter()
	f.SetOutputMirror(w)
	f.SetStyle(table.StyleRounded)
	f.SetTitle(fmt.Sprintf("%d failed resources", failures))
	f.AppendHeader(table.Row{"Phase", "Resource", "Error"})
	for _, pf := range report.Failures() {
		f.AppendRow(table.Row{pf.Phase, pf.Resource, pf.Err.Error()})
	}
	f.Render()
}
