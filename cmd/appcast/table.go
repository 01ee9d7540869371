package main

import (
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/umputun/appcast/pkg/appcast"
	"github.com/umputun/appcast/pkg/domain"
)

// renderSummary shows what happened to each release, in input order
func renderSummary(releases []domain.Release, report *appcast.Report) string {
	actions := map[string]string{}
	for _, v := range report.Skipped {
		actions[v] = "skipped"
	}
	for _, v := range report.Updated {
		actions[v] = "updated"
	}
	for _, v := range report.Created {
		actions[v] = "created"
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Version", "Short", "Action", "Size", "Deltas"})
	for _, r := range releases {
		tw.AppendRow(table.Row{r.Version, r.ShortVersion, actions[r.Version], humanize.Bytes(uint64(max(r.FileSize, 0))), len(r.Deltas)})
	}
	tw.AppendFooter(table.Row{"", "", "items", report.Items, ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
