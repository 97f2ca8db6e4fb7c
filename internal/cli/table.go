package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/matzehuels/sceneweaver/pkg/timeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

// renderTimeline lays out entries as a table, indenting nested scenes.
func renderTimeline(entries []timeline.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		transition := ""
		if e.Transition > 0 {
			transition = formatSeconds(e.Transition)
		}
		cache := ""
		switch {
		case e.Cached:
			cache = iconCached
		case e.Cacheable:
			cache = "yes"
		}
		rows = append(rows, []string{
			strings.Repeat("  ", e.Depth) + e.ID,
			string(e.Kind),
			string(e.Mode),
			formatSeconds(e.Start),
			formatSeconds(e.Duration),
			transition,
			cache,
		})
	}
	return renderTable(
		[]string{"Scene", "Type", "Mode", "Start", "Duration", "Transition", "Cache"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

// formatCount renders n with a singular or plural noun.
func formatCount(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
