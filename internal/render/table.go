package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/popclass"
)

var tableHeaders = table.Row{"#", "Genre / Title", "Diff", "Lv", "Score", "Medal", "Pts"}

// Table renders the best popclass.TopN charts of a snapshot.
func Table(snap crawler.Snapshot) string {
	top := popclass.TopCharts(snap.Scores, popclass.TopN)

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("%s", Headline(snap))
	tw.AppendHeader(tableHeaders)
	for i, c := range top {
		tw.AppendRow(table.Row{
			i + 1,
			DisplayTitle(c.Title, c.Genre),
			strings.ToUpper(string(c.Difficulty)),
			c.Level,
			formatScore(c.Score),
			MedalLabel(c.Medal),
			fmt.Sprintf("%.2f", c.Points),
		})
	}
	if len(top) == 0 {
		tw.AppendRow(table.Row{"", "no scoring charts", "", "", "", "", ""})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	if !snap.ExportedAt.IsZero() {
		tw.SetCaption("Top %d Charts | %s", popclass.TopN, snap.ExportedAt.Format("2006-01-02 15:04 MST"))
	}
	return tw.Render()
}

// Headline is "<player>  Pop'n Class: X.XX (tier)".
func Headline(snap crawler.Snapshot) string {
	pc := crawler.PopClassResult{Tier: popclass.Lowest().Name}
	if snap.PopClass != nil {
		pc = *snap.PopClass
	}
	line := fmt.Sprintf("Pop'n Class: %.2f (%s)", pc.Value, pc.Tier)
	if name := snap.Player.Name(); name != "" {
		line = name + "  " + line
	}
	return line
}

func formatScore(score int) string {
	if score <= 0 {
		return "-"
	}
	return strconv.Itoa(score)
}
