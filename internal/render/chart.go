package render

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/popclass"
)

// ErrNoCharts is returned by Chart when no chart earns points.
var ErrNoCharts = errors.New("no scoring charts to plot")

// ChartSize is the rendered PNG size.
var ChartSize = struct{ Width, Height vg.Length }{Width: 14 * vg.Inch, Height: 6 * vg.Inch}

// Chart writes a PNG bar chart of the best popclass.TopN chart points,
// coloured by difficulty, with the rating drawn as a horizontal line.
func Chart(w io.Writer, snap crawler.Snapshot) error {
	top := popclass.TopCharts(snap.Scores, popclass.TopN)
	if len(top) == 0 {
		return ErrNoCharts
	}
	p, err := newChartPlot(snap, top)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(ChartSize.Width, ChartSize.Height, "png")
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

func newChartPlot(snap crawler.Snapshot, top []popclass.RankedChart) (*plot.Plot, error) {
	pc := popclass.Calculate(snap.Scores)
	if snap.PopClass != nil {
		pc = *snap.PopClass
	}
	tier := popclass.TierFor(pc.Value)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Pop'n Class %.2f (%s) - Top %d Charts", pc.Value, tier.Romaji, len(top))
	p.Title.TextStyle.Color = ParseHex(tier.Color)
	p.X.Label.Text = "Rank"
	p.Y.Label.Text = "Points"
	p.Y.Min = 0
	p.Y.Max = popclass.MaxPoints
	p.BackgroundColor = ParseHex("#fef6f0")

	// One series per difficulty; the other difficulties' slots stay at zero
	// so every bar keeps its rank position.
	width := vg.Points(9)
	for _, d := range crawler.Difficulties {
		values := make(plotter.Values, len(top))
		found := false
		for i, c := range top {
			if c.Difficulty == d {
				values[i] = c.Points
				found = true
			}
		}
		if !found {
			continue
		}
		bars, err := plotter.NewBarChart(values, width)
		if err != nil {
			return nil, fmt.Errorf("bar chart %s: %w", d, err)
		}
		bars.Color = DifficultyColor(d)
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Legend.Add(string(d), bars)
	}

	avg, err := plotter.NewLine(plotter.XYs{
		{X: -0.5, Y: pc.Value},
		{X: float64(len(top)) - 0.5, Y: pc.Value},
	})
	if err != nil {
		return nil, fmt.Errorf("average line: %w", err)
	}
	avg.Color = ParseHex(tier.Color)
	avg.Width = vg.Points(1.5)
	avg.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	p.Add(avg)
	p.Legend.Add("average", avg)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10

	names := make([]string, len(top))
	for i := range top {
		names[i] = strconv.Itoa(i + 1)
	}
	p.NominalX(names...)
	return p, nil
}
