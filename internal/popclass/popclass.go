// Package popclass computes the composite Pop'n Class rating from merged
// songs.
package popclass

import (
	"math"
	"sort"
	"strings"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

const (
	// MinScore is the lowest score that earns points.
	MinScore = 50000
	// TopN is the number of best charts averaged into the rating.
	TopN = 50
	// MaxPoints caps a single chart.
	MaxPoints = 100.0

	divisor         = 5440.0
	clearBonus      = 3000
	fullComboBonus  = 5000
	levelMultiplier = 10000
)

// MedalBonus returns the clear bonus a medal adds to a chart's raw points.
func MedalBonus(medal crawler.Medal) int {
	m := string(medal)
	switch {
	case medal == crawler.MedalEasyClear, strings.HasPrefix(m, string(crawler.MedalNormalClear)):
		return clearBonus
	case strings.HasPrefix(m, string(crawler.MedalFullCombo)), medal == crawler.MedalPerfect:
		return fullComboBonus
	default:
		return 0
	}
}

// ChartPoints scores one chart. Scores below MinScore earn nothing; otherwise
// the value is floored to two decimals and capped at MaxPoints.
func ChartPoints(level, score int, medal crawler.Medal) float64 {
	if score < MinScore {
		return 0
	}
	raw := float64(levelMultiplier*level+score-MinScore+MedalBonus(medal)) / divisor
	return math.Min(floor2(raw), MaxPoints)
}

// RecordPoints scores a chart record, treating absent level and score as 0.
func RecordPoints(rec crawler.ChartRecord) float64 {
	return ChartPoints(rec.LevelOrZero(), rec.ScoreOrZero(), rec.Medal)
}

// RankedChart is one scoring chart with its song context.
type RankedChart struct {
	Title      string
	Genre      string
	Difficulty crawler.Difficulty
	Level      int
	Score      int
	Medal      crawler.Medal
	Rank       crawler.Rank
	Points     float64
}

// TopCharts returns every chart with positive points, best first, truncated to
// n when n > 0. Equal points keep song and difficulty order.
func TopCharts(songs []*crawler.Song, n int) []RankedChart {
	var charts []RankedChart
	for _, s := range songs {
		for _, d := range crawler.Difficulties {
			rec, ok := s.Charts[d]
			if !ok {
				continue
			}
			p := RecordPoints(rec)
			if p <= 0 {
				continue
			}
			charts = append(charts, RankedChart{
				Title:      s.Title,
				Genre:      s.Genre,
				Difficulty: d,
				Level:      rec.LevelOrZero(),
				Score:      rec.ScoreOrZero(),
				Medal:      rec.Medal,
				Rank:       rec.Rank,
				Points:     p,
			})
		}
	}
	sort.SliceStable(charts, func(i, j int) bool { return charts[i].Points > charts[j].Points })
	if n > 0 && len(charts) > n {
		charts = charts[:n]
	}
	return charts
}

// Calculate reduces songs to the rating: the floored average of the best TopN
// chart points, its tier, and the number of charts that scored at all.
func Calculate(songs []*crawler.Song) crawler.PopClassResult {
	all := TopCharts(songs, 0)
	if len(all) == 0 {
		return crawler.PopClassResult{Value: 0, Tier: Lowest().Name, Count: 0}
	}
	top := all
	if len(top) > TopN {
		top = top[:TopN]
	}
	sum := 0.0
	for _, c := range top {
		sum += c.Points
	}
	avg := floor2(sum / float64(len(top)))
	return crawler.PopClassResult{Value: avg, Tier: TierFor(avg).Name, Count: len(all)}
}

func floor2(v float64) float64 {
	return math.Floor(v*100) / 100
}
