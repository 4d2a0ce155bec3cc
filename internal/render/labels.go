// Package render presents the ranked charts behind the Pop'n Class rating: a
// text table for terminals and the API, and a PNG bar chart.
package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/merge"
)

const titleLimit = 28

var medalLabels = map[crawler.Medal]string{
	crawler.MedalNoPlay:             "No Play",
	crawler.MedalEasyClear:          "緑⬤",
	crawler.MedalFailed1:            "灰⬤",
	crawler.MedalFailed2:            "灰◆",
	crawler.MedalFailed3:            "灰★",
	crawler.MedalNormalClear:        "銅⬤",
	crawler.MedalNormalClearIn20Bad: "銅◆",
	crawler.MedalNormalClearIn5Bad:  "銅★",
	crawler.MedalFullCombo:          "銀⬤",
	crawler.MedalFullComboIn20Good:  "銀◆",
	crawler.MedalFullComboIn5Good:   "銀★",
	crawler.MedalPerfect:            "金★",
}

var medalColors = map[crawler.Medal]string{
	crawler.MedalNoPlay:             "#bbb",
	crawler.MedalEasyClear:          "#2ea868",
	crawler.MedalFailed1:            "#999",
	crawler.MedalFailed2:            "#999",
	crawler.MedalFailed3:            "#999",
	crawler.MedalNormalClear:        "#b87333",
	crawler.MedalNormalClearIn20Bad: "#b87333",
	crawler.MedalNormalClearIn5Bad:  "#b87333",
	crawler.MedalFullCombo:          "#888",
	crawler.MedalFullComboIn20Good:  "#888",
	crawler.MedalFullComboIn5Good:   "#888",
	crawler.MedalPerfect:            "#d4a017",
}

var diffColors = map[crawler.Difficulty]string{
	crawler.DifficultyEasy:   "#1ea868",
	crawler.DifficultyNormal: "#2e7ed6",
	crawler.DifficultyHyper:  "#d08a10",
	crawler.DifficultyEX:     "#d04030",
}

const fallbackColor = "#907860"

// MedalLabel is the short glyph label of a medal. Unknown medals show their
// raw token, missing ones "-".
func MedalLabel(m crawler.Medal) string {
	if l, ok := medalLabels[m]; ok {
		return l
	}
	if m == "" {
		return "-"
	}
	return string(m)
}

// MedalColor is the display colour of a medal.
func MedalColor(m crawler.Medal) color.RGBA {
	if c, ok := medalColors[m]; ok {
		return ParseHex(c)
	}
	return ParseHex(fallbackColor)
}

// DifficultyColor is the display colour of a difficulty.
func DifficultyColor(d crawler.Difficulty) color.RGBA {
	if c, ok := diffColors[d]; ok {
		return ParseHex(c)
	}
	return ParseHex(fallbackColor)
}

// ParseHex reads #rgb or #rrggbb. Malformed input yields opaque black.
func ParseHex(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	var r, g, b uint8
	if len(s) != 6 {
		return color.RGBA{A: 0xff}
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// DisplayTitle is "genre / title", or just the title when the genre is
// missing or repeats the title.
func DisplayTitle(title, genre string) string {
	base := strings.TrimSuffix(title, merge.UpperSuffix)
	t := title
	if genre != "" && genre != base {
		t = genre + " / " + title
	}
	return truncate(t, titleLimit)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-2]) + "..."
}
