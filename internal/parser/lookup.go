package parser

import (
	"regexp"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

// medalTable maps medal icon tokens to canonical labels.
var medalTable = map[string]crawler.Medal{
	"meda_none": crawler.MedalNoPlay,
	"meda_k":    crawler.MedalEasyClear,
	"meda_j":    crawler.MedalFailed1,
	"meda_i":    crawler.MedalFailed2,
	"meda_h":    crawler.MedalFailed3,
	"meda_g":    crawler.MedalNormalClear,
	"meda_f":    crawler.MedalNormalClearIn20Bad,
	"meda_e":    crawler.MedalNormalClearIn5Bad,
	"meda_d":    crawler.MedalFullCombo,
	"meda_c":    crawler.MedalFullComboIn20Good,
	"meda_b":    crawler.MedalFullComboIn5Good,
	"meda_a":    crawler.MedalPerfect,
}

// rankTable maps rank icon tokens to letter grades. rank_none is a known
// token that means "no rank".
var rankTable = map[string]crawler.Rank{
	"rank_none": "",
	"rank_e":    "E",
	"rank_d":    "D",
	"rank_c":    "C",
	"rank_b":    "B",
	"rank_a1":   "A",
	"rank_a2":   "AA",
	"rank_a3":   "AAA",
	"rank_s":    "S",
}

var (
	medalIcon    = regexp.MustCompile(`medal/(meda_[a-z_]+)\.png`)
	rankIcon     = regexp.MustCompile(`medal/(rank_[a-z0-9_]+)\.png`)
	bigMedalIcon = regexp.MustCompile(`meda_big_([a-z_]+)\.png`)
	bigRankIcon  = regexp.MustCompile(`rank_big_([a-z0-9_]+)\.png`)
)

// MedalFromToken maps a medal icon token. Unknown tokens pass through.
func MedalFromToken(token string) crawler.Medal {
	if m, ok := medalTable[token]; ok {
		return m
	}
	return crawler.Medal(token)
}

// RankFromToken maps a rank icon token. Unknown tokens pass through.
func RankFromToken(token string) crawler.Rank {
	if r, ok := rankTable[token]; ok {
		return r
	}
	return crawler.Rank(token)
}

// MedalFromIcon reads the medal from a list-page icon reference.
func MedalFromIcon(src string) crawler.Medal {
	m := medalIcon.FindStringSubmatch(src)
	if m == nil {
		return ""
	}
	return MedalFromToken(m[1])
}

// RankFromIcon reads the rank from a list-page icon reference.
func RankFromIcon(src string) crawler.Rank {
	m := rankIcon.FindStringSubmatch(src)
	if m == nil {
		return ""
	}
	return RankFromToken(m[1])
}
