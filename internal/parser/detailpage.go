package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

const unsavedOptions = "オプション未保存"

// ParseDetailPage extracts the per-difficulty results of a song detail page
// (mu_detail.html). Difficulty sections that are not present are left out.
func ParseDetailPage(doc *goquery.Document) crawler.SongDetail {
	detail := crawler.SongDetail{
		Title:  trimmedText(doc.Find("#title").First()),
		Artist: trimmedText(doc.Find("#artist").First()),
	}
	for _, diff := range crawler.Difficulties {
		section := doc.Find("div.dif_tbl#" + string(diff)).First()
		if section.Length() == 0 {
			continue
		}
		if detail.Charts == nil {
			detail.Charts = make(map[crawler.Difficulty]crawler.ChartDetail)
		}
		detail.Charts[diff] = parseDetailSection(section)
	}
	return detail
}

func parseDetailSection(section *goquery.Selection) crawler.ChartDetail {
	var chart crawler.ChartDetail

	if medalDiv := section.Find("div.detail_medal").First(); medalDiv.Length() > 0 {
		style, _ := medalDiv.Attr("style")
		if m := bigMedalIcon.FindStringSubmatch(style); m != nil {
			chart.Medal = MedalFromToken("meda_" + m[1])
		}
		if src, ok := medalDiv.Find("img").First().Attr("src"); ok {
			if m := bigRankIcon.FindStringSubmatch(src); m != nil {
				chart.Rank = RankFromToken("rank_" + m[1])
			}
		}
	}

	section.Find("table.dif_score_tbl tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := trimmedText(cells.Eq(0))
		value := trimmedText(cells.Eq(1))
		if value == "-" || value == "" {
			return
		}
		if field := detailField(&chart, label, row.HasClass("score")); field != nil {
			*field = digitsOnly(value)
		}
	})

	if opt := section.Find("div.item_st").First(); opt.Length() > 0 {
		optText := trimmedText(opt)
		if optText != "" && !strings.Contains(optText, unsavedOptions) {
			chart.Options = collapseSpaces(optText)
		}
	}
	return chart
}

// detailField picks the ChartDetail field a results row writes to, or nil for
// rows that carry nothing we keep.
func detailField(chart *crawler.ChartDetail, label string, scoreRow bool) **int {
	switch {
	case scoreRow && label == "":
		return &chart.Score
	case label == "COOL":
		return &chart.Cool
	case label == "GREAT":
		return &chart.Great
	case label == "GOOD":
		return &chart.Good
	case label == "BAD":
		return &chart.Bad
	case strings.Contains(label, "ハイライト"):
		return &chart.Highlight
	case strings.Contains(label, "プレー回数"):
		return &chart.PlayCount
	case strings.Contains(label, "クリア回数"):
		return &chart.ClearCount
	case label == "FULL COMBO回数":
		return &chart.FCCount
	case label == "PERFECT回数":
		return &chart.PerfectCount
	default:
		return nil
	}
}
