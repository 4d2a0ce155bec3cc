// Package parser turns play-data pages into typed records. Every function is
// pure and total: missing elements degrade to empty fields instead of errors.
package parser

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

// ParseListPage extracts one entry per row of a level-filtered music list
// (mu_lv.html). The first row is the table header and is skipped.
//
// Row layout:
//
//	div.col_music_lv  title link + genre div + artist div
//	div.col_normal_lv difficulty label
//	div.col_hyper_lv  level
//	div.col_ex_lv     medal icon, rank icon, score text
func ParseListPage(doc *goquery.Document) []crawler.Entry {
	var entries []crawler.Entry
	doc.Find("ul.mu_list_table > li").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		entry, ok := parseListRow(row)
		if ok {
			entries = append(entries, entry)
		}
	})
	return entries
}

func parseListRow(row *goquery.Selection) (crawler.Entry, bool) {
	music := row.Find("div.col_music_lv").First()
	if music.Length() == 0 {
		return crawler.Entry{}, false
	}
	link := music.Find("a").First()
	subDivs := music.Find("div")
	href, _ := link.Attr("href")

	entry := crawler.Entry{
		Title:      trimmedText(link),
		DetailURL:  strings.TrimSpace(href),
		Genre:      trimmedText(subDivs.Eq(0)),
		Artist:     trimmedText(subDivs.Eq(1)),
		Difficulty: crawler.Difficulty(strings.ToLower(trimmedText(row.Find("div.col_normal_lv").First()))),
	}
	entry.Record.Level = parseLevel(trimmedText(row.Find("div.col_hyper_lv").First()))

	scoreCol := row.Find("div.col_ex_lv").First()
	if scoreCol.Length() > 0 {
		icons := scoreCol.Find("img")
		entry.Record.MedalImg, _ = icons.Eq(0).Attr("src")
		entry.Record.RankImg, _ = icons.Eq(1).Attr("src")
		entry.Record.Score = ParseScore(scoreCol.Text())
	}
	entry.Record.Medal = MedalFromIcon(entry.Record.MedalImg)
	entry.Record.Rank = RankFromIcon(entry.Record.RankImg)
	return entry, true
}

// TotalPages reads the page selector of a list page. The last option's value
// is the last 0-based page index. Without a usable selector the list is a
// single page.
func TotalPages(doc *goquery.Document) int {
	last := doc.Find("select#s_page option:last-child").First()
	if last.Length() == 0 {
		return 1
	}
	value, _ := last.Attr("value")
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 1
	}
	return n + 1
}
