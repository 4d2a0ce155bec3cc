package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

// ParseStatusPage extracts the player profile from playdata/index.html.
func ParseStatusPage(doc *goquery.Document) crawler.Player {
	var player crawler.Player

	doc.Find("div.st_box div.item").Each(func(_ int, item *goquery.Selection) {
		label := strings.TrimPrefix(trimmedText(item), "◆")
		value := item.Next()
		if value.Length() == 0 || !value.HasClass("item_st") {
			return
		}
		attr := crawler.PlayerAttribute{Text: trimmedText(value)}
		if src, ok := value.Find("img").First().Attr("src"); ok {
			attr.Img = src
		}
		player.Set(label, attr)
	})

	if chara := doc.Find("#chara").First(); chara.Length() > 0 {
		img, _ := chara.Find("img").First().Attr("src")
		player.Character = &crawler.Character{Name: trimmedText(chara), Img: img}
	}

	cells := doc.Find("table#net_win_table tbody tr:nth-child(2) td")
	if cells.Length() >= 4 {
		player.BattleRecord = &crawler.BattleRecord{
			First:  leadingIntOrZero(cells.Eq(0).Text()),
			Second: leadingIntOrZero(cells.Eq(1).Text()),
			Third:  leadingIntOrZero(cells.Eq(2).Text()),
			Fourth: leadingIntOrZero(cells.Eq(3).Text()),
		}
	}
	return player
}
