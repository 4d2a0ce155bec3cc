package merge

import (
	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

// UpperSuffix is appended to the title of a flagged UPPER variant.
const UpperSuffix = " [UPPER]"

// MarkUpper flags the harder song of every pair sharing title, genre and
// artist. Only groups of exactly two are compared; the song with the strictly
// greater level sum is flagged and its title suffixed. It returns the number of
// songs flagged.
func MarkUpper(songs []*crawler.Song) int {
	groups := make(map[string][]*crawler.Song)
	var order []string
	for _, s := range songs {
		key := s.Title + "|" + s.Genre + "|" + s.Artist
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], s)
	}

	flagged := 0
	for _, key := range order {
		group := groups[key]
		if len(group) != 2 {
			continue
		}
		a, b := group[0].LevelSum(), group[1].LevelSum()
		switch {
		case a > b:
			markUpper(group[0])
		case b > a:
			markUpper(group[1])
		default:
			continue
		}
		flagged++
	}
	return flagged
}

func markUpper(s *crawler.Song) {
	s.IsUpper = true
	s.Title += UpperSuffix
}
