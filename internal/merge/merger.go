// Package merge folds list-page entries into songs and annotates UPPER
// variants once a crawl has settled.
package merge

import (
	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

// Merger accumulates entries into songs keyed by their identity. It has a
// single writer and is not safe for concurrent use.
type Merger struct {
	songs map[string]*crawler.Song
	order []string
}

// NewMerger returns an empty merger.
func NewMerger() *Merger {
	return &Merger{songs: make(map[string]*crawler.Song)}
}

// Add merges one entry. The song is created on first sight. A difficulty slot
// is written only while it is empty or holds no nonzero score, so the first
// nonzero observation of a chart wins.
func (m *Merger) Add(entry crawler.Entry) {
	key := entry.SongKey()
	song, ok := m.songs[key]
	if !ok {
		song = &crawler.Song{
			Title:     entry.Title,
			Genre:     entry.Genre,
			Artist:    entry.Artist,
			DetailURL: entry.DetailURL,
			Charts:    make(map[crawler.Difficulty]crawler.ChartRecord),
		}
		m.songs[key] = song
		m.order = append(m.order, key)
	}
	if entry.Difficulty == "" {
		return
	}
	if existing, ok := song.Charts[entry.Difficulty]; ok && existing.HasScore() {
		return
	}
	song.Charts[entry.Difficulty] = entry.Record
}

// AddAll merges entries in order and returns how many were seen.
func (m *Merger) AddAll(entries []crawler.Entry) int {
	for _, e := range entries {
		m.Add(e)
	}
	return len(entries)
}

// Len returns the number of distinct songs.
func (m *Merger) Len() int {
	return len(m.songs)
}

// Song returns the song stored under key.
func (m *Merger) Song(key string) (*crawler.Song, bool) {
	s, ok := m.songs[key]
	return s, ok
}

// Songs returns the songs in first-seen order. The pointers are shared with the
// merger so post-passes can annotate them.
func (m *Merger) Songs() []*crawler.Song {
	out := make([]*crawler.Song, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.songs[key])
	}
	return out
}
