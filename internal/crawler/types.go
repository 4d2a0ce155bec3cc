// Package crawler defines the score data model and the capabilities shared
// across the parser, merger, aggregator and orchestrator.
package crawler

import (
	"encoding/json"
	"net/http"
	"time"
)

// Difficulty names one chart of a song.
type Difficulty string

// Chart difficulties in page order.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHyper  Difficulty = "hyper"
	DifficultyEX     Difficulty = "ex"
)

// Difficulties lists every chart difficulty in the fixed order used by the
// detail page and the level sums.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHyper, DifficultyEX}

// Medal is a canonical clear grade, or the raw icon token when the token is
// not known. The zero value means no medal could be read.
type Medal string

// Known medal labels.
const (
	MedalNoPlay             Medal = "no_play"
	MedalEasyClear          Medal = "easy_clear"
	MedalFailed1            Medal = "failed_1"
	MedalFailed2            Medal = "failed_2"
	MedalFailed3            Medal = "failed_3"
	MedalNormalClear        Medal = "normal_clear"
	MedalNormalClearIn20Bad Medal = "normal_clear_in_20_bad"
	MedalNormalClearIn5Bad  Medal = "normal_clear_in_5_bad"
	MedalFullCombo          Medal = "full_combo"
	MedalFullComboIn20Good  Medal = "full_combo_in_20_good"
	MedalFullComboIn5Good   Medal = "full_combo_in_5_good"
	MedalPerfect            Medal = "perfect"
)

// MarshalJSON encodes an unknown medal as null.
func (m Medal) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(m))
}

// Rank is a letter grade, or the raw icon token when the token is not known.
// The zero value means "no rank".
type Rank string

// MarshalJSON encodes a missing rank as null.
func (r Rank) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(r))
}

func marshalNullable(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

// ChartRecord is one observation of a chart. A nil Score means the page
// carried no value, which is different from a score of zero.
type ChartRecord struct {
	Level    *int   `json:"level"`
	Score    *int   `json:"score"`
	Medal    Medal  `json:"medal"`
	Rank     Rank   `json:"rank"`
	MedalImg string `json:"medalImg,omitempty"`
	RankImg  string `json:"rankImg,omitempty"`
}

// HasScore reports whether the record holds a nonzero score.
func (c ChartRecord) HasScore() bool {
	return c.Score != nil && *c.Score != 0
}

// LevelOrZero returns the chart level, treating an absent level as 0.
func (c ChartRecord) LevelOrZero() int {
	if c.Level == nil {
		return 0
	}
	return *c.Level
}

// ScoreOrZero returns the score, treating "no value" as 0.
func (c ChartRecord) ScoreOrZero() int {
	if c.Score == nil {
		return 0
	}
	return *c.Score
}

// Entry is a single list-page row: one chart together with its song context.
type Entry struct {
	Title      string
	Genre      string
	Artist     string
	DetailURL  string
	Difficulty Difficulty
	Record     ChartRecord
}

// SongKey returns the stable identity of the song an entry belongs to.
func (e Entry) SongKey() string {
	return SongKey(e.DetailURL, e.Title, e.Genre)
}

// SongKey prefers the detail link and falls back to title and genre.
func SongKey(detailURL, title, genre string) string {
	if detailURL != "" {
		return detailURL
	}
	return title + "|" + genre
}

// Song aggregates every chart observed for one song.
type Song struct {
	Title     string                     `json:"title"`
	Genre     string                     `json:"genre"`
	Artist    string                     `json:"artist"`
	DetailURL string                     `json:"detailUrl,omitempty"`
	Charts    map[Difficulty]ChartRecord `json:"charts"`
	IsUpper   bool                       `json:"isUpper,omitempty"`
	Detail    *SongDetail                `json:"detail,omitempty"`
}

// Key returns the song identity.
func (s *Song) Key() string {
	return SongKey(s.DetailURL, s.Title, s.Genre)
}

// LevelSum adds up the known chart levels across all difficulties.
func (s *Song) LevelSum() int {
	sum := 0
	for _, d := range Difficulties {
		if c, ok := s.Charts[d]; ok {
			sum += c.LevelOrZero()
		}
	}
	return sum
}

// ChartDetail holds the per-difficulty figures from a song detail page.
type ChartDetail struct {
	Medal        Medal  `json:"medal,omitempty"`
	Rank         Rank   `json:"rank,omitempty"`
	Score        *int   `json:"score,omitempty"`
	Cool         *int   `json:"cool,omitempty"`
	Great        *int   `json:"great,omitempty"`
	Good         *int   `json:"good,omitempty"`
	Bad          *int   `json:"bad,omitempty"`
	Highlight    *int   `json:"highlight,omitempty"`
	PlayCount    *int   `json:"playCount,omitempty"`
	ClearCount   *int   `json:"clearCount,omitempty"`
	FCCount      *int   `json:"fcCount,omitempty"`
	PerfectCount *int   `json:"perfectCount,omitempty"`
	Options      string `json:"options,omitempty"`
}

// SongDetail is the parsed detail page of a song, or an error marker when the
// page could not be fetched.
type SongDetail struct {
	Title  string                     `json:"title,omitempty"`
	Artist string                     `json:"artist,omitempty"`
	Charts map[Difficulty]ChartDetail `json:"charts,omitempty"`
	Error  string                     `json:"error,omitempty"`
}

// PopClassResult is the composite rating computed from the best charts.
type PopClassResult struct {
	Value float64 `json:"value"`
	Tier  string  `json:"tier"`
	Count int     `json:"count"`
}

// Snapshot is the finished artifact handed to exporters and renderers.
type Snapshot struct {
	Player     Player          `json:"player"`
	Scores     []*Song         `json:"scores"`
	ExportedAt time.Time       `json:"exportedAt"`
	PopClass   *PopClassResult `json:"popClass,omitempty"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation. URL is
// the final URL after redirects.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}
