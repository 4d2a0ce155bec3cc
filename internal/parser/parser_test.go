package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

const listPageHTML = `<html><body>
<select id="s_page"><option value="0">1</option><option value="1">2</option><option value="2">3</option></select>
<ul class="mu_list_table">
  <li><div class="col_music_lv">曲名</div><div class="col_normal_lv">難易度</div></li>
  <li>
    <div class="col_music_lv">
      <a href="/game/popn/jamfizz/playdata/mu_detail.html?index=AAA">Title One</a>
      <div>GENRE ONE</div>
      <div>Artist One</div>
    </div>
    <div class="col_normal_lv">HYPER</div>
    <div class="col_hyper_lv">38</div>
    <div class="col_ex_lv">
      <img src="/game/popn/jamfizz/images/p/common/medal/meda_a.png">
      <img src="/game/popn/jamfizz/images/p/common/medal/rank_s.png">
      100,000
    </div>
  </li>
  <li>
    <div class="col_music_lv">
      <a href="/game/popn/jamfizz/playdata/mu_detail.html?index=BBB">Title Two</a>
      <div>GENRE TWO</div>
      <div>Artist Two</div>
    </div>
    <div class="col_normal_lv">EX</div>
    <div class="col_hyper_lv">-</div>
    <div class="col_ex_lv">
      <img src="/images/medal/meda_zz.png">
      <img src="/images/medal/rank_none.png">
      -
    </div>
  </li>
  <li><div class="col_normal_lv">NORMAL</div></li>
  <li>
    <div class="col_music_lv"><a>Title Three</a></div>
    <div class="col_normal_lv">Easy</div>
    <div class="col_hyper_lv">3</div>
  </li>
</ul>
</body></html>`

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func intPtr(v int) *int { return &v }

func TestParseScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want *int
	}{
		{in: "-", want: nil},
		{in: "", want: nil},
		{in: "  -  ", want: nil},
		{in: "12,345pts", want: intPtr(12345)},
		{in: "0", want: intPtr(0)},
		{in: "abc", want: nil},
		{in: "\n 98765 \n", want: intPtr(98765)},
	}
	for _, tt := range tests {
		got := ParseScore(tt.in)
		require.Equal(t, tt.want, got, "ParseScore(%q)", tt.in)
	}
}

func TestMedalAndRankMapping(t *testing.T) {
	t.Parallel()

	require.Equal(t, crawler.MedalPerfect, MedalFromIcon("/x/medal/meda_a.png"))
	require.Equal(t, crawler.MedalNormalClearIn20Bad, MedalFromIcon("/x/medal/meda_f.png"))
	require.Equal(t, crawler.Medal("meda_new_grade"), MedalFromIcon("/x/medal/meda_new_grade.png"))
	require.Equal(t, crawler.Medal(""), MedalFromIcon(""))
	require.Equal(t, crawler.Medal(""), MedalFromIcon("/x/other/icon.png"))

	require.Equal(t, crawler.Rank("AAA"), RankFromIcon("/x/medal/rank_a3.png"))
	require.Equal(t, crawler.Rank(""), RankFromIcon("/x/medal/rank_none.png"))
	require.Equal(t, crawler.Rank("rank_ss"), RankFromIcon("/x/medal/rank_ss.png"))
	require.Equal(t, crawler.Rank(""), RankFromIcon(""))
}

func TestParseListPage(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, listPageHTML)
	got := ParseListPage(doc)

	want := []crawler.Entry{
		{
			Title:      "Title One",
			Genre:      "GENRE ONE",
			Artist:     "Artist One",
			DetailURL:  "/game/popn/jamfizz/playdata/mu_detail.html?index=AAA",
			Difficulty: crawler.DifficultyHyper,
			Record: crawler.ChartRecord{
				Level:    intPtr(38),
				Score:    intPtr(100000),
				Medal:    crawler.MedalPerfect,
				Rank:     "S",
				MedalImg: "/game/popn/jamfizz/images/p/common/medal/meda_a.png",
				RankImg:  "/game/popn/jamfizz/images/p/common/medal/rank_s.png",
			},
		},
		{
			Title:      "Title Two",
			Genre:      "GENRE TWO",
			Artist:     "Artist Two",
			DetailURL:  "/game/popn/jamfizz/playdata/mu_detail.html?index=BBB",
			Difficulty: crawler.DifficultyEX,
			Record: crawler.ChartRecord{
				Medal:    "meda_zz",
				MedalImg: "/images/medal/meda_zz.png",
				RankImg:  "/images/medal/rank_none.png",
			},
		},
		{
			Title:      "Title Three",
			Difficulty: crawler.DifficultyEasy,
			Record:     crawler.ChartRecord{Level: intPtr(3)},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseListPage mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListPageWithoutRows(t *testing.T) {
	t.Parallel()

	require.Empty(t, ParseListPage(mustDoc(t, `<ul class="mu_list_table"><li>header</li></ul>`)))
	require.Empty(t, ParseListPage(mustDoc(t, `<p>maintenance</p>`)))
}

func TestTotalPages(t *testing.T) {
	t.Parallel()

	require.Equal(t, 3, TotalPages(mustDoc(t, listPageHTML)))
	require.Equal(t, 1, TotalPages(mustDoc(t, `<p>no selector</p>`)))
	require.Equal(t, 1, TotalPages(mustDoc(t, `<select id="s_page"><option value="x">?</option></select>`)))
	require.Equal(t, 1, TotalPages(mustDoc(t, `<select id="s_page"><option value="0">1</option></select>`)))
}

const detailPageHTML = `<html><body>
<div id="title">Title One</div>
<div id="artist">Artist One</div>
<div class="dif_tbl" id="hyper">
  <div class="detail_medal" style="background:url(/images/medal/meda_big_c.png) no-repeat;">
    <img src="/images/medal/rank_big_a3.png">
  </div>
  <table class="dif_score_tbl">
    <tr class="score"><td></td><td>98,765</td></tr>
    <tr><td>COOL</td><td>800</td></tr>
    <tr><td>GREAT</td><td>120</td></tr>
    <tr><td>GOOD</td><td>3</td></tr>
    <tr><td>BAD</td><td>-</td></tr>
    <tr><td>ハイライト</td><td>12</td></tr>
    <tr><td>プレー回数</td><td>25回</td></tr>
    <tr><td>クリア回数</td><td>20回</td></tr>
    <tr><td>FULL COMBO回数</td><td>4回</td></tr>
    <tr><td>PERFECT回数</td><td>0回</td></tr>
    <tr><td>ignored</td></tr>
  </table>
  <div class="item_st">  HI-SPEED 4.0    RANDOM  </div>
</div>
<div class="dif_tbl" id="ex">
  <div class="detail_medal" style="background:url(/images/medal/meda_big_none.png)"></div>
  <table class="dif_score_tbl"><tr class="score"><td></td><td>-</td></tr></table>
  <div class="item_st">オプション未保存</div>
</div>
</body></html>`

func TestParseDetailPage(t *testing.T) {
	t.Parallel()

	got := ParseDetailPage(mustDoc(t, detailPageHTML))
	want := crawler.SongDetail{
		Title:  "Title One",
		Artist: "Artist One",
		Charts: map[crawler.Difficulty]crawler.ChartDetail{
			crawler.DifficultyHyper: {
				Medal:        crawler.MedalFullComboIn20Good,
				Rank:         "AAA",
				Score:        intPtr(98765),
				Cool:         intPtr(800),
				Great:        intPtr(120),
				Good:         intPtr(3),
				Highlight:    intPtr(12),
				PlayCount:    intPtr(25),
				ClearCount:   intPtr(20),
				FCCount:      intPtr(4),
				PerfectCount: intPtr(0),
				Options:      "HI-SPEED 4.0 RANDOM",
			},
			crawler.DifficultyEX: {
				Medal: crawler.MedalNoPlay,
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseDetailPage mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDetailPageEmptyDocument(t *testing.T) {
	t.Parallel()

	got := ParseDetailPage(mustDoc(t, `<html></html>`))
	require.Equal(t, crawler.SongDetail{}, got)
}

const statusPageHTML = `<html><body>
<div class="st_box">
  <div class="item">◆プレーヤー名</div><div class="item_st">TESTER</div>
  <div class="item">◆ポップンクラス</div><div class="item_st"><img src="/img/class_kami.png">神</div>
  <div class="item">◆orphan</div><div class="other">skip</div>
</div>
<div id="chara"><img src="/img/chara/mimi.png">ミミ</div>
<table id="net_win_table">
  <tr><th>1位</th><th>2位</th><th>3位</th><th>4位</th></tr>
  <tr><td>10</td><td>5</td><td>x</td><td>1</td></tr>
</table>
</body></html>`

func TestParseStatusPage(t *testing.T) {
	t.Parallel()

	player := ParseStatusPage(mustDoc(t, statusPageHTML))

	require.Equal(t, "TESTER", player.Name())
	require.Equal(t, crawler.PlayerAttribute{Text: "神", Img: "/img/class_kami.png"}, player.Attributes["ポップンクラス"])
	require.NotContains(t, player.Attributes, "orphan")
	require.Equal(t, []string{"プレーヤー名", "ポップンクラス"}, player.Order)
	require.Equal(t, &crawler.Character{Name: "ミミ", Img: "/img/chara/mimi.png"}, player.Character)
	require.Equal(t, &crawler.BattleRecord{First: 10, Second: 5, Third: 0, Fourth: 1}, player.BattleRecord)
}

func TestParseStatusPageEmpty(t *testing.T) {
	t.Parallel()

	require.True(t, ParseStatusPage(mustDoc(t, `<html></html>`)).IsZero())
}
