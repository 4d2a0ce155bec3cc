package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/popn-score-crawler/internal/config"
	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/export"
)

const gamePath = "/game/popn/jamfizz"

const statusHTML = `<html><body>
<div class="st_box"><div class="item">◆プレーヤー名</div><div class="item_st">TESTER</div></div>
</body></html>`

const levelOneHTML = `<html><body><select id="s_page"><option value="0">1</option></select>
<ul class="mu_list_table"><li>header</li>
<li>
  <div class="col_music_lv"><a href="/game/popn/jamfizz/playdata/mu_detail.html?index=A">SONG A</a><div>GENRE A</div><div>Artist</div></div>
  <div class="col_normal_lv">HYPER</div>
  <div class="col_hyper_lv">1</div>
  <div class="col_ex_lv"><img src="/img/medal/meda_d.png"><img src="/img/medal/rank_s.png">90,000</div>
</li>
</ul></body></html>`

func fakeSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(gamePath+"/playdata/index.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, statusHTML)
	})
	mux.HandleFunc(gamePath+"/playdata/mu_lv.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("lv") != "1" {
			fmt.Fprint(w, `<html><body><ul class="mu_list_table"><li>header</li></ul></body></html>`)
			return
		}
		fmt.Fprint(w, levelOneHTML)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL, dir string) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Site.BaseURL = baseURL
	cfg.Site.GamePath = gamePath
	cfg.Site.SessionCookie = "M573SSID=test"
	cfg.Crawl.PageDelayMs = 0
	cfg.Crawl.DetailDelayMs = 0
	cfg.Crawl.MaxLevel = 2
	cfg.Export.Dir = dir
	return cfg
}

func staticApp(t *testing.T, cfg config.Config) appFactory {
	return func(context.Context, string) (*App, error) {
		return &App{Config: cfg, Logger: zaptest.NewLogger(t)}, nil
	}
}

func execute(t *testing.T, factory appFactory, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(factory)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestCrawlExportsSnapshot(t *testing.T) {
	t.Parallel()

	srv := fakeSite(t)
	dir := t.TempDir()
	out, err := execute(t, staticApp(t, testConfig(t, srv.URL, dir)), "crawl", "--max-level", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "TESTER")
	assert.Contains(t, out, "SONG A")

	matches, err := filepath.Glob(filepath.Join(dir, "popn_scores_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	f, err := os.Open(matches[0])
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	snap, err := export.Read(f)
	require.NoError(t, err)
	require.Len(t, snap.Scores, 1)
	assert.Equal(t, "TESTER", snap.Player.Name())
	require.NotNil(t, snap.PopClass)
	assert.Equal(t, 1, snap.PopClass.Count)

	assert.FileExists(t, filepath.Join(dir, export.ViewerName))
}

func TestCrawlDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	srv := fakeSite(t)
	dir := t.TempDir()
	cfg := testConfig(t, srv.URL, dir)
	cfg.Notify.ProjectID = "popn-test"
	cfg.Notify.Topic = "popn-runs"
	out, err := execute(t, staticApp(t, cfg), "crawl", "--max-level", "1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "SONG A")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCrawlRejectsInvalidMaxLevel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://example.test", t.TempDir())
	_, err := execute(t, staticApp(t, cfg), "crawl", "--max-level", "51")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.max_level")
}

func TestCrawlWithoutScoresExportsNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	_, err := execute(t, staticApp(t, testConfig(t, srv.URL, dir)), "crawl")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRenderPrintsTableAndWritesArtifacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	score, level := 95000, 40
	var player crawler.Player
	player.Set(crawler.PlayerNameLabel, crawler.PlayerAttribute{Text: "RENDERER"})
	snap := crawler.Snapshot{
		Player: player,
		Scores: []*crawler.Song{{
			Title: "SONG R",
			Genre: "GENRE R",
			Charts: map[crawler.Difficulty]crawler.ChartRecord{
				crawler.DifficultyHyper: {Level: &level, Score: &score, Medal: crawler.MedalFullCombo},
			},
		}},
		ExportedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	data, err := export.Marshal(snap)
	require.NoError(t, err)
	snapPath := filepath.Join(dir, "snap.json")
	require.NoError(t, os.WriteFile(snapPath, data, 0o600))

	viewerPath := filepath.Join(dir, "viewer.html")
	chartPath := filepath.Join(dir, "chart.png")
	cfg := testConfig(t, "https://example.test", dir)
	out, err := execute(t, staticApp(t, cfg), "render", snapPath, "--viewer", viewerPath, "--chart", chartPath)
	require.NoError(t, err)
	assert.Contains(t, out, "RENDERER")
	assert.Contains(t, out, "SONG R")

	page, err := os.ReadFile(viewerPath)
	require.NoError(t, err)
	assert.NotContains(t, string(page), export.DataPlaceholder)
	assert.Contains(t, string(page), "RENDERER")

	png, err := os.ReadFile(chartPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRenderRejectsInvalidSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"player":{}}`), 0o600))
	_, err := execute(t, staticApp(t, testConfig(t, "https://example.test", dir)), "render", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scores array")
}

func TestDumpWritesPages(t *testing.T) {
	t.Parallel()

	srv := fakeSite(t)
	dir := t.TempDir()
	cfg := testConfig(t, srv.URL, dir)
	cfg.Crawl.MaxLevel = 1
	out, err := execute(t, staticApp(t, cfg), "dump")
	require.NoError(t, err)
	uri := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(uri, "file://"), uri)

	matches, err := filepath.Glob(filepath.Join(dir, "popn_html_dump_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name": "status"`)
	assert.Contains(t, string(raw), `"name": "mu_lv_1_p0"`)
	assert.Contains(t, string(raw), `"name": "mu_detail_sample"`)
}

func TestAppFactoryErrorStopsCommand(t *testing.T) {
	t.Parallel()

	failing := func(context.Context, string) (*App, error) { return nil, errors.New("boom") }
	_, err := execute(t, failing, "render", "missing.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
