package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/metrics"
	"github.com/JakeFAU/popn-score-crawler/internal/parser"
)

// dumpLevels are the list pages captured by Dump.
var dumpLevels = []int{1, 30, 43, 50}

// sampleLevel is searched for a played song whose detail page is captured.
const sampleLevel = 43

const sampleName = "mu_detail_sample"

// DumpPage is one captured page. Error is set instead of HTML when the fetch
// failed.
type DumpPage struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// Dump captures the raw HTML of a few representative pages for diagnosing
// parser drift: the status page, page 0 of several levels, and the detail page
// of a played song. Individual failures are recorded per page. Dump shares the
// single-run guard and pacing with Run; after RequestStop it returns the pages
// captured so far.
func (o *Orchestrator) Dump(ctx context.Context) ([]DumpPage, error) {
	st, err := o.begin(Options{})
	if err != nil {
		return nil, err
	}
	defer o.running.Store(false)
	st.logger = st.logger.With(zap.String("mode", "dump"))

	pages := []DumpPage{{Name: "status", URL: o.cfg.Site.StatusURL()}}
	for _, lv := range dumpLevels {
		if lv > o.cfg.MaxLevel {
			continue
		}
		pages = append(pages, DumpPage{Name: fmt.Sprintf("mu_lv_%d_p0", lv), URL: o.cfg.Site.LevelURL(lv, 0)})
	}
	if sample, err := o.sampleDetailURL(ctx, st); err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, crawler.ErrStopped):
			st.logger.Info("dump stopped", zap.Int("pages", 0))
			return nil, nil
		}
		st.logger.Warn("no detail sample", zap.Error(err))
	} else if sample != "" {
		pages = append(pages, DumpPage{Name: sampleName, URL: sample})
	}

	for i := range pages {
		kind, delay := metrics.KindList, o.cfg.PageDelay
		if pages[i].Name == sampleName {
			kind, delay = metrics.KindDetail, o.cfg.DetailDelay
		}
		resp, err := o.fetch(ctx, st, kind, pages[i].URL, delay, pages[i].Name)
		if err != nil {
			if ctx.Err() != nil {
				return pages[:i], ctx.Err()
			}
			if errors.Is(err, crawler.ErrStopped) {
				st.logger.Info("dump stopped", zap.Int("pages", i))
				return pages[:i], nil
			}
			pages[i].Error = errorMessage(err)
			st.logger.Warn("dump page failed", zap.String("page", pages[i].Name), zap.Error(err))
			continue
		}
		pages[i].HTML = string(resp.Body)
		st.logger.Info("dump page captured", zap.String("page", pages[i].Name), zap.Int("bytes", len(resp.Body)))
	}
	return pages, nil
}

// sampleDetailURL prefers a played song on the sample level and falls back to
// the first song with a detail link.
func (o *Orchestrator) sampleDetailURL(ctx context.Context, st *runState) (string, error) {
	level := min(sampleLevel, o.cfg.MaxLevel)
	doc, err := o.document(ctx, st, metrics.KindList, o.cfg.Site.LevelURL(level, 0), o.cfg.PageDelay, "sample")
	if err != nil {
		return "", err
	}
	var fallback string
	for _, e := range parser.ParseListPage(doc) {
		if e.DetailURL == "" {
			continue
		}
		if e.Record.HasScore() {
			return o.cfg.Site.Resolve(e.DetailURL)
		}
		if fallback == "" {
			fallback = e.DetailURL
		}
	}
	return o.cfg.Site.Resolve(fallback)
}
