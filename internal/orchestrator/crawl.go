package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/merge"
	"github.com/JakeFAU/popn-score-crawler/internal/metrics"
	"github.com/JakeFAU/popn-score-crawler/internal/parser"
	"github.com/JakeFAU/popn-score-crawler/internal/progress"
)

// runState is the mutable state of one run.
type runState struct {
	id       uuid.UUID
	opts     Options
	merger   *merge.Merger
	player   crawler.Player
	requests int
	started  time.Time
	stopNote string
	logger   *zap.Logger
}

func (o *Orchestrator) crawl(ctx context.Context, st *runState) error {
	if err := o.crawlPlayer(ctx, st); err != nil {
		return err
	}
	if err := o.checkStop(st, "player"); err != nil {
		return err
	}
	for level := 1; level <= o.cfg.MaxLevel; level++ {
		if err := o.checkStop(st, fmt.Sprintf("lv %d", level)); err != nil {
			return err
		}
		if err := o.crawlLevel(ctx, st, level); err != nil {
			return err
		}
	}
	if st.opts.Deep {
		return o.crawlDetails(ctx, st)
	}
	return nil
}

// crawlPlayer fetches the status page, which is also the first request of a
// run and therefore not paced. A failure here fails the run; a failure to
// fetch the avatar does not.
func (o *Orchestrator) crawlPlayer(ctx context.Context, st *runState) error {
	doc, err := o.document(ctx, st, metrics.KindStatus, o.cfg.Site.StatusURL(), 0, "status")
	if err != nil {
		return fmt.Errorf("status page: %w", err)
	}
	st.player = parser.ParseStatusPage(doc)
	st.logger.Info("player parsed", zap.String("name", st.player.Name()))

	if chara := st.player.Character; chara != nil && chara.Img != "" {
		data, err := o.avatar(ctx, st, chara.Img)
		switch {
		case err == nil:
			chara.ImgData = data
		case errors.Is(err, crawler.ErrStopped):
		case ctx.Err() != nil:
			return fmt.Errorf("avatar: %w", ctx.Err())
		default:
			st.logger.Warn("avatar fetch failed", zap.String("img", chara.Img), zap.Error(err))
		}
	}
	o.emit(st, progress.Event{Stage: progress.StagePlayerDone})
	return nil
}

// crawlLevel walks every page of one level. Levels without entries are
// skipped; a page without entries ends the level early.
func (o *Orchestrator) crawlLevel(ctx context.Context, st *runState, level int) error {
	note := fmt.Sprintf("lv %d", level)
	doc, err := o.document(ctx, st, metrics.KindList, o.cfg.Site.LevelURL(level, 0), o.cfg.PageDelay, note)
	if err != nil {
		return fmt.Errorf("level %d page 0: %w", level, err)
	}
	total := parser.TotalPages(doc)
	entries := parser.ParseListPage(doc)
	if len(entries) == 0 {
		st.logger.Debug("level empty", zap.Int("level", level))
		return nil
	}
	st.merger.AddAll(entries)
	o.emit(st, progress.Event{Stage: progress.StagePageDone, Level: level, Page: 0, TotalPages: total})

	for page := 1; page < total; page++ {
		note := fmt.Sprintf("lv %d page %d/%d", level, page+1, total)
		doc, err := o.document(ctx, st, metrics.KindList, o.cfg.Site.LevelURL(level, page), o.cfg.PageDelay, note)
		if err != nil {
			return fmt.Errorf("level %d page %d: %w", level, page, err)
		}
		entries := parser.ParseListPage(doc)
		if len(entries) == 0 {
			break
		}
		st.merger.AddAll(entries)
		o.emit(st, progress.Event{Stage: progress.StagePageDone, Level: level, Page: page, TotalPages: total})
	}

	st.logger.Info("level done", zap.Int("level", level), zap.Int("total_pages", total), zap.Int("songs", st.merger.Len()))
	o.emit(st, progress.Event{Stage: progress.StageLevelDone, Level: level, TotalPages: total})
	return nil
}

// crawlDetails fetches the detail page of every song with a detail link. A
// failed page is recorded on the song and the loop moves on.
func (o *Orchestrator) crawlDetails(ctx context.Context, st *runState) error {
	var targets []*crawler.Song
	for _, song := range st.merger.Songs() {
		if song.DetailURL != "" {
			targets = append(targets, song)
		}
	}
	for i, song := range targets {
		note := fmt.Sprintf("detail %d/%d", i+1, len(targets))
		target, err := o.cfg.Site.Resolve(song.DetailURL)
		if err == nil {
			var doc *goquery.Document
			doc, err = o.document(ctx, st, metrics.KindDetail, target, o.cfg.DetailDelay, note)
			if err == nil {
				detail := parser.ParseDetailPage(doc)
				song.Detail = &detail
			}
		}
		if err != nil {
			if errors.Is(err, crawler.ErrStopped) || ctx.Err() != nil {
				return err
			}
			st.logger.Warn("detail fetch failed", zap.String("url", song.DetailURL), zap.Error(err))
			song.Detail = &crawler.SongDetail{Error: errorMessage(err)}
		}
		o.emit(st, progress.Event{Stage: progress.StageDetailDone, Note: note})
	}
	return nil
}
