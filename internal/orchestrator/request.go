package orchestrator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
	"github.com/JakeFAU/popn-score-crawler/internal/metrics"
)

// Fetch outcomes recorded by metrics.ObserveFetch.
const (
	outcomeOK        = "ok"
	outcomeSiteError = "site_error"
	outcomeHTTPError = "http_error"
	outcomeError     = "error"
)

// checkStop turns a pending stop request into crawler.ErrStopped, remembering
// where the run stopped.
func (o *Orchestrator) checkStop(st *runState, note string) error {
	if !o.stop.Load() {
		return nil
	}
	if st.stopNote == "" {
		st.stopNote = note
	}
	return crawler.ErrStopped
}

// fetch issues one request. Every request but the first of a run waits out
// delay first; the stop flag is polled after the pause so that a stop issued
// while waiting prevents the request.
func (o *Orchestrator) fetch(
	ctx context.Context,
	st *runState,
	kind string,
	target string,
	delay time.Duration,
	note string,
) (crawler.FetchResponse, error) {
	if st.requests > 0 {
		if err := o.pacer.Pause(ctx, delay); err != nil {
			return crawler.FetchResponse{}, err
		}
	}
	if err := o.checkStop(st, note); err != nil {
		return crawler.FetchResponse{}, err
	}

	st.requests++
	resp, err := o.fetcher.Fetch(ctx, crawler.FetchRequest{URL: target})
	metrics.ObserveFetch(kind, fetchOutcome(err), resp.Duration)
	if err != nil {
		st.logger.Debug("fetch failed",
			zap.String("kind", kind),
			zap.String("url", target),
			zap.Error(err),
		)
		return resp, err
	}
	st.logger.Debug("fetched",
		zap.String("kind", kind),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("dur", resp.Duration),
	)
	return resp, nil
}

// document fetches a page and parses it as HTML.
func (o *Orchestrator) document(
	ctx context.Context,
	st *runState,
	kind string,
	target string,
	delay time.Duration,
	note string,
) (*goquery.Document, error) {
	resp, err := o.fetch(ctx, st, kind, target, delay, note)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	return doc, nil
}

// avatar downloads the character image and inlines it as a data URL.
func (o *Orchestrator) avatar(ctx context.Context, st *runState, img string) (string, error) {
	target, err := o.cfg.Site.Resolve(img)
	if err != nil {
		return "", err
	}
	resp, err := o.fetch(ctx, st, metrics.KindAsset, target, o.cfg.PageDelay, "avatar")
	if err != nil {
		return "", err
	}
	if len(resp.Body) == 0 {
		return "", errors.New("empty image body")
	}
	return dataURL(resp.ContentType, resp.Body), nil
}

func dataURL(contentType string, body []byte) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		mediaType, _, _ = mime.ParseMediaType(http.DetectContentType(body))
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(body)
}

func fetchOutcome(err error) string {
	var statusErr *crawler.StatusError
	switch {
	case err == nil:
		return outcomeOK
	case crawler.IsSiteError(err):
		return outcomeSiteError
	case errors.As(err, &statusErr):
		return outcomeHTTPError
	default:
		return outcomeError
	}
}
