package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/popn-score-crawler/internal/crawler"
)

func TestFetcherSendsSessionAndFollowsRedirects(t *testing.T) {
	t.Parallel()

	var gotCookie, gotAgent, gotTrace string
	mux := http.NewServeMux()
	mux.HandleFunc("/game/popn/jamfizz/playdata/index.html", func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotAgent = r.Header.Get("User-Agent")
		gotTrace = r.Header.Get("X-Trace")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>status</body></html>"))
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/game/popn/jamfizz/playdata/index.html", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := New(Config{UserAgent: "popn-test", SessionCookie: "M573SSID=abc", Timeout: 5 * time.Second}, nil)
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{
		URL:     srv.URL + "/moved",
		Headers: http.Header{"X-Trace": {"yes"}},
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/game/popn/jamfizz/playdata/index.html", resp.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "status")
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.Equal(t, "M573SSID=abc", gotCookie)
	assert.Equal(t, "popn-test", gotAgent)
	assert.Equal(t, "yes", gotTrace)

	// the same URL can be fetched again
	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/moved"})
	require.NoError(t, err)
}

func TestFetcherMapsErrorPageToSiteError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/error/error.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>error</html>"))
	})
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/error/error.html?err=3", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := New(Config{}, nil).Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/list"})
	var siteErr *crawler.SiteError
	require.ErrorAs(t, err, &siteErr)
	assert.Equal(t, "3", siteErr.Code)
	assert.Equal(t, "No play data found", siteErr.Message)
	assert.Contains(t, resp.URL, "error.html")
}

func TestFetcherReturnsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := New(Config{}, nil).Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL})
	var statusErr *crawler.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)
	assert.Equal(t, "HTTP 503", err.Error())
}

func TestFetcherHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{}, nil).Fetch(ctx, crawler.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{SessionCookie: "session=1"}, nil)
	req := crawler.FetchRequest{
		URL:     "https://example.com",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))
	assert.Equal(t, "session=1", collyReq.Headers.Get("Cookie"))

	explicit := &colly.Request{Headers: &http.Header{}}
	f.configureCollectorHooks(hooks, crawler.FetchRequest{Headers: http.Header{"Cookie": {"mine=2"}}}, time.Unix(0, 0), &result, &fetchErr)
	hooks.onRequest(explicit)
	assert.Equal(t, "mine=2", explicit.Headers.Get("Cookie"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"Content-Type": {"image/png"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/a.png")},
	})
	assert.Equal(t, "image/png", result.ContentType)
	assert.Equal(t, "https://example.com/a.png", result.URL)

	hooks.onError(&colly.Response{StatusCode: http.StatusNotFound}, errors.New("Not Found"))
	var statusErr *crawler.StatusError
	require.ErrorAs(t, fetchErr, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)

	hooks.onError(nil, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(crawler.FetchRequest{}, collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
