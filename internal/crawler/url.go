package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Site builds the play-data URLs for one game version.
type Site struct {
	base     *url.URL
	gamePath string
}

// NewSite parses the site root (e.g. https://p.eagate.573.jp) and joins the
// game path (e.g. /game/popn/jamfizz) onto it.
func NewSite(baseURL, gamePath string) (Site, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Site{}, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Site{}, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return Site{base: u, gamePath: "/" + strings.Trim(gamePath, "/")}, nil
}

// StatusURL is the player status page.
func (s Site) StatusURL() string {
	return s.base.String() + s.gamePath + "/playdata/index.html"
}

// LevelURL is one page of the level-filtered music list. Pages are 0-based.
func (s Site) LevelURL(level, page int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("version", "0")
	q.Set("category", "0")
	q.Set("keyword", "")
	q.Set("lv", strconv.Itoa(level))
	return s.base.String() + s.gamePath + "/playdata/mu_lv.html?" + q.Encode()
}

// Resolve turns a link found on a page (detail page, icon) into an absolute
// URL. Empty references resolve to "".
func (s Site) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	u.Fragment = ""
	return s.base.ResolveReference(u).String(), nil
}
