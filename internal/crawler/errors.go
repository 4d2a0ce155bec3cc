package crawler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStopped reports that a cooperative stop was observed before a request.
var ErrStopped = errors.New("stop requested")

// siteErrorMessages maps the trailing digit of the site's error page URL.
var siteErrorMessages = map[string]string{
	"1": "Need e-amusement Basic Course",
	"2": "Need to register game card",
	"3": "No play data found",
	"4": "e-amusement server error",
	"5": "Need Premium Course",
}

// SiteError is a semantic failure signaled by the site through its error page.
type SiteError struct {
	Code    string
	Message string
}

func (e *SiteError) Error() string {
	return e.Message
}

// StatusError is a non-success HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}

// CheckSiteError inspects the final URL of a response and returns a
// *SiteError when the site redirected to its error page.
func CheckSiteError(finalURL string) error {
	if !strings.Contains(finalURL, "error.html") {
		return nil
	}
	code := finalURL[len(finalURL)-1:]
	msg, ok := siteErrorMessages[code]
	if !ok {
		msg = "Unknown eagate error"
	}
	return &SiteError{Code: code, Message: msg}
}

// IsSiteError reports whether err carries a *SiteError.
func IsSiteError(err error) bool {
	var siteErr *SiteError
	return errors.As(err, &siteErr)
}
