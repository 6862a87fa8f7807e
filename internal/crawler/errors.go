package crawler

import (
	"errors"
	"fmt"
)

// InvalidSeedError is returned by Crawl when the seed URL is missing,
// malformed, or not http(s). No request is made in that case.
type InvalidSeedError struct {
	URL    string
	Reason string
}

func (e *InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed URL %q: %s", e.URL, e.Reason)
}

// FetchErrorKind classifies why a page could not be used.
type FetchErrorKind string

// Fetch error kinds. The values double as metric labels.
const (
	FetchErrorNetwork     FetchErrorKind = "network"
	FetchErrorTimeout     FetchErrorKind = "timeout"
	FetchErrorStatus      FetchErrorKind = "status"
	FetchErrorContentType FetchErrorKind = "content_type"
	FetchErrorBody        FetchErrorKind = "body"
	FetchErrorRedirect    FetchErrorKind = "redirect"
)

// Redirect failures, wrapped in a FetchError of kind FetchErrorRedirect.
var (
	// ErrOffHostRedirect is returned when a redirect leaves the allowed host.
	ErrOffHostRedirect = errors.New("redirect leaves the seed host")

	// ErrTooManyRedirects is returned after maxRedirects hops.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// FetchError describes a page that was skipped.
// The crawl continues after a FetchError.
type FetchError struct {
	URL         string
	Kind        FetchErrorKind
	StatusCode  int
	ContentType string
	Err         error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrorStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case FetchErrorContentType:
		return fmt.Sprintf("fetch %s: not HTML (%q)", e.URL, e.ContentType)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is a *FetchError and returns its kind.
func IsFetchError(err error) (FetchErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
