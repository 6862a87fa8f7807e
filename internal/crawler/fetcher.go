package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// maxRedirects is the number of hops followed per fetch.
const maxRedirects = 10

// Fetcher issues one HTTP GET per URL and classifies the response.
// Only 2xx responses with an HTML content type are usable; everything else
// becomes a *FetchError. There are no retries.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	headers     map[string]string
	maxBodySize int64

	// allowedHost, when set, is the only host redirects may lead to.
	allowedHost string
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithAllowedHost rejects redirects to any host other than host
// (compared case-insensitively, port included).
func WithAllowedHost(host string) FetcherOption {
	return func(f *Fetcher) {
		f.allowedHost = host
	}
}

// Response is a usable page: its body decoded to UTF-8.
type Response struct {
	// URL is the address the body was served from: the requested URL, or
	// the last redirect target without its fragment.
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// NewFetcher creates a Fetcher. A nil client means http.DefaultClient.
// timeout bounds each request, including reading the body; zero disables it.
// The client is copied so that the redirect policy does not leak into it.
func NewFetcher(client *http.Client, timeout time.Duration, userAgent string, headers map[string]string, maxBodySize int64, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &Fetcher{
		timeout:     timeout,
		userAgent:   userAgent,
		headers:     headers,
		maxBodySize: maxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	c := *client
	next := client.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if err := f.checkRedirect(req, via); err != nil {
			return err
		}
		if next != nil {
			return next(req, via)
		}
		return nil
	}
	f.client = &c
	return f
}

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return ErrTooManyRedirects
	}
	if f.allowedHost != "" && !strings.EqualFold(req.URL.Host, f.allowedHost) {
		return fmt.Errorf("%w: %s", ErrOffHostRedirect, req.URL.Host)
	}
	return nil
}

// Fetch retrieves pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: FetchErrorNetwork, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		kind := classifyTransportError(err)
		if errors.Is(err, ErrOffHostRedirect) || errors.Is(err, ErrTooManyRedirects) {
			kind = FetchErrorRedirect
		}
		return nil, &FetchError{URL: pageURL, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL.String() != req.URL.String() {
		u := *resp.Request.URL
		u.Fragment = ""
		u.RawFragment = ""
		finalURL = u.String()
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, Kind: FetchErrorStatus, StatusCode: resp.StatusCode, ContentType: contentType}
	}
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, &FetchError{URL: pageURL, Kind: FetchErrorContentType, StatusCode: resp.StatusCode, ContentType: contentType}
	}

	var body io.Reader = resp.Body
	if f.maxBodySize > 0 {
		body = io.LimitReader(body, f.maxBodySize)
	}
	// Pages declaring a legacy charset (Shift_JIS, ISO-8859-1, ...) are
	// converted so that titles and text are valid UTF-8.
	decoded, err := charset.NewReader(body, contentType)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: FetchErrorBody, StatusCode: resp.StatusCode, ContentType: contentType, Err: err}
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: classifyTransportError(err), StatusCode: resp.StatusCode, ContentType: contentType, Err: err}
	}

	return &Response{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        data,
	}, nil
}

func classifyTransportError(err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchErrorTimeout
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return FetchErrorTimeout
	}
	return FetchErrorNetwork
}
