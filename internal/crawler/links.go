package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LinkExtractor turns the anchors of a parsed page into crawl candidates.
//
// Every href is resolved against the page URL and its fragment is removed.
// Candidates that are not http(s) are discarded, as are candidates on
// another host when the extractor is restricted to the seed's host.
// The result keeps document order and contains no duplicates, so extracting
// twice from the same document yields the same list.
type LinkExtractor struct {
	seedHost       string
	sameDomainOnly bool
}

// NewLinkExtractor creates an extractor for a crawl started at seed.
func NewLinkExtractor(seed *url.URL, sameDomainOnly bool) *LinkExtractor {
	return &LinkExtractor{
		seedHost:       strings.ToLower(seed.Host),
		sameDomainOnly: sameDomainOnly,
	}
}

// Extract returns the candidate URLs found in doc, which was fetched from current.
func (e *LinkExtractor) Extract(doc *goquery.Document, current *url.URL) []string {
	seen := make(map[string]struct{})
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := e.resolve(current, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}

// resolve resolves href against base and applies the candidate filters.
func (e *LinkExtractor) resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	u := base.ResolveReference(ref)
	u.Fragment = ""
	u.RawFragment = ""

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	if e.sameDomainOnly && !strings.EqualFold(u.Host, e.seedHost) {
		return "", false
	}

	return u.String(), true
}

// normalizeURL returns the key under which a URL is deduplicated.
// Scheme and host are case-insensitive and an empty path equals "/".
func normalizeURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
