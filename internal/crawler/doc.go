// Package crawler crawls a website breadth-first and turns each usable page
// into a model.PageRecord.
//
// # Components
//
//   - Fetcher: one GET per URL with a fixed timeout; only 2xx HTML is usable
//   - Parser: title and text extraction (plain text or readability)
//   - LinkExtractor: absolute, fragment-free, http(s) candidate links,
//     optionally restricted to the seed's host
//   - Spider: frontier, visited set and page budget
//
// # Politeness
//
// Requests are issued one at a time. A flat delay (golang.org/x/time/rate
// limiter, burst 1) spaces them out; there is no adaptive backoff and no
// retry.
//
// # Usage
//
//	spider := crawler.NewSpider(http.DefaultClient, crawler.WithMaxPages(20))
//	records, err := spider.Crawl(ctx, "https://example.com")
package crawler
