package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/vectorize/internal/model"
)

// Extractor selects how page text is extracted.
type Extractor string

const (
	// ExtractText keeps all visible text: script and style elements are
	// dropped and whitespace is collapsed to single spaces.
	ExtractText Extractor = "text"

	// ExtractReadability keeps only the main article content as detected
	// by go-readability. Pages where nothing is detected fall back to
	// ExtractText.
	ExtractReadability Extractor = "readability"
)

// Parser turns a fetched HTML body into a title, text, and a document that
// links can be extracted from.
//
// Parsing goes through golang.org/x/net/html, which tolerates the malformed
// markup common on the web; goquery is used on top of the node tree for
// selection and removal.
type Parser struct {
	// baseURL is the URL of the page being parsed.
	baseURL *url.URL

	extractor Extractor
}

// ParseResult contains what a page contributes to a crawl.
type ParseResult struct {
	// Title is the <title> text, or model.DefaultTitle when absent or blank.
	Title string

	// Text is the extracted page text, possibly empty.
	Text string

	// Document is the parsed page. Script and style elements have been
	// removed; anchors are intact.
	Document *goquery.Document
}

// NewParser creates a parser for the page at baseURL.
func NewParser(baseURL string, extractor Extractor) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if extractor == "" {
		extractor = ExtractText
	}
	return &Parser{baseURL: u, extractor: extractor}, nil
}

// Parse parses an HTML body, which must already be UTF-8.
func (p *Parser) Parse(body []byte) (*ParseResult, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)
	doc.Url = p.baseURL

	result := &ParseResult{
		Title:    pageTitle(doc),
		Document: doc,
	}

	if p.extractor == ExtractReadability {
		result.Text = p.readableText(body)
	}
	// Removal runs in both modes so that Document never carries scripts.
	plain := visibleText(doc)
	if result.Text == "" {
		result.Text = plain
	}

	return result, nil
}

// readableText returns the main article text, or "" when go-readability
// finds none.
func (p *Parser) readableText(body []byte) string {
	article, err := readability.FromReader(bytes.NewReader(body), p.baseURL)
	if err != nil {
		return ""
	}
	return normalizeText(article.TextContent)
}

func pageTitle(doc *goquery.Document) string {
	title := normalizeText(doc.Find("title").First().Text())
	if title == "" {
		return model.DefaultTitle
	}
	return title
}

// visibleText drops script and style elements from doc and returns the
// remaining text.
func visibleText(doc *goquery.Document) string {
	doc.Find("script, style").Remove()
	return normalizeText(doc.Text())
}

// normalizeText collapses whitespace runs into single spaces and applies
// Unicode NFC so that visually identical text embeds identically.
func normalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
