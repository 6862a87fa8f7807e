package crawler

import (
	"strings"
	"testing"

	"github.com/nao1215/vectorize/internal/model"
)

func TestParser(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, body string, extractor Extractor) *ParseResult {
		t.Helper()
		parser, err := NewParser("https://example.com/page", extractor)
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse([]byte(body))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		return result
	}

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		result := parse(t, `<html><head><title>  Test
			Page </title></head><body></body></html>`, ExtractText)
		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
	})

	t.Run("missing title falls back", func(t *testing.T) {
		t.Parallel()

		result := parse(t, `<html><body><p>hello</p></body></html>`, ExtractText)
		if result.Title != model.DefaultTitle {
			t.Errorf("expected %q, got %q", model.DefaultTitle, result.Title)
		}
	})

	t.Run("blank title falls back", func(t *testing.T) {
		t.Parallel()

		result := parse(t, `<html><head><title>   </title></head></html>`, ExtractText)
		if result.Title != model.DefaultTitle {
			t.Errorf("expected %q, got %q", model.DefaultTitle, result.Title)
		}
	})

	t.Run("strips script and style and collapses whitespace", func(t *testing.T) {
		t.Parallel()

		body := `<html><head><style>body { color: red }</style></head><body>
			<h1>Heading</h1>
			<script>var secret = 1;</script>
			<p>First    paragraph</p>

			<p>Second	paragraph</p>
		</body></html>`
		result := parse(t, body, ExtractText)

		if strings.Contains(result.Text, "secret") || strings.Contains(result.Text, "color") {
			t.Errorf("script or style leaked into text: %q", result.Text)
		}
		if result.Text != "Heading First paragraph Second paragraph" {
			t.Errorf("unexpected text %q", result.Text)
		}
	})

	t.Run("page without body text yields only the title", func(t *testing.T) {
		t.Parallel()

		result := parse(t, `<html><head><title>T</title></head><body> </body></html>`, ExtractText)
		if result.Text != "T" {
			t.Errorf("expected only the title text, got %q", result.Text)
		}
	})

	t.Run("normalizes to NFC", func(t *testing.T) {
		t.Parallel()

		// "e" followed by a combining acute accent.
		result := parse(t, "<html><body><p>cafe\u0301</p></body></html>", ExtractText)
		if result.Text != "caf\u00e9" {
			t.Errorf("expected NFC text, got %q", result.Text)
		}
	})

	t.Run("readability keeps article content", func(t *testing.T) {
		t.Parallel()

		paragraph := strings.Repeat("Vector spaces make similar documents land close together. ", 10)
		body := `<html><head><title>Article</title></head><body>
			<nav><a href="/">Home</a></nav>
			<article><h1>Embeddings</h1><p>` + paragraph + `</p><p>` + paragraph + `</p></article>
		</body></html>`
		result := parse(t, body, ExtractReadability)

		if !strings.Contains(result.Text, "Vector spaces make similar documents land close together.") {
			t.Errorf("expected article text, got %q", result.Text)
		}
		if result.Title != "Article" {
			t.Errorf("expected title from <title>, got %q", result.Title)
		}
	})

	t.Run("document keeps anchors", func(t *testing.T) {
		t.Parallel()

		result := parse(t, `<html><body><a href="/x">x</a><script>1</script></body></html>`, ExtractText)
		if n := result.Document.Find("a[href]").Length(); n != 1 {
			t.Errorf("expected 1 anchor, got %d", n)
		}
		if n := result.Document.Find("script").Length(); n != 0 {
			t.Errorf("expected scripts removed, got %d", n)
		}
	})

	t.Run("invalid base URL", func(t *testing.T) {
		t.Parallel()

		if _, err := NewParser("://bad", ExtractText); err == nil {
			t.Error("expected error for invalid base URL")
		}
	})
}
