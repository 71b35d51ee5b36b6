package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"quiz-room-service/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// PlainText accepts UTF-8 text as is.
type PlainText struct{}

func (PlainText) Extract(_ context.Context, doc domain.Document) (string, error) {
	data := bytes.TrimPrefix(doc.Data, utf8BOM)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %q is not valid UTF-8", domain.ErrExtractionFailed, doc.Name)
	}
	return strings.TrimSpace(string(data)), nil
}

// HTML extracts the visible text of a page.
type HTML struct{}

func (HTML) Extract(_ context.Context, doc domain.Document) (string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Data))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %w", domain.ErrExtractionFailed, err)
	}
	page.Find("script, style, noscript, template").Remove()

	root := page.Find("body")
	if root.Length() == 0 {
		root = page.Selection
	}

	var lines []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li, td, th").Length() > 0 {
			// nested blocks are visited on their own
			return
		}
		if text := collapseSpaces(s.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		return collapseSpaces(root.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
