// Package extract turns uploaded documents into plain text for the quiz generator.
package extract

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"quiz-room-service/internal/domain"
)

// Extractor is implemented by every document format handler.
type Extractor interface {
	Extract(ctx context.Context, doc domain.Document) (string, error)
}

type format int

const (
	formatUnknown format = iota
	formatText
	formatHTML
	formatImage
	formatPDF
)

// Router picks an extractor from the document's content type, falling back to
// its file extension. OCR may be nil, in which case images and PDFs are rejected.
type Router struct {
	Text Extractor
	HTML Extractor
	OCR  Extractor
}

// NewRouter wires the plain text and HTML extractors with the given OCR backend.
func NewRouter(ocr Extractor) *Router {
	return &Router{Text: PlainText{}, HTML: HTML{}, OCR: ocr}
}

func (r *Router) Extract(ctx context.Context, doc domain.Document) (string, error) {
	var target Extractor
	switch detect(doc) {
	case formatText:
		target = r.Text
	case formatHTML:
		target = r.HTML
	case formatImage, formatPDF:
		target = r.OCR
	default:
		if utf8.Valid(doc.Data) {
			target = r.Text
		} else {
			target = r.OCR
		}
	}
	if target == nil {
		return "", fmt.Errorf("%w: unsupported document %q (%s)", domain.ErrExtractionFailed, doc.Name, doc.ContentType)
	}
	return target.Extract(ctx, doc)
}

func detect(doc domain.Document) format {
	mediaType, _, err := mime.ParseMediaType(doc.ContentType)
	if err == nil {
		switch {
		case mediaType == "text/html", mediaType == "application/xhtml+xml":
			return formatHTML
		case strings.HasPrefix(mediaType, "text/"):
			return formatText
		case mediaType == "application/pdf":
			return formatPDF
		case strings.HasPrefix(mediaType, "image/"):
			return formatImage
		}
	}
	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".txt", ".md", ".csv":
		return formatText
	case ".html", ".htm", ".xhtml":
		return formatHTML
	case ".pdf":
		return formatPDF
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".tif", ".tiff":
		return formatImage
	}
	return formatUnknown
}

// isPDF is used by OCR backends that need a different request for PDFs.
func isPDF(doc domain.Document) bool {
	return detect(doc) == formatPDF
}
