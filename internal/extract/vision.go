package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quiz-room-service/internal/domain"
)

// DefaultVisionURL is the Google Cloud Vision REST root.
const DefaultVisionURL = "https://vision.googleapis.com/v1"

// Vision runs text detection through the Cloud Vision REST API. Images use
// images:annotate and return the first text annotation; PDFs use
// files:annotate and return the joined page texts.
type Vision struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewVision(baseURL, apiKey string, timeout time.Duration) *Vision {
	if baseURL == "" {
		baseURL = DefaultVisionURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Vision{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type visionFeature struct {
	Type string `json:"type"`
}

type imageRequest struct {
	Image struct {
		Content string `json:"content"`
	} `json:"image"`
	Features []visionFeature `json:"features"`
}

type fileRequest struct {
	InputConfig struct {
		Content  string `json:"content"`
		MimeType string `json:"mimeType"`
	} `json:"inputConfig"`
	Features []visionFeature `json:"features"`
}

type batchRequest[T any] struct {
	Requests []T `json:"requests"`
}

type visionError struct {
	Message string `json:"message"`
}

type annotateResponse struct {
	TextAnnotations []struct {
		Description string `json:"description"`
	} `json:"textAnnotations"`
	FullTextAnnotation *struct {
		Text string `json:"text"`
	} `json:"fullTextAnnotation"`
	Error *visionError `json:"error,omitempty"`
}

type imageResponse struct {
	Responses []annotateResponse `json:"responses"`
	Error     *visionError       `json:"error,omitempty"`
}

type fileResponse struct {
	Responses []struct {
		Responses []annotateResponse `json:"responses"`
		Error     *visionError       `json:"error,omitempty"`
	} `json:"responses"`
	Error *visionError `json:"error,omitempty"`
}

func (v *Vision) Extract(ctx context.Context, doc domain.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", nil
	}
	content := base64.StdEncoding.EncodeToString(doc.Data)
	if isPDF(doc) {
		return v.annotateFile(ctx, content)
	}
	return v.annotateImage(ctx, content)
}

func (v *Vision) annotateImage(ctx context.Context, content string) (string, error) {
	var item imageRequest
	item.Image.Content = content
	item.Features = []visionFeature{{Type: "TEXT_DETECTION"}}

	var resp imageResponse
	if err := v.post(ctx, "/images:annotate", batchRequest[imageRequest]{Requests: []imageRequest{item}}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: vision: %s", domain.ErrExtractionFailed, resp.Error.Message)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}
	first := resp.Responses[0]
	if first.Error != nil {
		return "", fmt.Errorf("%w: vision: %s", domain.ErrExtractionFailed, first.Error.Message)
	}
	if len(first.TextAnnotations) == 0 {
		return "", nil
	}
	return first.TextAnnotations[0].Description, nil
}

func (v *Vision) annotateFile(ctx context.Context, content string) (string, error) {
	var item fileRequest
	item.InputConfig.Content = content
	item.InputConfig.MimeType = "application/pdf"
	item.Features = []visionFeature{{Type: "DOCUMENT_TEXT_DETECTION"}}

	var resp fileResponse
	if err := v.post(ctx, "/files:annotate", batchRequest[fileRequest]{Requests: []fileRequest{item}}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: vision: %s", domain.ErrExtractionFailed, resp.Error.Message)
	}
	var pages []string
	for _, file := range resp.Responses {
		if file.Error != nil {
			return "", fmt.Errorf("%w: vision: %s", domain.ErrExtractionFailed, file.Error.Message)
		}
		for _, page := range file.Responses {
			if page.FullTextAnnotation != nil && page.FullTextAnnotation.Text != "" {
				pages = append(pages, strings.TrimSpace(page.FullTextAnnotation.Text))
			}
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func (v *Vision) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	endpoint := v.baseURL + path
	if v.apiKey != "" {
		endpoint += "?key=" + url.QueryEscape(v.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: vision request failed: %w", domain.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", domain.ErrExtractionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: vision returned status %d: %s", domain.ErrExtractionFailed, resp.StatusCode, truncate(string(raw), 300))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: failed to parse vision response: %w", domain.ErrExtractionFailed, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
