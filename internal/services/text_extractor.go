package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"cvmatcher/backend/internal/logger"
)

var (
	// ErrNoText means the document was readable but contained no text.
	ErrNoText = errors.New("no text content found in document")
	// ErrUnsupportedFile is returned for formats that need Tika when no Tika URL is configured.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

type textExtractor struct {
	tikaURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewTextExtractor reads PDF and plain text locally and sends everything else
// to Apache Tika when tikaURL is set.
func NewTextExtractor(tikaURL string, httpClient *http.Client, log *zap.Logger) TextExtractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &textExtractor{
		tikaURL:    strings.TrimSpace(tikaURL),
		httpClient: httpClient,
		log:        logger.OrNop(log),
	}
}

func (t *textExtractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoText
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md":
		return nonEmpty(CleanText(string(data)))
	case ".pdf":
		text, err := extractPDFText(data)
		if err == nil {
			return nonEmpty(CleanText(text))
		}
		if t.tikaURL == "" {
			return "", err
		}
		// scanned or oddly encoded PDFs
		t.log.Debug("Local PDF extraction failed, falling back to Tika",
			zap.String("filename", filename), zap.Error(err))
	}

	if t.tikaURL == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}

	text, err := t.extractWithTika(ctx, filename, data)
	if err != nil {
		return "", err
	}
	return nonEmpty(CleanText(text))
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	for pageIndex := 1; pageIndex <= r.NumPage(); pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (t *textExtractor) extractWithTika(ctx context.Context, filename string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.tikaURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build tika request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", contentTypeFor(filename))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("tika request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read tika response: %w", err)
	}
	if resp.StatusCode == http.StatusUnsupportedMediaType || resp.StatusCode == http.StatusUnprocessableEntity {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(filename))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika returned status %d: %s", resp.StatusCode, logger.TruncateForLog(string(body), 200))
	}
	return string(body), nil
}

func nonEmpty(text string) (string, error) {
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// CleanText drops control characters, trims every line and collapses runs of
// blank lines into one.
func CleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' || r == 0 || !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(cleaned) > 0 {
				cleaned = append(cleaned, "")
			}
			blank = true
			continue
		}
		blank = false
		cleaned = append(cleaned, line)
	}

	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
