package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Anonymizer replaces personal data in free text with placeholders.
type Anonymizer interface {
	Anonymize(ctx context.Context, text string) (string, error)
}

type presidioAnonymizer struct {
	analyzerURL   string
	anonymizerURL string
	language      string
	httpClient    *http.Client
}

// NewPresidioAnonymizer calls the Presidio analyzer and then the anonymizer
// with the analyzer findings.
func NewPresidioAnonymizer(analyzerURL, anonymizerURL, language string, httpClient *http.Client) Anonymizer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if language == "" {
		language = "en"
	}
	return &presidioAnonymizer{
		analyzerURL:   strings.TrimRight(analyzerURL, "/"),
		anonymizerURL: strings.TrimRight(anonymizerURL, "/"),
		language:      language,
		httpClient:    httpClient,
	}
}

func (p *presidioAnonymizer) Anonymize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	findings, err := p.post(ctx, p.analyzerURL+"/analyze", map[string]any{
		"text":     text,
		"language": p.language,
	})
	if err != nil {
		return "", fmt.Errorf("presidio analyze: %w", err)
	}

	var analyzerResults json.RawMessage = findings
	if !gjson.ValidBytes(findings) || !gjson.ParseBytes(findings).IsArray() {
		analyzerResults = json.RawMessage("[]")
	}

	body, err := p.post(ctx, p.anonymizerURL+"/anonymize", map[string]any{
		"text":             text,
		"analyzer_results": analyzerResults,
	})
	if err != nil {
		return "", fmt.Errorf("presidio anonymize: %w", err)
	}

	out := gjson.GetBytes(body, "text")
	if !out.Exists() {
		return "", fmt.Errorf("presidio anonymize: response has no text field")
	}
	return out.String(), nil
}

func (p *presidioAnonymizer) post(ctx context.Context, url string, payload any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
