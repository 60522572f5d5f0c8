package doclayer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Extraction is one extraction result from the Doclayer API.
type Extraction struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Content    json.RawMessage `json:"content"`
	Confidence float64         `json:"confidence"`
	PageNumber int             `json:"page_number"`
	SourceText string          `json:"source_text"`
}

type extractionsResponse struct {
	Extractions []Extraction `json:"extractions"`
}

// Config holds Doclayer API client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a minimal authenticated client for the Doclayer REST API,
// covering only the extraction-results fetch the webhook pipeline needs.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Doclayer API client.
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchExtractions retrieves the extended extraction results for a document.
// A non-2xx response is logged and treated as "no extractions available",
// not a hard error; only transport-level failures return an error.
func (c *Client) FetchExtractions(ctx context.Context, documentID string) ([]Extraction, error) {
	url := fmt.Sprintf("%s/v1/documents/%s/extractions", c.baseURL, documentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build extractions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch extractions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Doclayer API returned non-2xx for extractions",
			slog.String("document_id", documentID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, nil
	}

	var body extractionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode extractions response: %w", err)
	}

	return body.Extractions, nil
}
