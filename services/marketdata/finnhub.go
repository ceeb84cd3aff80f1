package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
)

const FinnhubQuoteAPIURL = "https://finnhub.io/api/v1/quote"

// finnhubQuoteResponse is Finnhub's quote payload (numeric JSON fields)
type finnhubQuoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// FinnhubSource fetches realtime quotes from the Finnhub REST API.
type FinnhubSource struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewFinnhubSource creates a Finnhub-backed quote source. An empty API
// key leaves the source unconfigured; it is then skipped by failover.
func NewFinnhubSource(apiKey string) *FinnhubSource {
	return &FinnhubSource{
		apiKey:     apiKey,
		baseURL:    FinnhubQuoteAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *FinnhubSource) Name() string { return "finnhub" }

func (s *FinnhubSource) Configured() bool { return s.apiKey != "" }

// Fetch fetches the current quote for a symbol
func (s *FinnhubSource) Fetch(ctx context.Context, symbol string) (models.Quote, error) {
	reqURL := fmt.Sprintf("%s?symbol=%s&token=%s", s.baseURL, url.QueryEscape(symbol), s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Quote{}, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var quoteResp finnhubQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return models.Quote{}, fmt.Errorf("failed to parse response: %w", err)
	}

	// Finnhub returns zeroes for unknown tickers
	if quoteResp.Current <= 0 {
		return models.Quote{}, fmt.Errorf("no price data for %s", symbol)
	}

	return models.Quote{
		Symbol:        symbol,
		Price:         quoteResp.Current,
		Change:        quoteResp.Change,
		ChangePercent: quoteResp.ChangePercent,
		High:          quoteResp.High,
		Low:           quoteResp.Low,
		Open:          quoteResp.Open,
		Source:        s.Name(),
		FetchedAt:     time.Now(),
	}, nil
}
