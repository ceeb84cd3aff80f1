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
	"github.com/shopspring/decimal"
)

const TwelveDataQuoteAPIURL = "https://api.twelvedata.com/quote"

// twelveDataQuoteResponse is Twelve Data's quote payload. Numeric
// fields arrive as JSON strings, parsed with decimal to avoid float
// round-trips.
type twelveDataQuoteResponse struct {
	Symbol        string `json:"symbol"`
	Open          string `json:"open"`
	High          string `json:"high"`
	Low           string `json:"low"`
	Close         string `json:"close"`
	Volume        string `json:"volume"`
	PreviousClose string `json:"previous_close"`
	Change        string `json:"change"`
	PercentChange string `json:"percent_change"`
	MarketCap     string `json:"market_cap"`

	// Error envelope, present when status == "error"
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// TwelveDataSource fetches realtime quotes from the Twelve Data REST API.
type TwelveDataSource struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewTwelveDataSource creates a Twelve Data-backed quote source.
func NewTwelveDataSource(apiKey string) *TwelveDataSource {
	return &TwelveDataSource{
		apiKey:     apiKey,
		baseURL:    TwelveDataQuoteAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *TwelveDataSource) Name() string { return "twelvedata" }

func (s *TwelveDataSource) Configured() bool { return s.apiKey != "" }

// Fetch fetches the current quote for a symbol
func (s *TwelveDataSource) Fetch(ctx context.Context, symbol string) (models.Quote, error) {
	reqURL := fmt.Sprintf("%s?symbol=%s&apikey=%s", s.baseURL, url.QueryEscape(symbol), s.apiKey)

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

	var quoteResp twelveDataQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return models.Quote{}, fmt.Errorf("failed to parse response: %w", err)
	}

	// Twelve Data signals errors in-band with a 200 status
	if quoteResp.Status == "error" {
		return models.Quote{}, fmt.Errorf("API error (code %d): %s", quoteResp.Code, quoteResp.Message)
	}

	price, err := decimal.NewFromString(quoteResp.Close)
	if err != nil {
		return models.Quote{}, fmt.Errorf("invalid close price %q: %w", quoteResp.Close, err)
	}

	change := parseDecimalField(quoteResp.Change)
	changePercent := parseDecimalField(quoteResp.PercentChange)

	// Derive change fields from previous close when the API omits them
	if quoteResp.Change == "" || quoteResp.PercentChange == "" {
		if prev, perr := decimal.NewFromString(quoteResp.PreviousClose); perr == nil && !prev.IsZero() {
			diff := price.Sub(prev)
			change = diff
			changePercent = diff.Div(prev).Mul(decimal.NewFromInt(100))
		}
	}

	return models.Quote{
		Symbol:        symbol,
		Price:         price.InexactFloat64(),
		Change:        change.InexactFloat64(),
		ChangePercent: changePercent.InexactFloat64(),
		Volume:        parseDecimalField(quoteResp.Volume).InexactFloat64(),
		High:          parseDecimalField(quoteResp.High).InexactFloat64(),
		Low:           parseDecimalField(quoteResp.Low).InexactFloat64(),
		Open:          parseDecimalField(quoteResp.Open).InexactFloat64(),
		MarketCap:     parseDecimalField(quoteResp.MarketCap).InexactFloat64(),
		Source:        s.Name(),
		FetchedAt:     time.Now(),
	}, nil
}

// parseDecimalField parses an optional string-typed number, returning
// zero for empty or malformed values.
func parseDecimalField(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
