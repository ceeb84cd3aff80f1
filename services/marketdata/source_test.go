package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aapl", "AAPL", false},
		{" msft ", "MSFT", false},
		{"BRK.A", "BRK.A", false},
		{"BTC-USD", "BTC-USD", false},
		{"", "", true},
		{"   ", "", true},
		{"TOOLONGTICKER", "", true},
		{"BAD SYM", "", true},
		{"no$good", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeSymbol(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "NormalizeSymbol(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "NormalizeSymbol(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

// stubSource is a minimal Source for failover tests.
type stubSource struct {
	name       string
	configured bool
	quote      models.Quote
	err        error
	calls      int
}

func (s *stubSource) Name() string     { return s.name }
func (s *stubSource) Configured() bool { return s.configured }
func (s *stubSource) Fetch(ctx context.Context, symbol string) (models.Quote, error) {
	s.calls++
	if s.err != nil {
		return models.Quote{}, s.err
	}
	q := s.quote
	q.Symbol = symbol
	q.Source = s.name
	return q, nil
}

func TestFailoverUsesFirstHealthySource(t *testing.T) {
	broken := &stubSource{name: "primary", configured: true, err: fmt.Errorf("rate limited")}
	healthy := &stubSource{name: "secondary", configured: true, quote: models.Quote{Price: 99}}

	src := NewFailoverSource(broken, healthy)
	quote, err := src.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "secondary", quote.Source)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, healthy.calls)
}

func TestFailoverSkipsUnconfiguredSources(t *testing.T) {
	unconfigured := &stubSource{name: "primary"}
	healthy := &stubSource{name: "secondary", configured: true, quote: models.Quote{Price: 12}}

	src := NewFailoverSource(unconfigured, healthy)
	quote, err := src.Fetch(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 0, unconfigured.calls)
	assert.Equal(t, 12.0, quote.Price)
}

func TestFailoverNoSourceConfigured(t *testing.T) {
	src := NewFailoverSource(&stubSource{name: "primary"})
	assert.False(t, src.Configured())

	_, err := src.Fetch(context.Background(), "AAPL")
	assert.Error(t, err)
}

func TestFinnhubFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		fmt.Fprint(w, `{"c":190.5,"d":2.1,"dp":1.11,"h":192.0,"l":188.3,"o":189.0,"pc":188.4,"t":1700000000}`)
	}))
	defer server.Close()

	src := NewFinnhubSource("test-key")
	src.baseURL = server.URL

	quote, err := src.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.5, quote.Price)
	assert.Equal(t, 2.1, quote.Change)
	assert.Equal(t, 1.11, quote.ChangePercent)
	assert.Equal(t, "finnhub", quote.Source)
	assert.False(t, quote.FetchedAt.IsZero())
}

func TestFinnhubUnknownTicker(t *testing.T) {
	// Finnhub reports unknown tickers as all-zero payloads
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"c":0,"d":0,"dp":0,"h":0,"l":0,"o":0,"pc":0,"t":0}`)
	}))
	defer server.Close()

	src := NewFinnhubSource("test-key")
	src.baseURL = server.URL

	_, err := src.Fetch(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestTwelveDataFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"symbol": "AAPL",
			"open": "189.00",
			"high": "192.00",
			"low": "188.30",
			"close": "190.50",
			"volume": "52000000",
			"previous_close": "188.40",
			"change": "2.10",
			"percent_change": "1.11",
			"market_cap": "2950000000000"
		}`)
	}))
	defer server.Close()

	src := NewTwelveDataSource("test-key")
	src.baseURL = server.URL

	quote, err := src.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.50, quote.Price)
	assert.Equal(t, 2.10, quote.Change)
	assert.Equal(t, 1.11, quote.ChangePercent)
	assert.Equal(t, 52000000.0, quote.Volume)
	assert.Equal(t, 2950000000000.0, quote.MarketCap)
	assert.Equal(t, "twelvedata", quote.Source)
}

func TestTwelveDataDerivesChangeFromPreviousClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"MSFT","close":"110.00","previous_close":"100.00"}`)
	}))
	defer server.Close()

	src := NewTwelveDataSource("test-key")
	src.baseURL = server.URL

	quote, err := src.Fetch(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 110.0, quote.Price)
	assert.InDelta(t, 10.0, quote.Change, 1e-9)
	assert.InDelta(t, 10.0, quote.ChangePercent, 1e-9)
}

func TestTwelveDataErrorEnvelope(t *testing.T) {
	// Twelve Data signals errors in-band with HTTP 200
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","code":404,"message":"symbol not found"}`)
	}))
	defer server.Close()

	src := NewTwelveDataSource("test-key")
	src.baseURL = server.URL

	_, err := src.Fetch(context.Background(), "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol not found")
}
