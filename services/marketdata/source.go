package marketdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
)

// MaxSymbolLength is the longest ticker accepted anywhere in the service.
const MaxSymbolLength = 10

// Source fetches a point-in-time quote for a symbol from one upstream
// provider. Sources do not retry; the poll loop retries on its next
// tick. Latency is bounded by the caller-supplied context.
type Source interface {
	Name() string
	Configured() bool
	Fetch(ctx context.Context, symbol string) (models.Quote, error)
}

// NormalizeSymbol uppercases and validates a ticker symbol.
func NormalizeSymbol(symbol string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return "", fmt.Errorf("empty symbol")
	}
	if len(sym) > MaxSymbolLength {
		return "", fmt.Errorf("symbol %q too long (max %d chars)", sym, MaxSymbolLength)
	}
	for _, r := range sym {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '-' {
			return "", fmt.Errorf("symbol %q contains invalid character %q", sym, r)
		}
	}
	return sym, nil
}

// failoverSource tries each configured source in order and returns the
// first successful quote.
type failoverSource struct {
	sources []Source
}

// NewFailoverSource combines sources into one. Unconfigured sources are
// skipped at fetch time so credentials can be added without re-wiring.
func NewFailoverSource(sources ...Source) Source {
	return &failoverSource{sources: sources}
}

func (f *failoverSource) Name() string { return "failover" }

func (f *failoverSource) Configured() bool {
	for _, s := range f.sources {
		if s.Configured() {
			return true
		}
	}
	return false
}

func (f *failoverSource) Fetch(ctx context.Context, symbol string) (models.Quote, error) {
	var lastErr error
	for _, s := range f.sources {
		if !s.Configured() {
			continue
		}
		quote, err := s.Fetch(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = fmt.Errorf("%s: %w", s.Name(), err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no quote source configured")
	}
	return models.Quote{}, fmt.Errorf("all sources failed for %s: %w", symbol, lastErr)
}
