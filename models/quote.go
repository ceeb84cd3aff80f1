package models

import "time"

// Quote is one priced snapshot of a symbol at a point in time.
// Quotes are immutable after creation; a fresh fetch produces a new
// Quote that replaces the previous one in the cache.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        float64   `json:"volume"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	MarketCap     float64   `json:"market_cap"`
	Source        string    `json:"source"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// ConsistencyReport is a per-symbol data health summary, recomputed
// from scratch on every validation pass.
type ConsistencyReport struct {
	Symbol           string    `json:"symbol"`
	ConsistencyScore int       `json:"consistency_score"`
	Issues           []string  `json:"issues"`
	LastValidation   time.Time `json:"last_validation"`
}

// SourceStatus reports whether an upstream quote source has credentials
// configured. Used for the UI connection-status display only.
type SourceStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}
