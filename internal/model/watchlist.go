package model

import "strings"

// WatchlistEntry is a monitored instrument.
type WatchlistEntry struct {
	Ticker string
	Name   string
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
