// Package symbol handles stock ticker parsing and normalization. Every
// symbol stored on a trading call goes through Normalize first, so one
// instrument never appears under two spellings.
package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Recognized exchange suffixes.
const (
	ExchangeNSE = "NS"
	ExchangeBSE = "BO"
)

var validExchanges = map[string]bool{
	ExchangeNSE: true,
	ExchangeBSE: true,
}

// symbolRegex matches: {TICKER} or {TICKER}.{EXCHANGE}
// Example: RELIANCE, TATAMOTORS.NS, M&M.BO
var symbolRegex = regexp.MustCompile(
	`^([A-Z][A-Z0-9&-]{0,19})(?:\.([A-Z]{2}))?$`,
)

var (
	ErrInvalidSymbol   = errors.New("symbol: invalid ticker format")
	ErrInvalidExchange = errors.New("symbol: unsupported exchange suffix")
)

// Symbol represents a parsed instrument identifier.
type Symbol struct {
	Raw      string `json:"raw"`
	Ticker   string `json:"ticker"`
	Exchange string `json:"exchange,omitempty"`
}

// String returns the canonical form: TICKER or TICKER.EXCHANGE.
func (s Symbol) String() string {
	if s.Exchange == "" {
		return s.Ticker
	}
	return s.Ticker + "." + s.Exchange
}

// Parse validates a symbol string and splits it into ticker and exchange.
// Input is trimmed and upper-cased before matching.
func Parse(raw string) (*Symbol, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))

	matches := symbolRegex.FindStringSubmatch(cleaned)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q (expected TICKER or TICKER.EXCHANGE)",
			ErrInvalidSymbol, raw)
	}

	ticker := matches[1]
	exchange := matches[2]

	if exchange != "" && !validExchanges[exchange] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExchange, exchange)
	}

	return &Symbol{
		Raw:      raw,
		Ticker:   ticker,
		Exchange: exchange,
	}, nil
}

// Normalize parses a symbol and returns its canonical string form.
func Normalize(raw string) (string, error) {
	s, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}
