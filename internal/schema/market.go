package schema

import (
	"strings"

	"github.com/cr0sh/grasshopper/errs"
)

// MarketType distinguishes spot and swap (perpetual) markets.
type MarketType string

const (
	// MarketSpot identifies a spot market.
	MarketSpot MarketType = "spot"
	// MarketSwap identifies a perpetual swap market.
	MarketSwap MarketType = "swap"
)

// Market is the parsed form of a market identifier
// "<market_type>:<BASE>/<QUOTE>".
type Market struct {
	Type  MarketType
	Base  string
	Quote string
}

// ParseMarket splits a market identifier into its components. Splitting the
// identifier is the first step of every adapter capability.
func ParseMarket(id string) (Market, error) {
	var zero Market
	trimmed := strings.TrimSpace(id)
	typePart, pairPart, ok := strings.Cut(trimmed, ":")
	if !ok {
		return zero, errs.New("schema/market", errs.CodeInvalid,
			errs.WithMessage("market identifier "+id+" missing market type"))
	}
	base, quote, ok := strings.Cut(pairPart, "/")
	if !ok {
		return zero, errs.New("schema/market", errs.CodeInvalid,
			errs.WithMessage("market identifier "+id+" missing quote currency"))
	}
	mt := MarketType(strings.ToLower(strings.TrimSpace(typePart)))
	switch mt {
	case MarketSpot, MarketSwap:
	default:
		return zero, errs.New("schema/market", errs.CodeInvalid,
			errs.WithMessage("unknown market type "+typePart))
	}
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return zero, errs.New("schema/market", errs.CodeInvalid,
			errs.WithMessage("market identifier "+id+" has empty currency"))
	}
	return Market{Type: mt, Base: base, Quote: quote}, nil
}

// Symbol joins base and quote without a separator, the form most exchange
// REST APIs accept.
func (m Market) Symbol() string {
	return m.Base + m.Quote
}

// String renders the canonical identifier form.
func (m Market) String() string {
	return string(m.Type) + ":" + m.Base + "/" + m.Quote
}
