// Package adapters defines the capability surface exchange adapters expose
// to strategies.
package adapters

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/internal/engine"
)

// Adapter is the capability set every exchange integration provides. Each
// subscribe call registers a router parse callback and requests host
// polling; each order operation issues a synchronous-looking send from the
// strategy's point of view.
type Adapter interface {
	// SubscribeOrderBook polls the venue's order book; the extractor yields
	// the canonical book.
	SubscribeOrderBook(period time.Duration) (engine.Extractor, error)
	// SubscribeBalance polls account balances; the extractor yields the
	// canonical balance map.
	SubscribeBalance(period time.Duration) (engine.Extractor, error)
	// SubscribeOrders polls open orders; the extractor yields the canonical
	// order set.
	SubscribeOrders(period time.Duration) (engine.Extractor, error)
	// LimitOrder places a limit order. Amount is signed: positive buys,
	// negative sells. Returns the venue order id.
	LimitOrder(price, amount decimal.Decimal) (string, error)
	// MarketOrder places a market order with the signed amount convention.
	MarketOrder(amount decimal.Decimal) (string, error)
	// CancelOrder cancels an open order by venue id.
	CancelOrder(id string) error
}

// PositionSubscriber is implemented by adapters for venues with derivative
// markets.
type PositionSubscriber interface {
	// SubscribePositions polls open positions; the extractor yields the
	// canonical position map.
	SubscribePositions(period time.Duration) (engine.Extractor, error)
}
