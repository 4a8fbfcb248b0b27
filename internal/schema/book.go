package schema

import (
	"github.com/shopspring/decimal"
)

// Level is one price level of an order book side.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Equal reports structural equality of two levels.
func (l Level) Equal(other Level) bool {
	return l.Price.Equal(other.Price) && l.Quantity.Equal(other.Quantity)
}

// OrderBook is the canonical order book shape. Bids are ordered by price
// descending, asks ascending. Structural equality drives the router's
// change-only delivery; adapters must return this wrapper to benefit from
// deduplication.
type OrderBook struct {
	Bids []Level
	Asks []Level
}

// Equal compares both sides element-wise in order.
func (b OrderBook) Equal(other OrderBook) bool {
	return levelsEqual(b.Bids, other.Bids) && levelsEqual(b.Asks, other.Asks)
}

// BestBid returns the highest bid, or false when the book side is empty.
func (b OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{Price: decimal.Zero, Quantity: decimal.Zero}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, or false when the book side is empty.
func (b OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{Price: decimal.Zero, Quantity: decimal.Zero}, false
	}
	return b.Asks[0], true
}

func levelsEqual(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// BalanceEntry holds the per-asset balance components.
type BalanceEntry struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
	Total  decimal.Decimal
	Debt   decimal.Decimal
}

// IsZero reports whether every component is zero.
func (e BalanceEntry) IsZero() bool {
	return e.Free.IsZero() && e.Locked.IsZero() && e.Total.IsZero() && e.Debt.IsZero()
}

// Equal reports structural equality of two entries.
func (e BalanceEntry) Equal(other BalanceEntry) bool {
	return e.Free.Equal(other.Free) &&
		e.Locked.Equal(other.Locked) &&
		e.Total.Equal(other.Total) &&
		e.Debt.Equal(other.Debt)
}

// Balance maps asset names to balance entries. Missing assets read as zeros.
type Balance map[string]BalanceEntry

// Get returns the entry for the asset, defaulting to zeros.
func (b Balance) Get(asset string) BalanceEntry {
	if b == nil {
		return BalanceEntry{Free: decimal.Zero, Locked: decimal.Zero, Total: decimal.Zero, Debt: decimal.Zero}
	}
	entry, ok := b[asset]
	if !ok {
		return BalanceEntry{Free: decimal.Zero, Locked: decimal.Zero, Total: decimal.Zero, Debt: decimal.Zero}
	}
	return entry
}

// Equal compares balances over the union of keys; assets absent on one side
// compare as zeros.
func (b Balance) Equal(other Balance) bool {
	for asset := range b {
		if !b.Get(asset).Equal(other.Get(asset)) {
			return false
		}
	}
	for asset := range other {
		if _, seen := b[asset]; seen {
			continue
		}
		if !b.Get(asset).Equal(other.Get(asset)) {
			return false
		}
	}
	return true
}

// Position maps symbols to signed quantities. Missing symbols read as zero.
type Position map[string]decimal.Decimal

// Get returns the signed quantity for the symbol, defaulting to zero.
func (p Position) Get(symbol string) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	qty, ok := p[symbol]
	if !ok {
		return decimal.Zero
	}
	return qty
}

// Equal compares positions over the union of keys; symbols absent on one
// side compare as zero.
func (p Position) Equal(other Position) bool {
	for symbol := range p {
		if !p.Get(symbol).Equal(other.Get(symbol)) {
			return false
		}
	}
	for symbol := range other {
		if _, seen := p[symbol]; seen {
			continue
		}
		if !p.Get(symbol).Equal(other.Get(symbol)) {
			return false
		}
	}
	return true
}

// Order is one open order. Amount is signed: positive buys, negative sells.
// Price is nil for market orders.
type Order struct {
	ID     string
	Price  *decimal.Decimal
	Amount decimal.Decimal
	Type   string
}

// IsBuy reports whether the order buys the base asset.
func (o Order) IsBuy() bool {
	return o.Amount.IsPositive()
}

// Orders is the canonical open-order set keyed by order ID.
type Orders map[string]Order

// Equal compares order sets by their ID sets.
func (o Orders) Equal(other Orders) bool {
	if len(o) != len(other) {
		return false
	}
	for id := range o {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}
