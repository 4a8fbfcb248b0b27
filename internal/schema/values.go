package schema

import (
	"reflect"

	"github.com/shopspring/decimal"
)

// Comparable attaches structural equality to a parsed subscription value.
// The router consults it for change-only delivery.
type Comparable interface {
	EqualValue(other any) bool
}

// EqualValue implements Comparable for order books.
func (b OrderBook) EqualValue(other any) bool {
	o, ok := other.(OrderBook)
	return ok && b.Equal(o)
}

// EqualValue implements Comparable for balances.
func (b Balance) EqualValue(other any) bool {
	o, ok := other.(Balance)
	return ok && b.Equal(o)
}

// EqualValue implements Comparable for positions.
func (p Position) EqualValue(other any) bool {
	o, ok := other.(Position)
	return ok && p.Equal(o)
}

// EqualValue implements Comparable for open-order sets.
func (o Orders) EqualValue(other any) bool {
	v, ok := other.(Orders)
	return ok && o.Equal(v)
}

// EqualValues compares two parsed subscription values. Canonical wrappers
// compare structurally through Comparable; decimals compare numerically;
// everything else falls back to deep equality.
func EqualValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if cmp, ok := a.(Comparable); ok {
		return cmp.EqualValue(b)
	}
	if da, ok := a.(decimal.Decimal); ok {
		db, ok := b.(decimal.Decimal)
		return ok && da.Equal(db)
	}
	return reflect.DeepEqual(a, b)
}
