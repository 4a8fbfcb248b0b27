package upbit

import (
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/internal/schema"
)

func toDecimal(n json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decimal %q: %w", n, err)
	}
	return d, nil
}

// parseOrderBook decodes the orderbook endpoint: one entry per market, with
// interleaved bid/ask units. Bids sort descending, asks ascending.
func parseOrderBook(content string) (schema.OrderBook, error) {
	var raw []struct {
		OrderbookUnits []struct {
			AskPrice json.Number `json:"ask_price"`
			BidPrice json.Number `json:"bid_price"`
			AskSize  json.Number `json:"ask_size"`
			BidSize  json.Number `json:"bid_size"`
		} `json:"orderbook_units"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return schema.OrderBook{Bids: nil, Asks: nil}, fmt.Errorf("decode orderbook: %w", err)
	}
	if len(raw) == 0 {
		return schema.OrderBook{Bids: nil, Asks: nil}, fmt.Errorf("orderbook response is empty")
	}

	units := raw[0].OrderbookUnits
	bids := make([]schema.Level, 0, len(units))
	asks := make([]schema.Level, 0, len(units))
	for _, unit := range units {
		bidPrice, err := toDecimal(unit.BidPrice)
		if err != nil {
			return schema.OrderBook{Bids: nil, Asks: nil}, err
		}
		bidSize, err := toDecimal(unit.BidSize)
		if err != nil {
			return schema.OrderBook{Bids: nil, Asks: nil}, err
		}
		askPrice, err := toDecimal(unit.AskPrice)
		if err != nil {
			return schema.OrderBook{Bids: nil, Asks: nil}, err
		}
		askSize, err := toDecimal(unit.AskSize)
		if err != nil {
			return schema.OrderBook{Bids: nil, Asks: nil}, err
		}
		bids = append(bids, schema.Level{Price: bidPrice, Quantity: bidSize})
		asks = append(asks, schema.Level{Price: askPrice, Quantity: askSize})
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })
	return schema.OrderBook{Bids: bids, Asks: asks}, nil
}

// parseBalance decodes the accounts endpoint into the canonical balance
// map.
func parseBalance(content string) (schema.Balance, error) {
	var raw []struct {
		Currency string `json:"currency"`
		Balance  string `json:"balance"`
		Locked   string `json:"locked"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	balance := make(schema.Balance, len(raw))
	for _, entry := range raw {
		free, err := decimal.NewFromString(entry.Balance)
		if err != nil {
			return nil, fmt.Errorf("balance %q: %w", entry.Balance, err)
		}
		locked, err := decimal.NewFromString(entry.Locked)
		if err != nil {
			return nil, fmt.Errorf("locked %q: %w", entry.Locked, err)
		}
		parsed := schema.BalanceEntry{
			Free:   free,
			Locked: locked,
			Total:  free.Add(locked),
			Debt:   decimal.Zero,
		}
		if parsed.IsZero() {
			continue
		}
		balance[entry.Currency] = parsed
	}
	return balance, nil
}

// parseOpenOrders decodes waiting orders. The amount sign derives from the
// order side: bids are positive, asks negative.
func parseOpenOrders(content string) (schema.Orders, error) {
	var raw []struct {
		UUID            string `json:"uuid"`
		Side            string `json:"side"`
		Price           string `json:"price"`
		Volume          string `json:"volume"`
		RemainingVolume string `json:"remaining_volume"`
		OrdType         string `json:"ord_type"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	orders := make(schema.Orders, len(raw))
	for _, entry := range raw {
		volume := entry.RemainingVolume
		if volume == "" {
			volume = entry.Volume
		}
		amount, err := decimal.NewFromString(volume)
		if err != nil {
			return nil, fmt.Errorf("volume %q: %w", volume, err)
		}
		if entry.Side == "ask" {
			amount = amount.Neg()
		}
		order := schema.Order{
			ID:     entry.UUID,
			Price:  nil,
			Amount: amount,
			Type:   entry.OrdType,
		}
		if entry.Price != "" {
			price, err := decimal.NewFromString(entry.Price)
			if err != nil {
				return nil, fmt.Errorf("price %q: %w", entry.Price, err)
			}
			order.Price = &price
		}
		orders[order.ID] = order
	}
	return orders, nil
}
