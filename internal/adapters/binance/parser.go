package binance

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/internal/schema"
)

func parseLevels(raw [][2]json.Number) ([]schema.Level, error) {
	levels := make([]schema.Level, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0].String())
		if err != nil {
			return nil, fmt.Errorf("level price %q: %w", pair[0], err)
		}
		qty, err := decimal.NewFromString(pair[1].String())
		if err != nil {
			return nil, fmt.Errorf("level quantity %q: %w", pair[1], err)
		}
		levels = append(levels, schema.Level{Price: price, Quantity: qty})
	}
	return levels, nil
}

// parseOrderBook decodes the depth endpoint shape: price levels as
// ["price", "quantity"] string pairs, bids descending and asks ascending.
func parseOrderBook(content string) (schema.OrderBook, error) {
	var raw struct {
		Bids [][2]json.Number `json:"bids"`
		Asks [][2]json.Number `json:"asks"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return schema.OrderBook{Bids: nil, Asks: nil}, fmt.Errorf("decode depth: %w", err)
	}
	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return schema.OrderBook{Bids: nil, Asks: nil}, err
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return schema.OrderBook{Bids: nil, Asks: nil}, err
	}
	return schema.OrderBook{Bids: bids, Asks: asks}, nil
}

// parseSpotBalance decodes the spot account endpoint. All-zero entries are
// dropped; the canonical balance treats missing assets as zero anyway.
func parseSpotBalance(content string) (schema.Balance, error) {
	var raw struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	balance := make(schema.Balance, len(raw.Balances))
	for _, entry := range raw.Balances {
		free, err := decimal.NewFromString(entry.Free)
		if err != nil {
			return nil, fmt.Errorf("balance free %q: %w", entry.Free, err)
		}
		locked, err := decimal.NewFromString(entry.Locked)
		if err != nil {
			return nil, fmt.Errorf("balance locked %q: %w", entry.Locked, err)
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
		balance[entry.Asset] = parsed
	}
	return balance, nil
}

// parseSwapBalance decodes the USDT-margined futures account endpoint.
func parseSwapBalance(content string) (schema.Balance, error) {
	var raw struct {
		Assets []struct {
			Asset            string `json:"asset"`
			WalletBalance    string `json:"walletBalance"`
			AvailableBalance string `json:"availableBalance"`
		} `json:"assets"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode futures account: %w", err)
	}
	balance := make(schema.Balance, len(raw.Assets))
	for _, entry := range raw.Assets {
		total, err := decimal.NewFromString(entry.WalletBalance)
		if err != nil {
			return nil, fmt.Errorf("wallet balance %q: %w", entry.WalletBalance, err)
		}
		free, err := decimal.NewFromString(entry.AvailableBalance)
		if err != nil {
			return nil, fmt.Errorf("available balance %q: %w", entry.AvailableBalance, err)
		}
		parsed := schema.BalanceEntry{
			Free:   free,
			Locked: total.Sub(free),
			Total:  total,
			Debt:   decimal.Zero,
		}
		if parsed.IsZero() {
			continue
		}
		balance[entry.Asset] = parsed
	}
	return balance, nil
}

// parseOpenOrders decodes the open-order listing into the canonical order
// set. Amounts are signed by side.
func parseOpenOrders(content string) (schema.Orders, error) {
	var raw []struct {
		OrderID     int64  `json:"orderId"`
		Price       string `json:"price"`
		OrigQty     string `json:"origQty"`
		ExecutedQty string `json:"executedQty"`
		Side        string `json:"side"`
		Type        string `json:"type"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	orders := make(schema.Orders, len(raw))
	for _, entry := range raw {
		qty, err := decimal.NewFromString(entry.OrigQty)
		if err != nil {
			return nil, fmt.Errorf("order quantity %q: %w", entry.OrigQty, err)
		}
		if entry.ExecutedQty != "" {
			executed, err := decimal.NewFromString(entry.ExecutedQty)
			if err != nil {
				return nil, fmt.Errorf("executed quantity %q: %w", entry.ExecutedQty, err)
			}
			qty = qty.Sub(executed)
		}
		if entry.Side == "SELL" {
			qty = qty.Neg()
		}
		order := schema.Order{
			ID:     strconv.FormatInt(entry.OrderID, 10),
			Price:  nil,
			Amount: qty,
			Type:   entry.Type,
		}
		if entry.Price != "" {
			price, err := decimal.NewFromString(entry.Price)
			if err != nil {
				return nil, fmt.Errorf("order price %q: %w", entry.Price, err)
			}
			if !price.IsZero() {
				order.Price = &price
			}
		}
		orders[order.ID] = order
	}
	return orders, nil
}

// parsePositions decodes positionRisk into the canonical signed position
// map. Flat positions are dropped.
func parsePositions(content string) (schema.Position, error) {
	var raw []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	positions := make(schema.Position, len(raw))
	for _, entry := range raw {
		qty, err := decimal.NewFromString(entry.PositionAmt)
		if err != nil {
			return nil, fmt.Errorf("position amount %q: %w", entry.PositionAmt, err)
		}
		if qty.IsZero() {
			continue
		}
		positions[entry.Symbol] = qty
	}
	return positions, nil
}
