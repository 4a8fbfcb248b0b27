// Package upbit adapts Upbit spot REST endpoints to the canonical engine
// shapes. Upbit market codes are quote-first: "spot:BTC/KRW" trades as
// "KRW-BTC".
package upbit

import (
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/adapters"
	"github.com/cr0sh/grasshopper/internal/engine"
	"github.com/cr0sh/grasshopper/internal/schema"
)

const (
	// SignerName selects this adapter's request signer.
	SignerName = "upbit"

	baseURL = "https://api.upbit.com"
)

var _ adapters.Adapter = (*Adapter)(nil)

// Adapter holds the strategy context and market a capability set operates
// on.
type Adapter struct {
	ctx       *engine.Ctx
	market    schema.Market
	envSuffix string
}

// Option configures an adapter.
type Option func(*Adapter)

// WithEnvSuffix routes requests through the named credential environment.
func WithEnvSuffix(suffix string) Option {
	return func(a *Adapter) {
		a.envSuffix = suffix
	}
}

// New builds an adapter for a spot market identifier, e.g. "spot:BTC/KRW".
func New(ctx *engine.Ctx, marketID string, opts ...Option) (*Adapter, error) {
	market, err := schema.ParseMarket(marketID)
	if err != nil {
		return nil, err
	}
	if market.Type != schema.MarketSpot {
		return nil, errs.New("upbit/new", errs.CodeInvalid,
			errs.WithMessage("upbit only serves spot markets"))
	}
	a := &Adapter{ctx: ctx, market: market, envSuffix: ""}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

func (a *Adapter) marketCode() string {
	return a.market.Quote + "-" + a.market.Base
}

func (a *Adapter) request(method schema.Method, path string, query url.Values, body string, signed bool) schema.RequestPayload {
	u := baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req := schema.RequestPayload{
		URL:         u,
		Method:      method,
		Body:        body,
		Headers:     nil,
		Sign:        "",
		EnvSuffix:   a.envSuffix,
		PrimaryOnly: false,
	}
	if body != "" {
		req.Headers = map[string]string{"Content-Type": "application/json"}
	}
	if signed {
		req.Sign = SignerName
		req.PrimaryOnly = true
	}
	return req
}

// SubscribeOrderBook polls the orderbook endpoint.
func (a *Adapter) SubscribeOrderBook(period time.Duration) (engine.Extractor, error) {
	query := url.Values{}
	query.Set("markets", a.marketCode())
	req := a.request(schema.MethodGet, "/v1/orderbook", query, "", false)
	return a.ctx.Router().Register(req, period, func(p *schema.ResponsePayload) (any, error) {
		return parseOrderBook(p.Content)
	})
}

// SubscribeBalance polls the accounts endpoint.
func (a *Adapter) SubscribeBalance(period time.Duration) (engine.Extractor, error) {
	req := a.request(schema.MethodGet, "/v1/accounts", nil, "", true)
	return a.ctx.Router().Register(req, period, func(p *schema.ResponsePayload) (any, error) {
		return parseBalance(p.Content)
	})
}

// SubscribeOrders polls open (waiting) orders for the adapter's market.
func (a *Adapter) SubscribeOrders(period time.Duration) (engine.Extractor, error) {
	query := url.Values{}
	query.Set("market", a.marketCode())
	query.Set("state", "wait")
	req := a.request(schema.MethodGet, "/v1/orders", query, "", true)
	return a.ctx.Router().Register(req, period, func(p *schema.ResponsePayload) (any, error) {
		return parseOpenOrders(p.Content)
	})
}

type orderBody struct {
	Market  string `json:"market"`
	Side    string `json:"side"`
	Volume  string `json:"volume,omitempty"`
	Price   string `json:"price,omitempty"`
	OrdType string `json:"ord_type"`
}

// LimitOrder places a limit order. The side derives from the sign of the
// amount: positive bids, negative asks.
func (a *Adapter) LimitOrder(price, amount decimal.Decimal) (string, error) {
	if amount.IsZero() {
		return "", errs.New("upbit/order", errs.CodeInvalid,
			errs.WithMessage("order amount must be non-zero"))
	}
	body := orderBody{
		Market:  a.marketCode(),
		Side:    sideOf(amount),
		Volume:  amount.Abs().String(),
		Price:   price.String(),
		OrdType: "limit",
	}
	return a.placeOrder(body)
}

// MarketOrder places a market order with the signed amount convention. A
// market buy spends the quote currency (ord_type "price"); a market sell
// disposes base volume (ord_type "market").
func (a *Adapter) MarketOrder(amount decimal.Decimal) (string, error) {
	if amount.IsZero() {
		return "", errs.New("upbit/order", errs.CodeInvalid,
			errs.WithMessage("order amount must be non-zero"))
	}
	body := orderBody{
		Market:  a.marketCode(),
		Side:    sideOf(amount),
		Volume:  "",
		Price:   "",
		OrdType: "",
	}
	if amount.IsPositive() {
		body.OrdType = "price"
		body.Price = amount.Abs().String()
	} else {
		body.OrdType = "market"
		body.Volume = amount.Abs().String()
	}
	return a.placeOrder(body)
}

func sideOf(amount decimal.Decimal) string {
	if amount.IsPositive() {
		return "bid"
	}
	return "ask"
}

func (a *Adapter) placeOrder(body orderBody) (string, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req := a.request(schema.MethodPost, "/v1/orders", nil, string(encoded), true)
	resp, err := a.ctx.Send(req)
	if err != nil {
		return "", err
	}
	var ack struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &ack); err != nil {
		return "", err
	}
	return ack.UUID, nil
}

// CancelOrder cancels an open order by uuid.
func (a *Adapter) CancelOrder(id string) error {
	query := url.Values{}
	query.Set("uuid", id)
	req := a.request(schema.MethodDelete, "/v1/order", query, "", true)
	_, err := a.ctx.Send(req)
	return err
}
