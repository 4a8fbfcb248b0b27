// Package binance adapts Binance spot and USDT-margined swap REST
// endpoints to the canonical engine shapes.
package binance

import (
	"fmt"
	"net/url"
	"strconv"
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
	SignerName = "binance"

	spotBaseURL = "https://api.binance.com"
	swapBaseURL = "https://fapi.binance.com"

	defaultDepthLimit = 20
)

var (
	_ adapters.Adapter            = (*Adapter)(nil)
	_ adapters.PositionSubscriber = (*Adapter)(nil)
)

// Adapter holds the strategy context and market a capability set operates
// on. One adapter serves one market identifier.
type Adapter struct {
	ctx       *engine.Ctx
	market    schema.Market
	envSuffix string
	depth     int
}

// Option configures an adapter.
type Option func(*Adapter)

// WithEnvSuffix routes requests through the named credential environment.
func WithEnvSuffix(suffix string) Option {
	return func(a *Adapter) {
		a.envSuffix = suffix
	}
}

// WithDepth overrides the order book depth request limit.
func WithDepth(depth int) Option {
	return func(a *Adapter) {
		if depth > 0 {
			a.depth = depth
		}
	}
}

// New builds an adapter for the market identifier, e.g. "spot:BTC/USDT" or
// "swap:ETH/USDT".
func New(ctx *engine.Ctx, marketID string, opts ...Option) (*Adapter, error) {
	market, err := schema.ParseMarket(marketID)
	if err != nil {
		return nil, err
	}
	a := &Adapter{
		ctx:       ctx,
		market:    market,
		envSuffix: "",
		depth:     defaultDepthLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

func (a *Adapter) baseURL() string {
	if a.market.Type == schema.MarketSwap {
		return swapBaseURL
	}
	return spotBaseURL
}

func (a *Adapter) apiPath(spotPath, swapPath string) string {
	if a.market.Type == schema.MarketSwap {
		return swapPath
	}
	return spotPath
}

func (a *Adapter) publicGet(path string, query url.Values) schema.RequestPayload {
	u := a.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return schema.RequestPayload{
		URL:         u,
		Method:      schema.MethodGet,
		Body:        "",
		Headers:     nil,
		Sign:        "",
		EnvSuffix:   a.envSuffix,
		PrimaryOnly: false,
	}
}

func (a *Adapter) signedRequest(method schema.Method, path string, query url.Values) schema.RequestPayload {
	u := a.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return schema.RequestPayload{
		URL:         u,
		Method:      method,
		Body:        "",
		Headers:     nil,
		Sign:        SignerName,
		EnvSuffix:   a.envSuffix,
		PrimaryOnly: true,
	}
}

// SubscribeOrderBook polls the depth endpoint and parses it into the
// canonical order book.
func (a *Adapter) SubscribeOrderBook(period time.Duration) (engine.Extractor, error) {
	query := url.Values{}
	query.Set("symbol", a.market.Symbol())
	query.Set("limit", strconv.Itoa(a.depth))
	req := a.publicGet(a.apiPath("/api/v3/depth", "/fapi/v1/depth"), query)
	return a.ctx.Router().Register(req, period, func(p *schema.ResponsePayload) (any, error) {
		return parseOrderBook(p.Content)
	})
}

// SubscribeBalance polls the account endpoint and parses it into the
// canonical balance map.
func (a *Adapter) SubscribeBalance(period time.Duration) (engine.Extractor, error) {
	req := a.signedRequest(schema.MethodGet, a.apiPath("/api/v3/account", "/fapi/v2/account"), nil)
	swap := a.market.Type == schema.MarketSwap
	return a.ctx.Router().Register(req, period, func(p *schema.ResponsePayload) (any, error) {
		if swap {
			return parseSwapBalance(p.Content)
		}
		return parseSpotBalance(p.Content)
	})
}

// SubscribeOrders polls open orders for the adapter's market.
func (a *Adapter) SubscribeOrders(period time.Duration) (engine.Extractor, error) {
	query := url.Values{}
	query.Set("symbol", a.market.Symbol())
	req := a.signedRequest(schema.MethodGet, a.apiPath("/api/v3/openOrders", "/fapi/v1/openOrders"), query)
	return a.ctx.Router().Register(req, period, func(p *schema.ResponsePayload) (any, error) {
		return parseOpenOrders(p.Content)
	})
}

// SubscribePositions polls open swap positions. Spot markets have no
// position endpoint.
func (a *Adapter) SubscribePositions(period time.Duration) (engine.Extractor, error) {
	if a.market.Type != schema.MarketSwap {
		return nil, errs.New("binance/positions", errs.CodeInvalid,
			errs.WithMessage("positions are only available on swap markets"))
	}
	query := url.Values{}
	query.Set("symbol", a.market.Symbol())
	req := a.signedRequest(schema.MethodGet, "/fapi/v2/positionRisk", query)
	return a.ctx.Router().Register(req, period, func(p *schema.ResponsePayload) (any, error) {
		return parsePositions(p.Content)
	})
}

// LimitOrder places a GTC limit order. Amount is signed: positive buys the
// base asset, negative sells it.
func (a *Adapter) LimitOrder(price, amount decimal.Decimal) (string, error) {
	if amount.IsZero() {
		return "", errs.New("binance/order", errs.CodeInvalid,
			errs.WithMessage("order amount must be non-zero"))
	}
	query := a.orderQuery(amount)
	query.Set("type", "LIMIT")
	query.Set("timeInForce", "GTC")
	query.Set("price", price.String())
	return a.placeOrder(query)
}

// MarketOrder places a market order with the signed amount convention.
func (a *Adapter) MarketOrder(amount decimal.Decimal) (string, error) {
	if amount.IsZero() {
		return "", errs.New("binance/order", errs.CodeInvalid,
			errs.WithMessage("order amount must be non-zero"))
	}
	query := a.orderQuery(amount)
	query.Set("type", "MARKET")
	return a.placeOrder(query)
}

func (a *Adapter) orderQuery(amount decimal.Decimal) url.Values {
	query := url.Values{}
	query.Set("symbol", a.market.Symbol())
	if amount.IsPositive() {
		query.Set("side", "BUY")
	} else {
		query.Set("side", "SELL")
	}
	query.Set("quantity", amount.Abs().String())
	return query
}

func (a *Adapter) placeOrder(query url.Values) (string, error) {
	req := a.signedRequest(schema.MethodPost, a.apiPath("/api/v3/order", "/fapi/v1/order"), query)
	resp, err := a.ctx.Send(req)
	if err != nil {
		return "", err
	}
	var ack struct {
		OrderID int64 `json:"orderId"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &ack); err != nil {
		return "", fmt.Errorf("decode order ack: %w", err)
	}
	return strconv.FormatInt(ack.OrderID, 10), nil
}

// CancelOrder cancels an open order by venue id.
func (a *Adapter) CancelOrder(id string) error {
	query := url.Values{}
	query.Set("symbol", a.market.Symbol())
	query.Set("orderId", id)
	req := a.signedRequest(schema.MethodDelete, a.apiPath("/api/v3/order", "/fapi/v1/order"), query)
	_, err := a.ctx.Send(req)
	return err
}
