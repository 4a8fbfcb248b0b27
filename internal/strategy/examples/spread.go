// Package examples contains reference strategies written against the
// engine's native Go surface.
package examples

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/internal/adapters/binance"
	"github.com/cr0sh/grasshopper/internal/engine"
	"github.com/cr0sh/grasshopper/internal/numeric"
	"github.com/cr0sh/grasshopper/internal/schema"
)

// SpreadWatcher reports the top-of-book spread on every book change and
// keeps an eye on the quote balance. It is deliberately passive: it places
// no orders and serves as the template for adapter-backed strategies.
func SpreadWatcher(marketID string, period time.Duration) engine.StrategyFunc {
	return func(ctx *engine.Ctx) error {
		adapter, err := binance.New(ctx, marketID)
		if err != nil {
			return err
		}
		market, err := schema.ParseMarket(marketID)
		if err != nil {
			return err
		}
		book, err := adapter.SubscribeOrderBook(period)
		if err != nil {
			return err
		}
		balance, err := adapter.SubscribeBalance(period)
		if err != nil {
			return err
		}

		ctx.Atexit(func() error {
			ctx.Infof("spread watcher for %s shutting down", marketID)
			return nil
		})

		return ctx.Router().On(func(results engine.Results, changed engine.Extractor) error {
			current, ok := book(results).(schema.OrderBook)
			if !ok {
				return nil
			}
			bid, haveBid := current.BestBid()
			ask, haveAsk := current.BestAsk()
			if !haveBid || !haveAsk {
				ctx.Warnf("one-sided book on %s", marketID)
				return nil
			}
			spread := ask.Price.Sub(bid.Price)
			mid := ask.Price.Add(bid.Price).Div(decimal.NewFromInt(2))
			bps := spread.Div(mid).Mul(decimal.NewFromInt(10000))
			ctx.Infof("%s spread %s (%s bps)", marketID, spread.String(), numeric.RoundTo(bps, 2).String())

			if funds, ok := balance(results).(schema.Balance); ok {
				quote := funds.Get(market.Quote)
				if quote.Free.IsZero() {
					ctx.Warnf("no free quote balance on %s", marketID)
				}
			}
			return nil
		})
	}
}
