// Package engine implements the strategy execution and event-routing core:
// cooperative strategy tasks, the per-strategy router, the suspension
// protocol, and the top-level executor.
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/internal/schema"
)

// Host is the platform capability surface the engine consumes. The
// production implementation lives in internal/host; tests provide fakes.
type Host interface {
	// Subscribe requests periodic polling of the given request.
	Subscribe(req schema.RequestPayload, period time.Duration) error
	// Send fires an on-demand HTTP request; the response arrives later as a
	// send-response event carrying the returned token.
	Send(req schema.RequestPayload) (schema.Token, error)
	// NextEvent blocks until the host produces the next event.
	NextEvent(ctx context.Context) (*schema.Event, error)
	// ListStrategies enumerates the strategies available to load.
	ListStrategies() []string
	// Millis returns the monotonic clock reading in milliseconds.
	Millis() decimal.Decimal
	// ResetMetrics clears per-strategy metric series before a (re)load.
	ResetMetrics(strategy string)
	// ReportTimings records one user-callback invocation's elapsed times.
	ReportTimings(strategy string, cooperative, wall decimal.Decimal)
}

// StrategyFunc is a strategy's entry function. It runs inside the
// strategy's cooperative task and may suspend through the ctx.
type StrategyFunc func(ctx *Ctx) error

// Want decides whether an event should resume a suspended strategy,
// returning the resume value when it matches.
type Want func(ev *schema.Event) (any, bool)
