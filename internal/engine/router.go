package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/observability"
	"github.com/cr0sh/grasshopper/internal/schema"
)

// Soft WARN thresholds for one user-callback invocation.
var (
	warnCooperativeMs = decimal.NewFromInt(50)
	warnWallMs        = decimal.NewFromInt(1500)
)

// Results maps subscription identifiers to their last parsed values.
type Results map[int]any

// Extractor returns the last parsed value for one subscription given the
// strategy's results table.
type Extractor func(Results) any

// ParseFunc converts a raw response payload into a canonical value. Parse
// failures are reported and the payload is dropped.
type ParseFunc func(payload *schema.ResponsePayload) (any, error)

// Callback is the strategy's main-loop body, invoked once per meaningful
// change after every subscription has been primed.
type Callback func(results Results, changed Extractor) error

type subscription struct {
	fingerprint schema.Fingerprint
	id          int
	parse       ParseFunc
	extractor   Extractor
}

// Router deduplicates, parses, and dispatches fetcher responses to the
// strategy's callback, only when observable state changes.
type Router struct {
	ctx     *Ctx
	subs    map[schema.Fingerprint]*subscription
	results Results
	recent  map[schema.Fingerprint]*schema.ResponsePayload
	nextID  int
	warm    bool
}

func newRouter(ctx *Ctx) *Router {
	return &Router{
		ctx:     ctx,
		subs:    make(map[schema.Fingerprint]*subscription),
		results: make(Results),
		recent:  make(map[schema.Fingerprint]*schema.ResponsePayload),
		nextID:  0,
		warm:    false,
	}
}

// Register subscribes the strategy to periodic polls of req and installs the
// parse callback for its responses. Registering the same fingerprint twice
// returns the original extractor.
func (r *Router) Register(req schema.RequestPayload, period time.Duration, parse ParseFunc) (Extractor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if parse == nil {
		return nil, errs.New("router/register", errs.CodeInvalid,
			errs.WithStrategy(r.ctx.name),
			errs.WithMessage("parse callback required"))
	}
	fp := schema.FingerprintOf(req)
	if sub, ok := r.subs[fp]; ok {
		return sub.extractor, nil
	}

	r.nextID++
	id := r.nextID
	extractor := func(results Results) any { return results[id] }
	r.subs[fp] = &subscription{
		fingerprint: fp,
		id:          id,
		parse:       parse,
		extractor:   extractor,
	}

	if err := r.ctx.host.Subscribe(req, period); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", fp, err)
	}
	return extractor, nil
}

// ResultsSnapshot exposes the live results table for extractor evaluation
// outside the main-loop callback. Callers must treat it as read-only.
func (r *Router) ResultsSnapshot() Results {
	return r.results
}

// Identifier returns the identifier assigned to a registered fingerprint,
// or false when the fingerprint is unknown.
func (r *Router) Identifier(fp schema.Fingerprint) (int, bool) {
	sub, ok := r.subs[fp]
	if !ok {
		return 0, false
	}
	return sub.id, true
}

// DeliverFetcherPayload buffers a polled response whose fingerprint is
// registered here. The executor calls it from the strategy's context; at
// most one payload is held per subscription, newest wins.
func (r *Router) DeliverFetcherPayload(payload *schema.ResponsePayload) {
	if payload == nil {
		return
	}
	fp := schema.FingerprintOfResponse(payload)
	if _, ok := r.subs[fp]; !ok {
		return
	}
	r.recent[fp] = payload
}

// On runs the strategy's main loop: it dispatches cb exactly once per
// meaningful change, after every registered subscription has produced at
// least one parsed value. The loop ends normally when cb returns the Exit
// sentinel; other callback failures are logged and the loop continues.
func (r *Router) On(cb Callback) error {
	if cb == nil {
		return errs.New("router/on", errs.CodeInvalid,
			errs.WithStrategy(r.ctx.name),
			errs.WithMessage("callback required"))
	}
	for {
		changed := r.nextChange()
		if !r.warm {
			if !r.allPrimed() {
				continue
			}
			r.warm = true
		}
		if done := r.invoke(cb, changed); done {
			return nil
		}
	}
}

// nextChange blocks until a registered subscription produces a parsed value
// that differs from the stored one, updates the results table, and returns
// the extractor of the subscription that changed.
func (r *Router) nextChange() Extractor {
	for {
		payload := r.takeRecent()
		if payload == nil {
			resumed := r.ctx.Yield(r.fetcherWant())
			payload, _ = resumed.(*schema.ResponsePayload)
			if payload == nil {
				continue
			}
		}
		fp := schema.FingerprintOfResponse(payload)
		delete(r.recent, fp)
		sub, ok := r.subs[fp]
		if !ok {
			continue
		}

		parsed, err := safeParse(sub.parse, payload)
		if err != nil {
			observability.Log().Error("cannot parse subscription payload",
				observability.F("strategy", r.ctx.name),
				observability.F("fingerprint", fp.String()),
				observability.F("error", err.Error()))
			continue
		}
		if prev, seen := r.results[sub.id]; seen && schema.EqualValues(prev, parsed) {
			continue
		}
		r.results[sub.id] = parsed
		return sub.extractor
	}
}

// takeRecent pops one pending payload from the buffer, in any order.
func (r *Router) takeRecent() *schema.ResponsePayload {
	for fp, payload := range r.recent {
		delete(r.recent, fp)
		return payload
	}
	return nil
}

func (r *Router) fetcherWant() Want {
	return func(ev *schema.Event) (any, bool) {
		if ev.Kind != schema.EventFetcher || ev.Payload == nil {
			return nil, false
		}
		if _, ok := r.subs[schema.FingerprintOfResponse(ev.Payload)]; !ok {
			return nil, false
		}
		return ev.Payload, true
	}
}

func (r *Router) allPrimed() bool {
	for _, sub := range r.subs {
		if _, ok := r.results[sub.id]; !ok {
			return false
		}
	}
	return true
}

// invoke runs one timed user-callback invocation. It reports true when the
// callback requested a normal loop exit.
func (r *Router) invoke(cb Callback, changed Extractor) bool {
	tm := r.ctx.Timer()
	tm.Start()
	err := safeInvoke(cb, r.results, changed)
	cooperative, wall, stopErr := tm.Stop()
	if stopErr == nil {
		if cooperative.GreaterThan(warnCooperativeMs) {
			r.ctx.Warnf("slow callback: %s ms elapsed", cooperative.String())
		}
		if wall.GreaterThan(warnWallMs) {
			r.ctx.Warnf("slow callback: %s ms wall elapsed", wall.String())
		}
		r.ctx.host.ReportTimings(r.ctx.name, cooperative, wall)
	}

	if err == nil {
		return false
	}
	if errors.Is(err, errs.ErrExit) {
		return true
	}
	observability.Telemetry().IncErrorLogs(r.ctx.name)
	observability.Log().Error("strategy callback failed",
		observability.F("strategy", r.ctx.name),
		observability.F("error", err.Error()))
	return false
}

func safeParse(parse ParseFunc, payload *schema.ResponsePayload) (parsed any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New("router/parse", errs.CodeParse,
				errs.WithMessage(fmt.Sprintf("parse callback panicked: %v", r)))
		}
	}()
	return parse(payload)
}

func safeInvoke(cb Callback, results Results, changed Extractor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if sentinel, ok := r.(error); ok && errors.Is(sentinel, errs.ErrExit) {
				err = sentinel
				return
			}
			err = errs.New("router/callback", errs.CodeRuntime,
				errs.WithMessage(fmt.Sprintf("callback panicked: %v", r)))
		}
	}()
	return cb(results, changed)
}
