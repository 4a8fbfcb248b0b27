package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/engine/store"
	"github.com/cr0sh/grasshopper/internal/observability"
	"github.com/cr0sh/grasshopper/internal/schema"
)

// clearTimeout bounds the shutdown window granted to atexit handlers.
var clearTimeout = 5000 * time.Millisecond

// Resolver maps a strategy name to its entry function.
type Resolver func(name string) (StrategyFunc, bool)

type strategyState struct {
	name string
	ctx  *Ctx
	task *task
}

// Executor is the top-level scheduler: it loads strategies, pumps host
// events, dispatches them to strategy tasks, restarts failed strategies,
// and coordinates shutdown.
type Executor struct {
	host       Host
	store      *store.Store
	resolve    Resolver
	strategies map[string]*strategyState
}

// New builds an executor over the host and strategy resolver.
func New(host Host, st *store.Store, resolve Resolver) *Executor {
	return &Executor{
		host:       host,
		store:      st,
		resolve:    resolve,
		strategies: make(map[string]*strategyState),
	}
}

// Startup loads every strategy the host lists and runs each until its first
// suspension. A failure at that point is fatal.
func (e *Executor) Startup() error {
	for _, name := range e.host.ListStrategies() {
		if err := e.spawn(name); err != nil {
			return errs.New("executor/startup", errs.CodeStartup,
				errs.WithStrategy(name), errs.WithCause(err))
		}
		state, live := e.strategies[name]
		if !live {
			continue
		}
		if state.task.finished() {
			if state.task.err != nil {
				err := state.task.err
				e.finalize(state)
				return errs.New("executor/startup", errs.CodeStartup,
					errs.WithStrategy(name), errs.WithCause(err))
			}
			observability.Log().Info("strategy completed during startup",
				observability.F("strategy", name))
			e.finalize(state)
		}
	}
	return nil
}

// spawn creates a fresh task for the named strategy and runs it until its
// first suspension or completion.
func (e *Executor) spawn(name string) error {
	fn, ok := e.resolve(name)
	if !ok {
		return errs.New("executor/spawn", errs.CodeInvalid,
			errs.WithStrategy(name), errs.WithMessage("strategy not found"))
	}
	e.host.ResetMetrics(name)

	ctx := &Ctx{name: name, host: e.host, task: nil, table: e.store.Table(name)}
	t := newTask(name, func() error { return fn(ctx) })
	ctx.task = t
	e.strategies[name] = &strategyState{name: name, ctx: ctx, task: t}

	t.resumeWith(nil)
	return nil
}

// Run drains the host event stream until a signal interrupt or a fatal
// dispatch error.
func (e *Executor) Run(ctx context.Context) (errs.Interrupt, error) {
	for {
		ev, err := e.host.NextEvent(ctx)
		if err != nil {
			return errs.InterruptNone, fmt.Errorf("next event: %w", err)
		}
		interrupt, err := e.dispatch(ev)
		if interrupt != errs.InterruptNone {
			return interrupt, nil
		}
		if err != nil {
			if errors.Is(err, errs.ErrNetwork) {
				observability.Log().Warn("transient network failure during dispatch",
					observability.F("error", err.Error()))
				continue
			}
			return errs.InterruptNone, err
		}
	}
}

func (e *Executor) dispatch(ev *schema.Event) (errs.Interrupt, error) {
	if ev == nil {
		return errs.InterruptNone, nil
	}
	switch ev.Kind {
	case schema.EventSignal:
		if ev.Payload != nil && ev.Payload.Terminate {
			return errs.InterruptTerminate, nil
		}
		if ev.Payload != nil && ev.Payload.Restart {
			return errs.InterruptRestart, nil
		}
		observability.Log().Warn("signal event carried no interrupt")
		return errs.InterruptNone, nil
	case schema.EventFetcher:
		if ev.Payload != nil && ev.Payload.Error {
			observability.Log().Error("fetcher reported a failed poll",
				observability.F("url", ev.Payload.URL),
				observability.F("status", int(ev.Payload.Status)))
			return errs.InterruptNone, nil
		}
		for _, state := range e.ordered() {
			state.ctx.Router().DeliverFetcherPayload(ev.Payload)
		}
	case schema.EventSendResponse:
	default:
		observability.Log().Warn("unknown event kind",
			observability.F("kind", string(ev.Kind)))
		return errs.InterruptNone, nil
	}

	if err := e.offer(ev); err != nil {
		interrupt := errs.InterruptFor(err)
		if interrupt != errs.InterruptNone {
			return interrupt, nil
		}
		return errs.InterruptNone, err
	}
	e.sweep()
	return errs.InterruptNone, nil
}

// offer invokes each suspended strategy's want on the event, resuming every
// task whose predicate matches. Resumption happens inside the strategy's
// context so strategy-local accessors resolve correctly.
func (e *Executor) offer(ev *schema.Event) error {
	for _, state := range e.ordered() {
		if state.task.finished() {
			continue
		}
		want := state.task.want
		if want == nil {
			return errs.New("executor/offer", errs.CodeRuntime,
				errs.WithStrategy(state.name), errs.WithCause(errs.ErrWantsNothing))
		}
		value, ok := want(ev)
		if !ok {
			continue
		}
		state.task.clearWant()
		state.task.resumeWith(value)
	}
	return nil
}

// sweep collects dead tasks: it runs atexit handlers, clears the strategy's
// local store, and reloads strategies that died with an error.
func (e *Executor) sweep() {
	for _, state := range e.ordered() {
		if !state.task.finished() {
			continue
		}
		err := state.task.err
		e.finalize(state)
		if err == nil || errors.Is(err, errs.ErrExit) {
			observability.Log().Info("strategy completed",
				observability.F("strategy", state.name))
			continue
		}
		observability.Log().Error("strategy failed; reloading",
			observability.F("strategy", state.name),
			observability.F("error", err.Error()))
		if spawnErr := e.spawn(state.name); spawnErr != nil {
			observability.Log().Emergency("cannot reload strategy",
				observability.F("strategy", state.name),
				observability.F("error", spawnErr.Error()))
		}
	}
}

func (e *Executor) finalize(state *strategyState) {
	state.ctx.RunAtexit()
	e.store.Reset(state.name)
	delete(e.strategies, state.name)
}

// ClearStrategies runs every live strategy's atexit handlers concurrently
// and returns once they complete or the shutdown window elapses.
func (e *Executor) ClearStrategies() {
	states := e.ordered()
	if len(states) == 0 {
		return
	}

	var wg conc.WaitGroup
	for _, state := range states {
		wg.Go(state.ctx.RunAtexit)
	}
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		wg.Wait()
	}()

	select {
	case <-finished:
	case <-time.After(clearTimeout):
		observability.Log().Warn("shutdown window elapsed before atexit handlers completed")
	}

	for _, state := range states {
		e.store.Reset(state.name)
		delete(e.strategies, state.name)
	}
}

// Live returns the names of strategies currently loaded, sorted.
func (e *Executor) Live() []string {
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Executor) ordered() []*strategyState {
	states := make([]*strategyState, 0, len(e.strategies))
	for _, name := range e.Live() {
		states = append(states, e.strategies[name])
	}
	return states
}
