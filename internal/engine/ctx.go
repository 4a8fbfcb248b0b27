package engine

import (
	"fmt"

	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/engine/store"
	"github.com/cr0sh/grasshopper/internal/engine/timer"
	"github.com/cr0sh/grasshopper/internal/observability"
	"github.com/cr0sh/grasshopper/internal/schema"
)

// Reserved keys under which engine components keep their state in the
// strategy-local table.
type (
	routerKey struct{}
	timerKey  struct{}
	atexitKey struct{}
)

// Ctx is the strategy's view of the engine. The executor threads one Ctx
// into every entry into user code; all strategy-local accessors resolve
// through it, so no global "current strategy" pointer exists.
type Ctx struct {
	name  string
	host  Host
	task  *task
	table *store.Table
}

// Name returns the strategy's unique name.
func (c *Ctx) Name() string { return c.name }

// Host exposes the platform capability surface.
func (c *Ctx) Host() Host { return c.host }

// Local returns the strategy-local key/value table.
func (c *Ctx) Local() *store.Table {
	if c.table == nil {
		panic(errs.New("ctx/local", errs.CodeState,
			errs.WithMessage("no strategy table bound; accessor used outside a strategy task")))
	}
	return c.table
}

// Router returns the strategy's router, creating it on first use.
func (c *Ctx) Router() *Router {
	if v, ok := c.Local().Get(routerKey{}); ok {
		return v.(*Router)
	}
	r := newRouter(c)
	c.Local().Set(routerKey{}, r)
	return r
}

// Timer returns the strategy's stopwatch, creating it on first use.
func (c *Ctx) Timer() *timer.Timer {
	if v, ok := c.Local().Get(timerKey{}); ok {
		return v.(*timer.Timer)
	}
	t := timer.New(c.host.Millis)
	c.Local().Set(timerKey{}, t)
	return t
}

// Yield suspends the strategy until an event satisfies the want predicate.
// Exactly one want may be outstanding per strategy at any time.
func (c *Ctx) Yield(want Want) any {
	return c.task.yield(want)
}

// Exit returns the sentinel that unwinds the strategy's router loop without
// reporting a failure.
func (c *Ctx) Exit() error {
	return errs.ErrExit
}

// Send issues an on-demand request through the host and suspends until the
// matching response arrives. Wall-clock time spent here counts toward the
// router's wall threshold; cooperative time does not.
func (c *Ctx) Send(req schema.RequestPayload) (*schema.ResponsePayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	token, err := c.host.Send(req)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", req.URL, errs.ErrNetwork)
	}

	tm := c.Timer()
	tm.Pause()
	resumed := c.Yield(func(ev *schema.Event) (any, bool) {
		if ev.Kind != schema.EventSendResponse || ev.Token != token {
			return nil, false
		}
		return ev.Payload, true
	})
	tm.Resume()

	payload, ok := resumed.(*schema.ResponsePayload)
	if !ok || payload == nil {
		return nil, errs.New("ctx/send", errs.CodeRuntime,
			errs.WithStrategy(c.name),
			errs.WithMessage("send resumed with a non-payload value"))
	}
	if payload.Error {
		return nil, &errs.TransportError{
			Kind:    errs.ClassifyStatus(payload.Status),
			URL:     req.URL,
			Status:  payload.Status,
			Content: payload.Content,
		}
	}
	return payload, nil
}

// AtexitKey identifies one registered cleanup handler.
type AtexitKey int

type atexitEntry struct {
	key AtexitKey
	fn  func() error
}

type atexitList struct {
	next    AtexitKey
	entries []atexitEntry
}

func (c *Ctx) atexitHandlers() *atexitList {
	if v, ok := c.Local().Get(atexitKey{}); ok {
		return v.(*atexitList)
	}
	l := &atexitList{next: 1, entries: nil}
	c.Local().Set(atexitKey{}, l)
	return l
}

// Atexit registers a cleanup handler to run when the strategy ends, whether
// it completes, fails, or the executor shuts down.
func (c *Ctx) Atexit(fn func() error) AtexitKey {
	l := c.atexitHandlers()
	key := l.next
	l.next++
	l.entries = append(l.entries, atexitEntry{key: key, fn: fn})
	return key
}

// RemoveAtexit drops a previously registered cleanup handler.
func (c *Ctx) RemoveAtexit(key AtexitKey) {
	l := c.atexitHandlers()
	for i, entry := range l.entries {
		if entry.key == key {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

// RunAtexit executes every registered handler in registration order,
// swallowing and logging each handler's failure.
func (c *Ctx) RunAtexit() {
	l := c.atexitHandlers()
	for _, entry := range l.entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					observability.Log().Warn("atexit handler panicked",
						observability.F("strategy", c.name),
						observability.F("key", int(entry.key)),
						observability.F("panic", fmt.Sprint(r)))
				}
			}()
			if err := entry.fn(); err != nil {
				observability.Log().Warn("cannot call atexit handler",
					observability.F("strategy", c.name),
					observability.F("key", int(entry.key)),
					observability.F("error", err.Error()))
			}
		}()
	}
}

// Tracef logs at trace level with the strategy name attached.
func (c *Ctx) Tracef(format string, args ...any) {
	observability.Log().Trace(fmt.Sprintf(format, args...), observability.F("strategy", c.name))
}

// Debugf logs at debug level with the strategy name attached.
func (c *Ctx) Debugf(format string, args ...any) {
	observability.Log().Debug(fmt.Sprintf(format, args...), observability.F("strategy", c.name))
}

// Infof logs at info level with the strategy name attached.
func (c *Ctx) Infof(format string, args ...any) {
	observability.Log().Info(fmt.Sprintf(format, args...), observability.F("strategy", c.name))
}

// Warnf logs at warn level and bumps the strategy's warning counter.
func (c *Ctx) Warnf(format string, args ...any) {
	observability.Telemetry().IncWarningLogs(c.name)
	observability.Log().Warn(fmt.Sprintf(format, args...), observability.F("strategy", c.name))
}

// Errorf logs at error level and bumps the strategy's error counter.
func (c *Ctx) Errorf(format string, args ...any) {
	observability.Telemetry().IncErrorLogs(c.name)
	observability.Log().Error(fmt.Sprintf(format, args...), observability.F("strategy", c.name))
}
