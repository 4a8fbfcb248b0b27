package js

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/engine"
	"github.com/cr0sh/grasshopper/internal/schema"
)

// strategyFunc adapts a compiled module into the engine's strategy entry.
// The module must export run(gh); gh exposes the engine surface in the same
// cooperative discipline native strategies use.
func strategyFunc(module *Module) engine.StrategyFunc {
	return func(ctx *engine.Ctx) error {
		rt := goja.New()
		rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

		exports, err := runModule(rt, module.Program, ctx)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", module.Name, err)
		}
		runFn, ok := goja.AssertFunction(exports.Get("run"))
		if !ok {
			return errs.New("js/run", errs.CodeInvalid,
				errs.WithStrategy(module.Name),
				errs.WithMessage("module must export run(gh)"))
		}

		binding := &ghBinding{rt: rt, ctx: ctx, exitSentinel: rt.NewObject()}
		if _, err := runFn(goja.Undefined(), binding.object()); err != nil {
			return fmt.Errorf("strategy %s: %w", module.Name, err)
		}
		return nil
	}
}

func runModule(rt *goja.Runtime, program *goja.Program, ctx *engine.Ctx) (*goja.Object, error) {
	module := rt.NewObject()
	exports := rt.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("module", module); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}
	if err := rt.Set("console", buildConsole(rt, ctx)); err != nil {
		return nil, fmt.Errorf("module init: %w", err)
	}

	if _, err := rt.RunProgram(program); err != nil {
		return nil, fmt.Errorf("module run: %w", err)
	}

	value := module.Get("exports")
	object := value.ToObject(rt)
	if object == nil {
		return nil, fmt.Errorf("module exports must be an object")
	}
	return object, nil
}

func buildConsole(rt *goja.Runtime, ctx *engine.Ctx) *goja.Object {
	console := rt.NewObject()
	logTo := func(sink func(string, ...any)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			sink("%s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logTo(ctx.Infof))
	_ = console.Set("info", logTo(ctx.Infof))
	_ = console.Set("warn", logTo(ctx.Warnf))
	_ = console.Set("error", logTo(ctx.Errorf))
	return console
}

// ghBinding builds the gh object handed to run().
type ghBinding struct {
	rt           *goja.Runtime
	ctx          *engine.Ctx
	exitSentinel *goja.Object
}

func (b *ghBinding) object() *goja.Object {
	gh := b.rt.NewObject()
	_ = gh.Set("register", b.register)
	_ = gh.Set("on", b.on)
	_ = gh.Set("send", b.send)
	_ = gh.Set("exit", func(goja.FunctionCall) goja.Value { return b.exitSentinel })
	_ = gh.Set("atexit", b.atexit)
	_ = gh.Set("remove_atexit", b.removeAtexit)
	_ = gh.Set("millis", func(goja.FunctionCall) goja.Value {
		return b.rt.ToValue(b.ctx.Host().Millis().InexactFloat64())
	})
	_ = gh.Set("trace", b.logTo(b.ctx.Tracef))
	_ = gh.Set("debug", b.logTo(b.ctx.Debugf))
	_ = gh.Set("info", b.logTo(b.ctx.Infof))
	_ = gh.Set("warn", b.logTo(b.ctx.Warnf))
	_ = gh.Set("error", b.logTo(b.ctx.Errorf))
	return gh
}

func (b *ghBinding) logTo(sink func(string, ...any)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) > 0 {
			sink("%s", call.Arguments[0].String())
		}
		return goja.Undefined()
	}
}

func (b *ghBinding) exportRequest(value goja.Value) (schema.RequestPayload, error) {
	var req schema.RequestPayload
	if err := b.rt.ExportTo(value, &req); err != nil {
		return req, fmt.Errorf("request payload: %w", err)
	}
	return req, nil
}

func (b *ghBinding) payloadValue(payload *schema.ResponsePayload) goja.Value {
	return b.rt.ToValue(map[string]any{
		"url":        payload.URL,
		"env_suffix": payload.EnvSuffix,
		"status":     int(payload.Status),
		"content":    payload.Content,
	})
}

// register(request, period_ms, parse) subscribes a poll and returns a
// zero-argument extractor reading the subscription's last parsed value.
func (b *ghBinding) register(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 3 {
		panic(b.rt.NewTypeError("register(request, period_ms, parse) requires three arguments"))
	}
	req, err := b.exportRequest(call.Arguments[0])
	if err != nil {
		panic(b.rt.NewGoError(err))
	}
	periodMs := call.Arguments[1].ToFloat()
	parse, ok := goja.AssertFunction(call.Arguments[2])
	if !ok {
		panic(b.rt.NewTypeError("register: parse must be a function"))
	}

	parseFunc := func(payload *schema.ResponsePayload) (any, error) {
		result, err := parse(goja.Undefined(), b.payloadValue(payload))
		if err != nil {
			return nil, err
		}
		return result.Export(), nil
	}
	extractor, err := b.ctx.Router().Register(req, time.Duration(periodMs*float64(time.Millisecond)), parseFunc)
	if err != nil {
		panic(b.rt.NewGoError(err))
	}

	return b.rt.ToValue(func(goja.FunctionCall) goja.Value {
		results := b.ctx.Router().ResultsSnapshot()
		return b.rt.ToValue(extractor(results))
	})
}

// on(cb) runs the strategy main loop. The callback receives the changed
// subscription's freshly parsed value; returning gh.exit() ends the loop.
func (b *ghBinding) on(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 1 {
		panic(b.rt.NewTypeError("on(cb) requires a callback"))
	}
	cb, ok := goja.AssertFunction(call.Arguments[0])
	if !ok {
		panic(b.rt.NewTypeError("on: cb must be a function"))
	}

	err := b.ctx.Router().On(func(results engine.Results, changed engine.Extractor) error {
		value, err := cb(goja.Undefined(), b.rt.ToValue(changed(results)))
		if err != nil {
			return err
		}
		if value != nil && value.SameAs(b.exitSentinel) {
			return errs.ErrExit
		}
		return nil
	})
	if err != nil {
		panic(b.rt.NewGoError(err))
	}
	return goja.Undefined()
}

// send(request) issues a synchronous-looking request; transport failures
// throw into the calling script.
func (b *ghBinding) send(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 1 {
		panic(b.rt.NewTypeError("send(request) requires a request"))
	}
	req, err := b.exportRequest(call.Arguments[0])
	if err != nil {
		panic(b.rt.NewGoError(err))
	}
	payload, err := b.ctx.Send(req)
	if err != nil {
		panic(b.rt.NewGoError(err))
	}
	return b.payloadValue(payload)
}

func (b *ghBinding) atexit(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 1 {
		panic(b.rt.NewTypeError("atexit(fn) requires a handler"))
	}
	fn, ok := goja.AssertFunction(call.Arguments[0])
	if !ok {
		panic(b.rt.NewTypeError("atexit: fn must be a function"))
	}
	key := b.ctx.Atexit(func() error {
		_, err := fn(goja.Undefined())
		return err
	})
	return b.rt.ToValue(int(key))
}

func (b *ghBinding) removeAtexit(call goja.FunctionCall) goja.Value {
	if len(call.Arguments) < 1 {
		return goja.Undefined()
	}
	b.ctx.RemoveAtexit(engine.AtexitKey(call.Arguments[0].ToInteger()))
	return goja.Undefined()
}
