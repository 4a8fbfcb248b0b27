package host

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/cr0sh/grasshopper/internal/observability"
	"github.com/cr0sh/grasshopper/internal/schema"
)

const fetchAttempts = 3

// pollKey identifies one poller. Two subscriptions sharing URL, method,
// body, and environment suffix share a poller.
type pollKey struct {
	url       string
	method    schema.Method
	body      string
	envSuffix string
}

func pollKeyOf(req schema.RequestPayload) pollKey {
	return pollKey{
		url:       req.URL,
		method:    req.Method,
		body:      req.Body,
		envSuffix: req.EnvSuffix,
	}
}

// fetcher polls one endpoint on a fixed period. Results land in a
// single-slot mailbox so a slow consumer only ever observes the newest
// payload; readiness is announced once per fill.
type fetcher struct {
	req     schema.RequestPayload
	period  time.Duration
	runtime *Runtime
	clients []*http.Client
	cancel  context.CancelFunc

	mu     sync.Mutex
	latest *schema.ResponsePayload
	queued bool
}

func newFetcher(rt *Runtime, req schema.RequestPayload, period time.Duration) *fetcher {
	clients := rt.clients
	if req.PrimaryOnly || len(clients) == 0 {
		clients = []*http.Client{rt.primaryClient}
	}
	ctx, cancel := context.WithCancel(rt.ctx)
	f := &fetcher{
		req:     req,
		period:  period,
		runtime: rt,
		clients: clients,
		cancel:  cancel,
		mu:      sync.Mutex{},
		latest:  nil,
		queued:  false,
	}
	go f.run(ctx)
	return f
}

func (f *fetcher) run(ctx context.Context) {
	ticker := time.NewTicker(f.period)
	defer ticker.Stop()
	rotation := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		client := f.clients[rotation%len(f.clients)]
		rotation++
		f.poll(ctx, client)
	}
}

func (f *fetcher) poll(ctx context.Context, client *http.Client) {
	if err := f.runtime.limiterFor(f.req.URL).Wait(ctx); err != nil {
		return
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 100 * time.Millisecond
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		payload, err := f.runtime.execute(ctx, client, f.req)
		if err == nil {
			if payload.Error {
				observability.Log().Error("request failed",
					observability.F("url", f.req.URL),
					observability.F("method", string(f.req.Method)),
					observability.F("status", int(payload.Status)))
			}
			f.publish(payload)
			return
		}
		if ctx.Err() != nil {
			return
		}
		observability.Log().Error("cannot send request",
			observability.F("url", f.req.URL),
			observability.F("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoffCfg.NextBackOff()):
		}
	}
}

// publish replaces the mailbox contents and announces readiness unless an
// unconsumed payload is already announced.
func (f *fetcher) publish(payload *schema.ResponsePayload) {
	f.mu.Lock()
	f.latest = payload
	announce := !f.queued
	f.queued = true
	f.mu.Unlock()
	if announce {
		select {
		case f.runtime.ready <- f:
		case <-f.runtime.ctx.Done():
		}
	}
}

// take consumes the mailbox.
func (f *fetcher) take() *schema.ResponsePayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload := f.latest
	f.latest = nil
	f.queued = false
	return payload
}

func (f *fetcher) stop() {
	f.cancel()
}

// readBody drains a response body, tolerating missing bodies.
func readBody(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()
	var b strings.Builder
	if _, err := io.Copy(&b, resp.Body); err != nil {
		return b.String()
	}
	return b.String()
}
