package js

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cr0sh/grasshopper/internal/engine"
	"github.com/cr0sh/grasshopper/internal/engine/store"
	"github.com/cr0sh/grasshopper/internal/schema"
)

type scriptHost struct {
	mu     sync.Mutex
	events chan *schema.Event
	subs   []schema.RequestPayload
	sends  []schema.RequestPayload
	names  []string
	start  time.Time
}

func newScriptHost(names ...string) *scriptHost {
	return &scriptHost{
		mu:     sync.Mutex{},
		events: make(chan *schema.Event, 16),
		subs:   nil,
		sends:  nil,
		names:  names,
		start:  time.Now(),
	}
}

func (h *scriptHost) Subscribe(req schema.RequestPayload, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, req)
	return nil
}

func (h *scriptHost) Send(req schema.RequestPayload) (schema.Token, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sends = append(h.sends, req)
	return schema.Token(fmt.Sprintf("tok-%d", len(h.sends))), nil
}

func (h *scriptHost) NextEvent(ctx context.Context) (*schema.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev := <-h.events:
		return ev, nil
	}
}

func (h *scriptHost) ListStrategies() []string { return h.names }

func (h *scriptHost) Millis() decimal.Decimal {
	return decimal.NewFromInt(time.Since(h.start).Milliseconds())
}

func (h *scriptHost) ResetMetrics(string) {}

func (h *scriptHost) ReportTimings(string, decimal.Decimal, decimal.Decimal) {}

func writeScript(t *testing.T, dir, name, source string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(source), 0o600))
}

func fetcherEvent(url, content string) *schema.Event {
	return &schema.Event{
		Kind: schema.EventFetcher,
		Payload: &schema.ResponsePayload{
			URL:       url,
			EnvSuffix: "",
			Status:    200,
			Content:   content,
			Error:     false,
			Restart:   false,
			Terminate: false,
		},
		Token: "",
	}
}

func TestLoaderCompilesAndLists(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "maker.js", `exports.run = function (gh) {};`)
	writeScript(t, dir, "Taker.js", `exports.run = function (gh) {};`)
	writeScript(t, dir, "README.md", `not a script`)

	loader, err := NewLoader(dir)
	require.NoError(t, err)
	require.NoError(t, loader.Refresh())
	require.Equal(t, []string{"maker", "taker"}, loader.Names())

	_, ok := loader.Resolve("MAKER")
	require.True(t, ok)
	_, ok = loader.Resolve("unknown")
	require.False(t, ok)
}

func TestLoaderRejectsBrokenScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken.js", `function (`)

	loader, err := NewLoader(dir)
	require.NoError(t, err)
	require.Error(t, loader.Refresh())
}

func TestScriptStrategyRunsThroughRouter(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "counter.js", `
var seen = [];
exports.run = function (gh) {
  var book = gh.register({ url: "https://x.test/book", method: "get" }, 1000, function (payload) {
    return JSON.parse(payload.content);
  });
  gh.on(function (changed) {
    seen.push(changed.n);
    gh.info("tick " + changed.n);
    if (seen.length >= 2) {
      return gh.exit();
    }
  });
  if (seen.length !== 2 || seen[0] !== 1 || seen[1] !== 2) {
    throw new Error("unexpected sequence: " + JSON.stringify(seen));
  }
  if (book().n !== 2) {
    throw new Error("extractor out of sync: " + JSON.stringify(book()));
  }
};
`)

	loader, err := NewLoader(dir)
	require.NoError(t, err)
	require.NoError(t, loader.Refresh())

	host := newScriptHost("counter")
	exec := engine.New(host, store.New(), loader.Resolve)
	require.NoError(t, exec.Startup())
	require.Len(t, host.subs, 1)
	require.Equal(t, "https://x.test/book", host.subs[0].URL)

	host.events <- fetcherEvent("https://x.test/book", `{"n":1}`)
	host.events <- fetcherEvent("https://x.test/book", `{"n":1}`)
	host.events <- fetcherEvent("https://x.test/book", `{"n":2}`)
	host.events <- &schema.Event{Kind: schema.EventSignal, Payload: schema.NewTerminator(), Token: ""}

	_, err = exec.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, exec.Live(), "script must complete cleanly after gh.exit()")
}

func TestScriptCallbackThrowIsTrapped(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "flaky.js", `
exports.run = function (gh) {
  gh.register({ url: "https://x.test/a", method: "get" }, 1000, function (payload) {
    return payload.content;
  });
  gh.atexit(function () { gh.warn("cleaning up"); });
  gh.on(function (changed) {
    throw new Error("boom");
  });
};
`)

	loader, err := NewLoader(dir)
	require.NoError(t, err)
	require.NoError(t, loader.Refresh())

	host := newScriptHost("flaky")
	exec := engine.New(host, store.New(), loader.Resolve)
	require.NoError(t, exec.Startup())

	// The callback throw is trapped by the router, so the strategy stays
	// alive and keeps its subscription.
	host.events <- fetcherEvent("https://x.test/a", "1")
	host.events <- &schema.Event{Kind: schema.EventSignal, Payload: schema.NewTerminator(), Token: ""}
	_, err = exec.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"flaky"}, exec.Live())
}
