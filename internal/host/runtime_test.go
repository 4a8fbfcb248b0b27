package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cr0sh/grasshopper/internal/schema"
)

type staticLister struct {
	names []string
}

func (l staticLister) Names() []string { return l.names }

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := NewRuntime(Config{
		HTTPTimeout: time.Second,
		LocalAddrs:  nil,
		QueueSize:   16,
		HostRPS:     1000,
		HostBurst:   1000,
		Credentials: map[string]Credentials{"": {APIKey: "key", APISecret: "secret"}},
	}, staticLister{names: []string{"alpha"}})
	t.Cleanup(rt.Close)
	return rt
}

func getReq(url string) schema.RequestPayload {
	return schema.RequestPayload{
		URL:         url,
		Method:      schema.MethodGet,
		Body:        "",
		Headers:     nil,
		Sign:        "",
		EnvSuffix:   "",
		PrimaryOnly: false,
	}
}

func TestSubscribeDeliversFetcherEvents(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"n":1}`))
	}))
	defer server.Close()

	rt := newTestRuntime(t)
	require.NoError(t, rt.Subscribe(getReq(server.URL), 10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.EventFetcher, ev.Kind)
	require.Equal(t, server.URL, ev.Payload.URL)
	require.Equal(t, uint16(200), ev.Payload.Status)
	require.Equal(t, `{"n":1}`, ev.Payload.Content)
	require.False(t, ev.Payload.Error)
	require.Positive(t, hits.Load())
}

func TestSubscribeIsIdempotentPerPollIdentity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	rt := newTestRuntime(t)
	require.NoError(t, rt.Subscribe(getReq(server.URL), 50*time.Millisecond))
	require.NoError(t, rt.Subscribe(getReq(server.URL), 5*time.Millisecond))

	rt.mu.Lock()
	count := len(rt.fetchers)
	rt.mu.Unlock()
	require.Equal(t, 1, count)
}

func TestMailboxKeepsNewestPayload(t *testing.T) {
	var counter atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte{byte('a' + counter.Add(1)%26)})
	}))
	defer server.Close()

	rt := newTestRuntime(t)
	require.NoError(t, rt.Subscribe(getReq(server.URL), 5*time.Millisecond))

	// Let several polls land before consuming anything.
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.EventFetcher, ev.Kind)
	require.Len(t, ev.Payload.Content, 1, "mailbox must hold a single newest payload")
}

func TestSendRoundTripAndTokenCorrelation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":1}`))
	}))
	defer server.Close()

	rt := newTestRuntime(t)
	req := getReq(server.URL)
	req.Method = schema.MethodPost
	token, err := rt.Send(req)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.EventSendResponse, ev.Kind)
	require.Equal(t, token, ev.Token)
	require.Equal(t, uint16(201), ev.Payload.Status)
	require.False(t, ev.Payload.Error)
}

func TestSendSurfacesHTTPFailureAsErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	rt := newTestRuntime(t)
	req := getReq(server.URL)
	req.Method = schema.MethodPost
	_, err := rt.Send(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.True(t, ev.Payload.Error)
	require.Equal(t, uint16(500), ev.Payload.Status)
}

func TestSendSurfacesNetworkFailureAsErrorPayload(t *testing.T) {
	rt := newTestRuntime(t)
	req := getReq("http://127.0.0.1:1/unreachable")
	req.Method = schema.MethodPost
	_, err := rt.Send(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.EventSendResponse, ev.Kind)
	require.True(t, ev.Payload.Error)
	require.Equal(t, uint16(0), ev.Payload.Status)
}

func TestInjectedSignalWinsOverFetcherReadiness(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	rt := newTestRuntime(t)
	require.NoError(t, rt.Subscribe(getReq(server.URL), 5*time.Millisecond))
	time.Sleep(50 * time.Millisecond)

	rt.Inject(&schema.Event{Kind: schema.EventSignal, Payload: schema.NewTerminator(), Token: ""})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, schema.EventSignal, ev.Kind)
	require.True(t, ev.Payload.Terminate)
}

func TestSignedRequestsPassThroughRegisteredSigner(t *testing.T) {
	RegisterSigner("testvenue", func(req schema.RequestPayload, creds Credentials) (schema.RequestPayload, error) {
		signed := req
		signed.Headers = map[string]string{"X-Test-Key": creds.APIKey}
		return signed, nil
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("X-Test-Key"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	rt := newTestRuntime(t)
	req := getReq(server.URL)
	req.Sign = "testvenue"
	_, err := rt.Send(req)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.False(t, ev.Payload.Error)
}

func TestSendWithUnknownSignerFails(t *testing.T) {
	rt := newTestRuntime(t)
	req := getReq("https://api.example.com/x")
	req.Sign = "missing"
	_, err := rt.Send(req)
	require.NoError(t, err, "signing happens at execute time")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := rt.NextEvent(ctx)
	require.NoError(t, err)
	require.True(t, ev.Payload.Error, "unsignable request must surface as a failed payload")
}

func TestListStrategiesAndClock(t *testing.T) {
	rt := newTestRuntime(t)
	require.Equal(t, []string{"alpha"}, rt.ListStrategies())

	before := rt.Millis()
	time.Sleep(5 * time.Millisecond)
	after := rt.Millis()
	require.True(t, after.GreaterThan(before))
	require.False(t, before.IsNegative())
}
