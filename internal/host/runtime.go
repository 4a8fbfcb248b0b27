// Package host provides the production platform implementation consumed by
// the engine: the polling fabric, the on-demand send transport, signal
// handling, the millisecond clock, and metric sinks.
package host

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/observability"
	"github.com/cr0sh/grasshopper/internal/schema"
)

const (
	defaultHTTPTimeout = 2 * time.Second
	defaultQueueSize   = 256
	defaultHostRPS     = 20
	defaultHostBurst   = 10
)

// Lister enumerates the strategies available to load.
type Lister interface {
	Names() []string
}

// Config tunes the host runtime.
type Config struct {
	// HTTPTimeout bounds every outgoing request.
	HTTPTimeout time.Duration
	// LocalAddrs optionally rotates polls across local bind addresses.
	LocalAddrs []string
	// QueueSize sizes the signal/send-response event queue.
	QueueSize int
	// HostRPS limits requests per second per remote host.
	HostRPS float64
	// HostBurst is the limiter burst size per remote host.
	HostBurst int
	// Credentials maps environment suffixes to API credentials.
	Credentials map[string]Credentials
}

func (c Config) normalize() Config {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.HostRPS <= 0 {
		c.HostRPS = defaultHostRPS
	}
	if c.HostBurst <= 0 {
		c.HostBurst = defaultHostBurst
	}
	if c.Credentials == nil {
		c.Credentials = make(map[string]Credentials)
	}
	return c
}

// Runtime implements the engine's Host interface over real HTTP transport.
type Runtime struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	lister Lister
	start  time.Time

	queue chan *schema.Event
	ready chan *fetcher

	primaryClient *http.Client
	clients       []*http.Client

	mu       sync.Mutex
	fetchers map[pollKey]*fetcher
	limiters map[string]*rate.Limiter
}

// NewRuntime builds a host runtime. Callers must Close it to stop pollers.
func NewRuntime(cfg Config, lister Lister) *Runtime {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		cfg:           cfg,
		ctx:           ctx,
		cancel:        cancel,
		lister:        lister,
		start:         time.Now(),
		queue:         make(chan *schema.Event, cfg.QueueSize),
		ready:         make(chan *fetcher, cfg.QueueSize),
		primaryClient: newClient(cfg.HTTPTimeout, ""),
		clients:       nil,
		mu:            sync.Mutex{},
		fetchers:      make(map[pollKey]*fetcher),
		limiters:      make(map[string]*rate.Limiter),
	}
	for _, addr := range cfg.LocalAddrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		rt.clients = append(rt.clients, newClient(cfg.HTTPTimeout, addr))
	}
	return rt
}

func newClient(timeout time.Duration, localAddr string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if localAddr != "" {
		dialer := &net.Dialer{
			LocalAddr: &net.TCPAddr{IP: net.ParseIP(localAddr), Port: 0, Zone: ""},
			Timeout:   timeout,
		}
		transport.DialContext = dialer.DialContext
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// InstallSignalHandler converts SIGTERM/SIGINT into a terminate signal
// event on the host stream.
func (rt *Runtime) InstallSignalHandler() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case sig := <-signals:
			observability.Log().Info("received OS signal",
				observability.F("signal", sig.String()))
			rt.Inject(&schema.Event{Kind: schema.EventSignal, Payload: schema.NewTerminator(), Token: ""})
		case <-rt.ctx.Done():
		}
	}()
}

// Inject places an event on the host stream. Restart requests and tests use
// it to feed signals.
func (rt *Runtime) Inject(ev *schema.Event) {
	select {
	case rt.queue <- ev:
	case <-rt.ctx.Done():
	}
}

// Subscribe requests periodic polling of req. Subscriptions sharing a poll
// identity share one poller; later periods are ignored.
func (rt *Runtime) Subscribe(req schema.RequestPayload, period time.Duration) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if period <= 0 {
		return errs.New("host/subscribe", errs.CodeInvalid,
			errs.WithMessage("poll period must be positive"))
	}
	key := pollKeyOf(req)
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.fetchers[key]; ok {
		return nil
	}
	observability.Log().Info("new subscription created",
		observability.F("url", req.URL),
		observability.F("env_suffix", req.EnvSuffix),
		observability.F("period_ms", period.Milliseconds()))
	rt.fetchers[key] = newFetcher(rt, req, period)
	return nil
}

// Send fires an on-demand request and returns the correlation token. The
// response arrives later on the event stream; transport failures surface as
// a payload with error set.
func (rt *Runtime) Send(req schema.RequestPayload) (schema.Token, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	token := schema.Token(uuid.NewString())
	go func() {
		payload, err := rt.execute(rt.ctx, rt.primaryClient, req)
		if err != nil {
			observability.Log().Error("cannot send request",
				observability.F("url", req.URL),
				observability.F("error", err.Error()))
			payload = schema.NewTransportFailure(req.URL, req.EnvSuffix)
		}
		rt.Inject(&schema.Event{Kind: schema.EventSendResponse, Payload: payload, Token: token})
	}()
	return token, nil
}

// execute issues one HTTP request and converts the outcome into a response
// payload. Error is set on non-2xx statuses; transport failures return an
// error instead.
func (rt *Runtime) execute(ctx context.Context, client *http.Client, req schema.RequestPayload) (*schema.ResponsePayload, error) {
	signed, err := sign(req, rt.cfg.Credentials)
	if err != nil {
		return nil, err
	}
	method, err := signed.Method.Canonical()
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if signed.Body != "" {
		body = strings.NewReader(signed.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, signed.URL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range signed.Headers {
		httpReq.Header.Set(k, v)
	}
	if signed.Body == "" && method != http.MethodGet {
		httpReq.ContentLength = 0
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	content := readBody(resp)
	status := uint16(resp.StatusCode)
	return &schema.ResponsePayload{
		URL:       req.URL,
		EnvSuffix: req.EnvSuffix,
		Status:    status,
		Content:   content,
		Error:     resp.StatusCode < 200 || resp.StatusCode > 299,
		Restart:   false,
		Terminate: false,
	}, nil
}

// NextEvent blocks until the host produces the next event. Queued signals
// and send responses win over fetcher readiness.
func (rt *Runtime) NextEvent(ctx context.Context) (*schema.Event, error) {
	select {
	case ev := <-rt.queue:
		return ev, nil
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-rt.ctx.Done():
		return nil, rt.ctx.Err()
	case ev := <-rt.queue:
		return ev, nil
	case f := <-rt.ready:
		payload := f.take()
		if payload == nil {
			return rt.NextEvent(ctx)
		}
		return &schema.Event{Kind: schema.EventFetcher, Payload: payload, Token: ""}, nil
	}
}

// ListStrategies implements the engine host interface.
func (rt *Runtime) ListStrategies() []string {
	if rt.lister == nil {
		return nil
	}
	return rt.lister.Names()
}

// Millis returns elapsed milliseconds since the runtime started, with
// microsecond resolution.
func (rt *Runtime) Millis() decimal.Decimal {
	return decimal.New(time.Since(rt.start).Microseconds(), -3)
}

// ResetMetrics implements the engine host interface.
func (rt *Runtime) ResetMetrics(strategy string) {
	observability.Telemetry().ResetStrategy(strategy)
}

// ReportTimings implements the engine host interface.
func (rt *Runtime) ReportTimings(strategy string, cooperative, wall decimal.Decimal) {
	observability.Telemetry().ObserveTimings(strategy, cooperative.InexactFloat64(), wall.InexactFloat64())
}

func (rt *Runtime) limiterFor(rawURL string) *rate.Limiter {
	hostName := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Host != "" {
		hostName = parsed.Host
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	limiter, ok := rt.limiters[hostName]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(rt.cfg.HostRPS), rt.cfg.HostBurst)
		rt.limiters[hostName] = limiter
	}
	return limiter
}

// Close stops every poller and releases the event stream.
func (rt *Runtime) Close() {
	rt.cancel()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, f := range rt.fetchers {
		f.stop()
	}
	rt.fetchers = make(map[pollKey]*fetcher)
}
