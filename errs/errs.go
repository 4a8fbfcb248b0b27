// Package errs provides structured error types and control sentinels for the
// grasshopper runtime.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a runtime error category.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeParse indicates an adapter payload parse failure.
	CodeParse Code = "parse_failure"
	// CodeTransport indicates an HTTP transport failure.
	CodeTransport Code = "transport"
	// CodeState indicates an illegal component state transition.
	CodeState Code = "illegal_state"
	// CodeStartup indicates a strategy failed during its first resume.
	CodeStartup Code = "startup"
	// CodeRuntime captures uncategorized dispatch failures.
	CodeRuntime Code = "runtime"
)

// Interrupt is the distinguished value returned by the executor event loop
// when a signal breaks it.
type Interrupt string

const (
	// InterruptNone reports that the loop exited without a signal.
	InterruptNone Interrupt = ""
	// InterruptTerminate reports a terminate signal.
	InterruptTerminate Interrupt = "terminate"
	// InterruptRestart reports a restart signal.
	InterruptRestart Interrupt = "restart"
)

var (
	// ErrTerminate is the interrupt sentinel raised when a terminate signal
	// reaches the event loop.
	ErrTerminate = errors.New("interrupt: terminate")
	// ErrRestart is the interrupt sentinel raised when a restart signal
	// reaches the event loop.
	ErrRestart = errors.New("interrupt: restart")
	// ErrNetwork marks a transient host-side network failure; the executor
	// absorbs it and keeps running.
	ErrNetwork = errors.New("network error")
	// ErrExit unwinds a strategy's router loop without reporting a failure.
	ErrExit = errors.New("router exit")
	// ErrWantsNothing reports a resume attempt on a task that registered no
	// want predicate.
	ErrWantsNothing = errors.New("coroutine wants nothing")
)

// InterruptFor maps an interrupt sentinel to its loop return value.
// Non-interrupt errors map to InterruptNone.
func InterruptFor(err error) Interrupt {
	switch {
	case errors.Is(err, ErrTerminate):
		return InterruptTerminate
	case errors.Is(err, ErrRestart):
		return InterruptRestart
	default:
		return InterruptNone
	}
}

// E captures structured error information produced across the runtime.
type E struct {
	Op       string
	Code     Code
	Strategy string
	Message  string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and error code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{
		Op:       strings.TrimSpace(op),
		Code:     code,
		Strategy: "",
		Message:  "",
		cause:    nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithStrategy records the strategy the failure occurred in.
func WithStrategy(name string) Option {
	trimmed := strings.TrimSpace(name)
	return func(e *E) {
		e.Strategy = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	op := strings.TrimSpace(e.Op)
	if op == "" {
		op = "unknown"
	}
	parts = append(parts, "op="+op)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Strategy != "" {
		parts = append(parts, "strategy="+e.Strategy)
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// TransportKind classifies a transport failure surfaced by send().
type TransportKind string

const (
	// TransportTimeout indicates the request deadline elapsed.
	TransportTimeout TransportKind = "timeout"
	// TransportHTTPStatus indicates a non-2xx HTTP response.
	TransportHTTPStatus TransportKind = "http_status"
	// TransportNetwork indicates the request never completed.
	TransportNetwork TransportKind = "network"
	// TransportOther captures unclassified transport failures.
	TransportOther TransportKind = "other"
)

// TransportError reports a send() response that carried error=true.
type TransportError struct {
	Kind    TransportKind
	URL     string
	Status  uint16
	Content string
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport ")
	b.WriteString(string(e.Kind))
	b.WriteString(": url=")
	b.WriteString(strconv.Quote(e.URL))
	if e.Status > 0 {
		b.WriteString(" status=")
		b.WriteString(strconv.Itoa(int(e.Status)))
	}
	if e.Content != "" {
		b.WriteString(" content=")
		b.WriteString(strconv.Quote(e.Content))
	}
	return b.String()
}

// ClassifyStatus derives the transport failure kind from an HTTP status.
// Status 0 means the request never completed.
func ClassifyStatus(status uint16) TransportKind {
	switch {
	case status == 0:
		return TransportNetwork
	case status == 408 || status == 504:
		return TransportTimeout
	case status >= 100:
		return TransportHTTPStatus
	default:
		return TransportOther
	}
}
