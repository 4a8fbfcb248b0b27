package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesStrategyAndCause(t *testing.T) {
	err := New(
		"router/deliver",
		CodeParse,
		WithStrategy("maker-btc"),
		WithMessage("orderbook payload truncated"),
		WithCause(errors.New("unexpected end of JSON input")),
	)

	out := err.Error()
	if !strings.Contains(out, "op=router/deliver") {
		t.Fatalf("expected op marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=parse_failure") {
		t.Fatalf("expected code in error string: %s", out)
	}
	if !strings.Contains(out, "strategy=maker-btc") {
		t.Fatalf("expected strategy in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"unexpected end of JSON input\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := New("executor/dispatch", CodeRuntime, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to resolve the cause")
	}
}

func TestInterruptForMapsSentinels(t *testing.T) {
	if got := InterruptFor(ErrTerminate); got != InterruptTerminate {
		t.Fatalf("terminate sentinel mapped to %q", got)
	}
	if got := InterruptFor(fmt.Errorf("dispatch: %w", ErrRestart)); got != InterruptRestart {
		t.Fatalf("wrapped restart sentinel mapped to %q", got)
	}
	if got := InterruptFor(errors.New("boom")); got != InterruptNone {
		t.Fatalf("unrelated error mapped to %q", got)
	}
}

func TestTransportErrorFormatting(t *testing.T) {
	err := &TransportError{
		Kind:    TransportHTTPStatus,
		URL:     "https://api.example.com/order",
		Status:  500,
		Content: "boom",
	}
	out := err.Error()
	if !strings.Contains(out, "transport http_status") {
		t.Fatalf("expected kind in error string: %s", out)
	}
	if !strings.Contains(out, "status=500") {
		t.Fatalf("expected status in error string: %s", out)
	}
	if !strings.Contains(out, "content=\"boom\"") {
		t.Fatalf("expected content in error string: %s", out)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[uint16]TransportKind{
		0:   TransportNetwork,
		408: TransportTimeout,
		504: TransportTimeout,
		200: TransportHTTPStatus,
		500: TransportHTTPStatus,
		42:  TransportOther,
	}
	for status, want := range cases {
		if got := ClassifyStatus(status); got != want {
			t.Fatalf("status %d classified as %q, want %q", status, got, want)
		}
	}
}
