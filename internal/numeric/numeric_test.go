package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundingHelpers(t *testing.T) {
	d := decimal.RequireFromString("1.2345")
	if got := CeilTo(d, 2).String(); got != "1.24" {
		t.Fatalf("CeilTo: %s", got)
	}
	if got := FloorTo(d, 2).String(); got != "1.23" {
		t.Fatalf("FloorTo: %s", got)
	}
	if got := RoundTo(decimal.RequireFromString("1.235"), 2).String(); got != "1.24" {
		t.Fatalf("RoundTo: %s", got)
	}
	neg := decimal.RequireFromString("-1.2345")
	if got := CeilTo(neg, 2).String(); got != "-1.23" {
		t.Fatalf("CeilTo negative: %s", got)
	}
	if got := FloorTo(neg, 2).String(); got != "-1.24" {
		t.Fatalf("FloorTo negative: %s", got)
	}
}

func TestIsZeroString(t *testing.T) {
	for _, s := range []string{"0", "0.0", "0.000", " 0 ", "-0", "0.00e0"} {
		if !IsZeroString(s) {
			t.Fatalf("expected %q to be zero", s)
		}
	}
	for _, s := range []string{"", "abc", "0.0001", "-1", "1e-9"} {
		if IsZeroString(s) {
			t.Fatalf("expected %q not to be zero", s)
		}
	}
}
