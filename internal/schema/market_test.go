package schema

import "testing"

func TestParseMarket(t *testing.T) {
	market, err := ParseMarket("spot:BTC/USDT")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if market.Type != MarketSpot || market.Base != "BTC" || market.Quote != "USDT" {
		t.Fatalf("unexpected market: %+v", market)
	}
	if market.Symbol() != "BTCUSDT" {
		t.Fatalf("unexpected symbol: %s", market.Symbol())
	}
	if market.String() != "spot:BTC/USDT" {
		t.Fatalf("unexpected identifier: %s", market.String())
	}
}

func TestParseMarketNormalizesCase(t *testing.T) {
	market, err := ParseMarket(" SWAP:btc/usdt ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if market.Type != MarketSwap || market.Base != "BTC" || market.Quote != "USDT" {
		t.Fatalf("unexpected market: %+v", market)
	}
}

func TestParseMarketRejectsMalformedIdentifiers(t *testing.T) {
	for _, id := range []string{"", "BTC/USDT", "spot:BTCUSDT", "margin:BTC/USDT", "spot:/USDT", "spot:BTC/"} {
		if _, err := ParseMarket(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}

func TestFingerprintString(t *testing.T) {
	fp := Fingerprint{URL: "https://api.example.com/depth", EnvSuffix: ""}
	if fp.String() != "https://api.example.com/depth" {
		t.Fatalf("unexpected fingerprint: %s", fp)
	}
	fp.EnvSuffix = "sub1"
	if fp.String() != "https://api.example.com/depth:sub1" {
		t.Fatalf("unexpected fingerprint: %s", fp)
	}
}

func TestMethodCanonical(t *testing.T) {
	if _, err := Method("PATCH").Canonical(); err == nil {
		t.Fatal("expected unsupported method error")
	}
	got, err := Method("Post").Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if got != "POST" {
		t.Fatalf("unexpected method: %s", got)
	}
}
