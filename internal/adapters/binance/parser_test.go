package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cr0sh/grasshopper/internal/host"
)

func TestParseOrderBook(t *testing.T) {
	content := `{"lastUpdateId":1,"bids":[["100.50","2.0"],["100.40","1.5"]],"asks":[["100.60","0.5"]]}`
	book, err := parseOrderBook(content)
	require.NoError(t, err)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	require.True(t, book.Bids[0].Price.Equal(decimal.RequireFromString("100.5")))
	require.True(t, book.Bids[0].Quantity.Equal(decimal.NewFromInt(2)))
	require.True(t, book.Asks[0].Price.Equal(decimal.RequireFromString("100.6")))

	again, err := parseOrderBook(content)
	require.NoError(t, err)
	require.True(t, book.Equal(again), "identical payloads must parse to equal books")
}

func TestParseOrderBookRejectsGarbage(t *testing.T) {
	_, err := parseOrderBook(`{"bids":[["x","1"]]}`)
	require.Error(t, err)
	_, err = parseOrderBook(`not json`)
	require.Error(t, err)
}

func TestParseSpotBalanceDropsZeroEntries(t *testing.T) {
	content := `{"balances":[
		{"asset":"BTC","free":"0.5","locked":"0.1"},
		{"asset":"DUST","free":"0.00000000","locked":"0.00000000"}
	]}`
	balance, err := parseSpotBalance(content)
	require.NoError(t, err)
	require.Len(t, balance, 1)
	entry := balance.Get("BTC")
	require.True(t, entry.Free.Equal(decimal.RequireFromString("0.5")))
	require.True(t, entry.Locked.Equal(decimal.RequireFromString("0.1")))
	require.True(t, entry.Total.Equal(decimal.RequireFromString("0.6")))
	require.True(t, balance.Get("DUST").IsZero())
}

func TestParseSwapBalance(t *testing.T) {
	content := `{"assets":[{"asset":"USDT","walletBalance":"1000.0","availableBalance":"900.0"}]}`
	balance, err := parseSwapBalance(content)
	require.NoError(t, err)
	entry := balance.Get("USDT")
	require.True(t, entry.Total.Equal(decimal.NewFromInt(1000)))
	require.True(t, entry.Locked.Equal(decimal.NewFromInt(100)))
}

func TestParseOpenOrdersSignsAmounts(t *testing.T) {
	content := `[
		{"orderId":11,"price":"100.5","origQty":"2.0","executedQty":"0.5","side":"BUY","type":"LIMIT"},
		{"orderId":12,"price":"0.0","origQty":"1.0","executedQty":"0","side":"SELL","type":"MARKET"}
	]`
	orders, err := parseOpenOrders(content)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	buy := orders["11"]
	require.True(t, buy.Amount.Equal(decimal.RequireFromString("1.5")), "remaining quantity, buy-signed")
	require.NotNil(t, buy.Price)
	require.True(t, buy.Price.Equal(decimal.RequireFromString("100.5")))

	sell := orders["12"]
	require.True(t, sell.Amount.Equal(decimal.NewFromInt(-1)))
	require.Nil(t, sell.Price, "market orders carry no price")
}

func TestParsePositionsDropsFlat(t *testing.T) {
	content := `[
		{"symbol":"BTCUSDT","positionAmt":"-0.25"},
		{"symbol":"ETHUSDT","positionAmt":"0.000"}
	]`
	positions, err := parsePositions(content)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.True(t, positions.Get("BTCUSDT").Equal(decimal.RequireFromString("-0.25")))
	require.True(t, positions.Get("ETHUSDT").IsZero())
}

func TestSignAppendsSignatureAndKeyHeader(t *testing.T) {
	adapter, err := New(nil, "spot:BTC/USDT")
	require.NoError(t, err)

	query := url.Values{}
	query.Set("symbol", adapter.market.Symbol())
	req := adapter.signedRequest("get", "/api/v3/openOrders", query)
	creds := host.Credentials{APIKey: "key", APISecret: "secret"}

	signed, err := Sign(req, creds)
	require.NoError(t, err)
	require.Equal(t, "key", signed.Headers["X-MBX-APIKEY"])

	parsed, err := url.Parse(signed.URL)
	require.NoError(t, err)
	values := parsed.Query()
	require.Equal(t, "BTCUSDT", values.Get("symbol"))
	require.NotEmpty(t, values.Get("timestamp"))
	require.Equal(t, recvWindowMs, values.Get("recvWindow"))

	signature := values.Get("signature")
	require.NotEmpty(t, signature)

	values.Del("signature")
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(values.Encode()))
	require.Equal(t, hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestRequestShapes(t *testing.T) {
	adapter, err := New(nil, "swap:ETH/USDT", WithEnvSuffix("sub1"), WithDepth(5))
	require.NoError(t, err)

	query := url.Values{}
	query.Set("symbol", adapter.market.Symbol())
	query.Set("limit", "5")
	depth := adapter.publicGet(adapter.apiPath("/api/v3/depth", "/fapi/v1/depth"), query)
	require.True(t, strings.HasPrefix(depth.URL, swapBaseURL+"/fapi/v1/depth?"))
	require.Equal(t, "sub1", depth.EnvSuffix)
	require.Empty(t, depth.Sign)

	order := adapter.signedRequest("post", "/fapi/v1/order", adapter.orderQuery(decimal.NewFromInt(-2)))
	require.Equal(t, SignerName, order.Sign)
	require.True(t, order.PrimaryOnly)
	parsed, err := url.Parse(order.URL)
	require.NoError(t, err)
	require.Equal(t, "SELL", parsed.Query().Get("side"))
	require.Equal(t, "2", parsed.Query().Get("quantity"))
}
