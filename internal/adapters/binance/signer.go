package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"

	"github.com/cr0sh/grasshopper/internal/host"
	"github.com/cr0sh/grasshopper/internal/schema"
)

const recvWindowMs = "5000"

func init() {
	host.RegisterSigner(SignerName, Sign)
}

// Sign applies Binance HMAC-SHA256 request signing: a timestamp and
// signature are appended to the query string and the API key travels in the
// X-MBX-APIKEY header. The signature covers the encoded query followed by
// the body.
func Sign(req schema.RequestPayload, creds host.Credentials) (schema.RequestPayload, error) {
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return req, err
	}
	query := parsed.Query()
	query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	query.Set("recvWindow", recvWindowMs)
	encoded := query.Encode()

	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(encoded + req.Body))
	signature := hex.EncodeToString(mac.Sum(nil))
	parsed.RawQuery = encoded + "&signature=" + signature

	signed := req
	signed.URL = parsed.String()
	signed.Sign = ""
	signed.Headers = make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		signed.Headers[k] = v
	}
	signed.Headers["X-MBX-APIKEY"] = creds.APIKey
	return signed, nil
}
