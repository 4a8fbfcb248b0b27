package upbit

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/cr0sh/grasshopper/internal/host"
	"github.com/cr0sh/grasshopper/internal/schema"
)

func init() {
	host.RegisterSigner(SignerName, Sign)
}

// Sign applies Upbit JWT (HS256) request signing. Authenticated requests
// carry a bearer token whose claims include a SHA-512 hash of the query
// string or body parameters.
func Sign(req schema.RequestPayload, creds host.Credentials) (schema.RequestPayload, error) {
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return req, err
	}

	claims := map[string]string{
		"access_key": creds.APIKey,
		"nonce":      uuid.NewString(),
	}
	hashable := parsed.RawQuery
	if req.Body != "" {
		hashable = bodyQueryString(req.Body)
	}
	if hashable != "" {
		sum := sha512.Sum512([]byte(hashable))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}

	token, err := jwtHS256(claims, creds.APISecret)
	if err != nil {
		return req, err
	}

	signed := req
	signed.Sign = ""
	signed.Headers = make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		signed.Headers[k] = v
	}
	signed.Headers["Authorization"] = "Bearer " + token
	return signed, nil
}

// bodyQueryString renders a flat JSON body as the query string Upbit hashes
// for signed POST requests.
func bodyQueryString(body string) string {
	var params map[string]any
	if err := json.Unmarshal([]byte(body), &params); err != nil {
		return body
	}
	values := url.Values{}
	for k, v := range params {
		switch typed := v.(type) {
		case string:
			values.Set(k, typed)
		case float64:
			values.Set(k, strconv.FormatFloat(typed, 'f', -1, 64))
		default:
			raw, err := json.Marshal(typed)
			if err != nil {
				continue
			}
			values.Set(k, string(raw))
		}
	}
	return values.Encode()
}

func jwtHS256(claims map[string]string, secret string) (string, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	body := base64.RawURLEncoding.EncodeToString(payload)
	signingInput := header + "." + body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingInput))
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signingInput + "." + signature, nil
}
