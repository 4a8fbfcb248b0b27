package host

import (
	"sync"

	"github.com/cr0sh/grasshopper/errs"
	"github.com/cr0sh/grasshopper/internal/schema"
)

// Credentials captures API credentials used for authenticated requests.
// Credential sets are keyed by environment suffix; the empty suffix is the
// default environment.
type Credentials struct {
	APIKey    string
	APISecret string
}

// SignerFunc rewrites a request so the venue accepts it: adding auth
// headers, signature query parameters, or a signed body. Signers must not
// mutate the input payload.
type SignerFunc func(req schema.RequestPayload, creds Credentials) (schema.RequestPayload, error)

var (
	signerMu sync.RWMutex
	signers  = make(map[string]SignerFunc)
)

// RegisterSigner installs the signer for an adapter name. Adapters register
// their signer from init so any request carrying their name can be signed.
func RegisterSigner(name string, fn SignerFunc) {
	if name == "" || fn == nil {
		return
	}
	signerMu.Lock()
	defer signerMu.Unlock()
	signers[name] = fn
}

func signerFor(name string) (SignerFunc, bool) {
	signerMu.RLock()
	defer signerMu.RUnlock()
	fn, ok := signers[name]
	return fn, ok
}

// sign applies the signer named by req.Sign, when present.
func sign(req schema.RequestPayload, creds map[string]Credentials) (schema.RequestPayload, error) {
	if req.Sign == "" {
		return req, nil
	}
	fn, ok := signerFor(req.Sign)
	if !ok {
		return req, errs.New("host/sign", errs.CodeInvalid,
			errs.WithMessage("no signer registered for "+req.Sign))
	}
	c, ok := creds[req.EnvSuffix]
	if !ok {
		return req, errs.New("host/sign", errs.CodeInvalid,
			errs.WithMessage("no credentials for environment "+req.EnvSuffix))
	}
	return fn(req, c)
}
