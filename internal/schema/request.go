package schema

import (
	"net/http"
	"strings"

	"github.com/cr0sh/grasshopper/errs"
)

// Method is an HTTP request method accepted by the host transport.
type Method string

const (
	// MethodGet issues an HTTP GET.
	MethodGet Method = "get"
	// MethodPost issues an HTTP POST.
	MethodPost Method = "post"
	// MethodPut issues an HTTP PUT.
	MethodPut Method = "put"
	// MethodDelete issues an HTTP DELETE.
	MethodDelete Method = "delete"
)

// Canonical converts the method into the form net/http expects.
func (m Method) Canonical() (string, error) {
	switch Method(strings.ToLower(strings.TrimSpace(string(m)))) {
	case MethodGet:
		return http.MethodGet, nil
	case MethodPost:
		return http.MethodPost, nil
	case MethodPut:
		return http.MethodPut, nil
	case MethodDelete:
		return http.MethodDelete, nil
	default:
		return "", errs.New("schema/method", errs.CodeInvalid,
			errs.WithMessage("method "+string(m)+" is not a valid HTTP method"))
	}
}

// RequestPayload is what adapters emit and the host transport consumes.
type RequestPayload struct {
	URL         string            `json:"url"`
	Method      Method            `json:"method"`
	Body        string            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Sign        string            `json:"sign,omitempty"`
	EnvSuffix   string            `json:"env_suffix,omitempty"`
	PrimaryOnly bool              `json:"primary_only,omitempty"`
}

// Validate reports whether the request can be issued by the host.
func (r RequestPayload) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errs.New("schema/request", errs.CodeInvalid, errs.WithMessage("url required"))
	}
	if _, err := r.Method.Canonical(); err != nil {
		return err
	}
	return nil
}

// ResponsePayload carries one transport result back into the engine. Signals
// are carried inside a response payload with Restart or Terminate set.
type ResponsePayload struct {
	URL       string `json:"url"`
	EnvSuffix string `json:"env_suffix,omitempty"`
	Status    uint16 `json:"status"`
	Content   string `json:"content"`
	Error     bool   `json:"error"`
	Restart   bool   `json:"restart"`
	Terminate bool   `json:"terminate"`
}

// NewTerminator builds the payload carried by a terminate signal.
func NewTerminator() *ResponsePayload {
	return &ResponsePayload{
		URL:       "",
		EnvSuffix: "",
		Status:    0,
		Content:   "",
		Error:     false,
		Restart:   false,
		Terminate: true,
	}
}

// NewRestart builds the payload carried by a restart signal.
func NewRestart() *ResponsePayload {
	return &ResponsePayload{
		URL:       "",
		EnvSuffix: "",
		Status:    0,
		Content:   "",
		Error:     true,
		Restart:   true,
		Terminate: false,
	}
}

// NewTransportFailure builds the payload surfaced when a request never
// completed.
func NewTransportFailure(url, envSuffix string) *ResponsePayload {
	return &ResponsePayload{
		URL:       url,
		EnvSuffix: envSuffix,
		Status:    0,
		Content:   "",
		Error:     true,
		Restart:   false,
		Terminate: false,
	}
}
