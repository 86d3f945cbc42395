package observability

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient wraps base's transport with otelhttp so every outbound
// call to an AI backend carries a span, without changing the caller's
// timeout/dialer tuning.
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = otelhttp.NewTransport(rt)
	return base
}

// WrapHandler instruments an inbound http.Handler with otelhttp so every
// served request is traced under operation.
func WrapHandler(operation string, h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, operation)
}
