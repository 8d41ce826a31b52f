package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns an http.Client tuned for provider calls. Per-call
// deadlines come from the request context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// transportError classifies a failure that produced no HTTP status.
func transportError(ctx context.Context, p Provider, err error) *ProviderError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return unavailable(p, 0, false, "request timed out", err)
	case ctx.Err() != nil:
		return unavailable(p, 0, false, "request cancelled", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return unavailable(p, 0, true, "request timed out", err)
	}
	return unavailable(p, 0, true, "could not reach provider", err)
}
