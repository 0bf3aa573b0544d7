// Package httpclient provides the shared HTTP client used to talk to the
// item API.
//
// IMPORTANT: Callers MUST close response bodies, even on non-2xx status.
//
// All clients share one pooled transport. RateLimited wraps that transport
// with a token bucket so that a burst of concurrent item fetches (a page
// window, a comment level) is spread out instead of hammering the API.
package httpclient

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	sharedTransport *http.Transport
	transportOnce   sync.Once
)

// getSharedTransport returns the shared transport with connection pooling settings.
func getSharedTransport() *http.Transport {
	transportOnce.Do(func() {
		sharedTransport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		}
	})
	return sharedTransport
}

// Default returns a client on the shared transport with the given timeout
// and no rate limit.
func Default(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: getSharedTransport(),
		Timeout:   timeout,
	}
}

// RateLimited returns a client whose requests pass through a token bucket
// of rps requests per second. rps <= 0 disables limiting.
func RateLimited(rps float64, burst int, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewLimitedTransport(getSharedTransport(), rps, burst),
		Timeout:   timeout,
	}
}

// LimitedTransport is an http.RoundTripper that waits on a rate.Limiter
// before delegating to the wrapped transport.
type LimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// NewLimitedTransport wraps base. A nil base uses the shared transport.
func NewLimitedTransport(base http.RoundTripper, rps float64, burst int) *LimitedTransport {
	if base == nil {
		base = getSharedTransport()
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &LimitedTransport{
		base:    base,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// RoundTrip blocks until the limiter admits the request or the request
// context is done.
func (t *LimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
