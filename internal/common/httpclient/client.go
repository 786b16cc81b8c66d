// Package httpclient builds the timeout-scoped HTTP clients the provider
// adapters and the geocoder share. Every outbound call inherits the same
// transport tuning; per-request deadlines come from context.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// New returns a client whose overall request timeout is fixed at
// construction. Adapters treat timeout expiry as PROVIDER_TIMEOUT.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
