package upstream

import (
	"net/http/httputil"
	"net/url"
	"sync"
	"time"
)

// Upstream represents the guarded origin server: a reverse proxy plus
// response time monitoring. Availability tracking lives in the circuit
// breaker, not here.
type Upstream struct {
	url              *url.URL
	proxy            *httputil.ReverseProxy
	mutex            sync.Mutex
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// New creates an Upstream for the given URL.
func New(url *url.URL) *Upstream {
	return &Upstream{
		url:   url,
		proxy: httputil.NewSingleHostReverseProxy(url),
	}
}

// URL returns the upstream server URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// ReverseProxy returns the HTTP reverse proxy for this upstream.
func (u *Upstream) ReverseProxy() *httputil.ReverseProxy {
	return u.proxy
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest request duration.
func (u *Upstream) RecordResponse(duration time.Duration) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		u.ewmaResponseTime = duration
		u.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	u.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(u.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (u *Upstream) EWMATime() time.Duration {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		return 0
	}

	return u.ewmaResponseTime
}
