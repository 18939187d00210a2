package http

import (
	"errors"
	"net"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds how many per-client buckets are kept; the least
// recently seen client is forgotten first.
const maxTrackedClients = 10000

var errRateLimited = errors.New("rate limit exceeded")

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	buckets *lru.Cache[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

func newClientLimiter(perMinute, burst int) (*clientLimiter, error) {
	buckets, err := lru.New[string, *rate.Limiter](maxTrackedClients)
	if err != nil {
		return nil, err
	}
	return &clientLimiter{
		buckets: buckets,
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
	}, nil
}

func (l *clientLimiter) bucket(ip string) *rate.Limiter {
	fresh := rate.NewLimiter(l.limit, l.burst)
	if prev, ok, _ := l.buckets.PeekOrAdd(ip, fresh); ok {
		return prev
	}
	return fresh
}

func (l *clientLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.bucket(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
