package middleware

import (
	"net/http"
	"sync"
	"time"

	"restorant/internal/apierror"

	"github.com/gin-gonic/gin"
)

// ── API rate limiter ──────────────────────────────────────────────────────────

// rateEntry tracks request counts per IP within a fixed window.
type rateEntry struct {
	count     int
	windowEnd time.Time
}

type ipLimiter struct {
	mu        sync.Mutex
	entries   map[string]*rateEntry
	limit     int
	window    time.Duration
	nextPurge time.Time
}

// RateLimiter returns a per-IP limiter of limit requests per window. Each
// call owns its own table, so routes can be limited independently.
func RateLimiter(limit int, window time.Duration) gin.HandlerFunc {
	l := &ipLimiter{entries: make(map[string]*rateEntry), limit: limit, window: window}
	return func(c *gin.Context) {
		ok, retry := l.allow(c.ClientIP(), time.Now())
		if !ok {
			c.Header("Retry-After", retry.Format(time.RFC1123))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.WithCode(apierror.CodeLimite, "Demasiadas solicitudes. Intente nuevamente en un momento."))
			return
		}
		c.Next()
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// expired entries are dropped inline instead of by a background goroutine
	if now.After(l.nextPurge) {
		for k, e := range l.entries {
			if now.After(e.windowEnd) {
				delete(l.entries, k)
			}
		}
		l.nextPurge = now.Add(5 * time.Minute)
	}

	e, ok := l.entries[ip]
	if !ok || now.After(e.windowEnd) {
		e = &rateEntry{windowEnd: now.Add(l.window)}
		l.entries[ip] = e
	}
	e.count++
	return e.count <= l.limit, e.windowEnd
}
