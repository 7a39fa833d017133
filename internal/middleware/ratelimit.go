package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"dataforge/internal/domain"
)

// RateLimitConfig holds configuration for the rate limiter middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate for free-plan clients.
	RequestsPerSecond float64
	// Burst is the maximum number of requests allowed in a burst.
	Burst int
	// ProMultiplier scales rate and burst for pro and admin accounts.
	// Values below 1 are treated as 1.
	ProMultiplier float64
}

type clientLimiter struct {
	limiter *rate.Limiter
	// lastSeen holds UnixNano; written from request goroutines while the
	// cleanup goroutine reads it concurrently.
	lastSeen atomic.Int64
}

// RateLimiter enforces a per-client token-bucket limit. Authenticated
// requests are keyed by account (so a user keeps one bucket across hosts);
// anonymous requests fall back to the client IP. Pro and admin plans get a
// scaled-up bucket. Responds 429 with rate-limit headers when exceeded.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.ProMultiplier < 1 {
		cfg.ProMultiplier = 1
	}
	var clients sync.Map // map[string]*clientLimiter

	// Drop buckets not seen for a while.
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			clients.Range(func(key, value any) bool {
				cl := value.(*clientLimiter)
				if time.Since(time.Unix(0, cl.lastSeen.Load())) > 10*time.Minute {
					clients.Delete(key)
				}
				return true
			})
		}
	}()

	getLimiter := func(key string, rps float64, burst int) *rate.Limiter {
		if v, ok := clients.Load(key); ok {
			cl := v.(*clientLimiter)
			cl.lastSeen.Store(time.Now().UnixNano())
			return cl.limiter
		}
		cl := &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		cl.lastSeen.Store(time.Now().UnixNano())
		clients.Store(key, cl)
		return cl.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, rps, burst := limiterParams(r, cfg)
			limiter := getLimiter(key, rps, burst)

			reservation := limiter.Reserve()
			if !reservation.OK() {
				writeTooManyRequests(w, 0)
				return
			}

			if delay := reservation.Delay(); delay > 0 {
				reservation.Cancel()
				writeTooManyRequests(w, int(delay.Seconds())+1)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

			next.ServeHTTP(w, r)
		})
	}
}

func limiterParams(r *http.Request, cfg RateLimitConfig) (key string, rps float64, burst int) {
	if user, ok := UserFromContext(r.Context()); ok {
		key = "user:" + strconv.FormatInt(user.ID, 10)
		rps, burst = cfg.RequestsPerSecond, cfg.Burst
		if user.Plan == domain.PlanPro || user.Plan == domain.PlanAdmin {
			rps *= cfg.ProMultiplier
			burst = int(float64(burst) * cfg.ProMultiplier)
		}
		return key, rps, burst
	}
	return "ip:" + clientIP(r), cfg.RequestsPerSecond, cfg.Burst
}

// clientIP strips the port from RemoteAddr. X-Forwarded-For is untrusted and
// ignored to prevent bypass via header spoofing.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    429,
		"message": "rate limit exceeded",
	})
}
