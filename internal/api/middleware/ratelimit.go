package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Togather-Foundation/gatherings/internal/api/problem"
	"github.com/Togather-Foundation/gatherings/internal/config"
	"github.com/Togather-Foundation/gatherings/internal/domain/access"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic        RateLimitTier = "public"
	TierAuthenticated RateLimitTier = "authenticated"
	// TierLogin guards credential endpoints and is counted per client address.
	TierLogin RateLimitTier = "login"
)

const (
	limiterTTL      = 15 * time.Minute
	cleanupInterval = 5 * time.Minute
)

var errRateLimited = errors.New("request rate limit exceeded")

// RateLimiter keeps one token bucket per tier and client. Authenticated
// callers are keyed by user id, everyone else by client address.
type RateLimiter struct {
	trustedProxies []*net.IPNet
	limits         map[RateLimitTier]tierLimit
	env            string

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

type tierLimit struct {
	every time.Duration
	burst int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, env string) *RateLimiter {
	rl := &RateLimiter{
		trustedProxies: parseCIDRs(cfg.TrustedProxyCIDRs),
		limits:         make(map[RateLimitTier]tierLimit),
		env:            env,
		limiters:       make(map[string]*limiterEntry),
		stop:           make(chan struct{}),
		now:            time.Now,
	}
	if cfg.PublicPerMinute > 0 {
		rl.limits[TierPublic] = tierLimit{every: time.Minute / time.Duration(cfg.PublicPerMinute), burst: cfg.PublicPerMinute}
	}
	if cfg.AuthenticatedPerMinute > 0 {
		rl.limits[TierAuthenticated] = tierLimit{every: time.Minute / time.Duration(cfg.AuthenticatedPerMinute), burst: cfg.AuthenticatedPerMinute}
	}
	if cfg.LoginPer15Minutes > 0 {
		rl.limits[TierLogin] = tierLimit{every: 15 * time.Minute / time.Duration(cfg.LoginPer15Minutes), burst: cfg.LoginPer15Minutes}
	}

	go rl.cleanupLoop()
	return rl
}

// Middleware limits every request, choosing the tier from the actor that
// Authenticate put on the context.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := access.ActorFrom(r.Context())
		if actor.Authenticated() {
			rl.serve(w, r, next, TierAuthenticated, "user:"+actor.UserID)
			return
		}
		rl.serve(w, r, next, TierPublic, clientKey(r, rl.trustedProxies))
	})
}

// Tier applies an additional limit to a single route.
func (rl *RateLimiter) Tier(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rl.serve(w, r, next, tier, clientKey(r, rl.trustedProxies))
		})
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) serve(w http.ResponseWriter, r *http.Request, next http.Handler, tier RateLimitTier, key string) {
	limiter, limit := rl.limiter(tier, key)
	if limiter == nil {
		next.ServeHTTP(w, r)
		return
	}

	reservation := limiter.ReserveN(rl.now(), 1)
	if delay := reservation.DelayFrom(rl.now()); delay > 0 {
		reservation.CancelAt(rl.now())
		seconds := int(delay.Round(time.Second) / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.burst))
		w.Header().Set("X-RateLimit-Remaining", "0")
		problem.Write(w, r, http.StatusTooManyRequests, problem.TypeTooManyRequests, "Too many requests", errRateLimited, rl.env)
		return
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.burst))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(rl.now()))))
	next.ServeHTTP(w, r)
}

func (rl *RateLimiter) limiter(tier RateLimitTier, key string) (*rate.Limiter, tierLimit) {
	limit, ok := rl.limits[tier]
	if !ok {
		return nil, tierLimit{}
	}

	lookup := string(tier) + ":" + key
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[lookup]; ok {
		entry.lastSeen = now
		return entry.limiter, limit
	}
	limiter := rate.NewLimiter(rate.Every(limit.every), limit.burst)
	rl.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: now}
	return limiter, limit
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterTTL {
			delete(rl.limiters, key)
		}
	}
}

// clientKey returns the caller's address. Forwarding headers are only
// honoured when the direct peer is a trusted proxy.
func clientKey(r *http.Request, trusted []*net.IPNet) string {
	remoteIP := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remoteIP = host
	}

	if isTrustedProxy(remoteIP, trusted) {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}
	return remoteIP
}

func isTrustedProxy(ip string, trusted []*net.IPNet) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, cidr := range trusted {
		if cidr.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseCIDRs(values []string) []*net.IPNet {
	var out []*net.IPNet
	for _, value := range values {
		_, cidr, err := net.ParseCIDR(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		out = append(out, cidr)
	}
	return out
}
