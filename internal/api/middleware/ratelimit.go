package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ArnavT27/Chat-Application/internal/metrics"
)

// Auto-block thresholds: this many rate-limit violations inside the
// violation TTL earns a 24h block.
const (
	autoBlockThreshold = 10
	violationTTL       = time.Hour
	autoBlockDuration  = 24 * time.Hour
)

// RateLimit defines the budget for one endpoint pattern.
type RateLimit struct {
	Requests int
	Window   time.Duration
	KeyFunc  func(r *http.Request) string
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	Whitelist        []string // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled bool     // Enable auto-blocking after repeated violations
}

// RateLimiter enforces sliding-window limits per endpoint, keyed on the
// authenticated user where one exists and the client IP otherwise. Counters
// live in Redis so limits hold across restarts.
type RateLimiter struct {
	client           *redis.Client
	limits           map[string]RateLimit
	blocker          *IPBlocker
	logger           zerolog.Logger
	whitelistNets    []*net.IPNet
	whitelistIPs     map[string]bool
	autoBlockEnabled bool
}

// NewRateLimiter creates a rate limiter with budgets for the message API,
// the socket upgrade and asset serving. Sends are the tightest budget; seen
// marks are the loosest because the socket path issues one per pushed
// message.
func NewRateLimiter(client *redis.Client, logger zerolog.Logger, cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		client:           client,
		blocker:          NewIPBlocker(client),
		logger:           logger.With().Str("component", "ratelimit").Logger(),
		whitelistIPs:     make(map[string]bool),
		autoBlockEnabled: cfg.AutoBlockEnabled,
		limits: map[string]RateLimit{
			"POST /api/messages/send/": {60, time.Minute, userKey},
			"PUT /api/messages/mark/":  {240, time.Minute, userKey},
			"GET /api/messages/users":  {60, time.Minute, userKey},
			"GET /api/messages/":       {120, time.Minute, userKey},
			"GET /ws":                  {30, time.Minute, userKey},
			"GET /assets/":             {300, time.Minute, ipKey},
		},
	}

	for _, entry := range cfg.Whitelist {
		if strings.Contains(entry, "/") {
			_, ipNet, err := net.ParseCIDR(entry)
			if err != nil {
				rl.logger.Warn().Str("entry", entry).Err(err).Msg("invalid CIDR in whitelist")
				continue
			}
			rl.whitelistNets = append(rl.whitelistNets, ipNet)
		} else {
			rl.whitelistIPs[entry] = true
		}
	}

	return rl
}

func (rl *RateLimiter) isWhitelisted(ipStr string) bool {
	if rl.whitelistIPs[ipStr] {
		return true
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, ipNet := range rl.whitelistNets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

func ipKey(r *http.Request) string {
	return "ratelimit:ip:" + clientIP(r)
}

// userKey buckets by the authenticated identity so one user's devices share
// a budget; unauthenticated requests fall back to the IP bucket.
func userKey(r *http.Request) string {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		userID = r.URL.Query().Get("userId")
	}
	if userID == "" {
		return ipKey(r)
	}
	return "ratelimit:user:" + userID
}

// clientIP extracts the real client IP from headers or the connection.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// allow checks and increments one key's window.
// Returns (allowed, remaining, resetAt).
func (rl *RateLimiter) allow(ctx context.Context, key string, limit RateLimit) (bool, int, time.Time) {
	now := time.Now()
	bucket := fmt.Sprintf("%s:%d", key, now.Unix()/int64(limit.Window.Seconds()))
	cutoff := now.Add(-limit.Window).UnixMilli()

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, bucket, "-inf", strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, bucket)
	pipe.ZAdd(ctx, bucket, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10),
	})
	pipe.Expire(ctx, bucket, limit.Window*2)
	_, _ = pipe.Exec(ctx)

	count := countCmd.Val()
	remaining := limit.Requests - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	return count < int64(limit.Requests), remaining, now.Add(limit.Window)
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if rl.isWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if rl.blocker.IsBlocked(r.Context(), ip) {
			metrics.BlockedRequests.WithLabelValues("ip_blocked").Inc()
			rl.logger.Warn().
				Str("ip", ip).
				Str("endpoint", r.URL.Path).
				Msg("blocked IP attempted request")
			http.Error(w, `{"error":"temporarily blocked"}`, http.StatusForbidden)
			return
		}

		limit, ok := rl.findLimit(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, resetAt := rl.allow(r.Context(), limit.KeyFunc(r), limit)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())))
			metrics.RateLimitHits.WithLabelValues(normalizePath(r.URL.Path)).Inc()
			rl.trackViolation(r.Context(), ip)

			rl.logger.Warn().
				Str("ip", ip).
				Str("user", r.Header.Get(HeaderUserID)).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// findLimit matches by "METHOD /path" prefix; the longest matching pattern
// wins so /api/messages/users is not swallowed by /api/messages/.
func (rl *RateLimiter) findLimit(r *http.Request) (RateLimit, bool) {
	key := r.Method + " " + r.URL.Path

	var best RateLimit
	bestLen := -1
	for pattern, limit := range rl.limits {
		if strings.HasPrefix(key, pattern) && len(pattern) > bestLen {
			best = limit
			bestLen = len(pattern)
		}
	}
	return best, bestLen >= 0
}

func (rl *RateLimiter) trackViolation(ctx context.Context, ip string) {
	if !rl.autoBlockEnabled {
		return
	}

	key := "violations:ip:" + ip
	count, _ := rl.client.Incr(ctx, key).Result()
	rl.client.Expire(ctx, key, violationTTL)

	if count >= autoBlockThreshold {
		rl.blocker.Block(ctx, ip, autoBlockDuration, "repeated rate limit violations")
		rl.logger.Warn().
			Str("ip", ip).
			Int64("violations", count).
			Msg("IP auto-blocked for repeated violations")
	}
}

// IPBlocker manages temporary IP blocks.
type IPBlocker struct {
	client *redis.Client
}

// NewIPBlocker creates a new IP blocker.
func NewIPBlocker(client *redis.Client) *IPBlocker {
	return &IPBlocker{client: client}
}

// IsBlocked checks if an IP is blocked.
func (b *IPBlocker) IsBlocked(ctx context.Context, ip string) bool {
	exists, _ := b.client.Exists(ctx, "blocked:ip:"+ip).Result()
	return exists > 0
}

// Block blocks an IP for the specified duration.
func (b *IPBlocker) Block(ctx context.Context, ip string, duration time.Duration, reason string) {
	b.client.Set(ctx, "blocked:ip:"+ip, reason, duration)
}

// Unblock removes an IP block.
func (b *IPBlocker) Unblock(ctx context.Context, ip string) {
	b.client.Del(ctx, "blocked:ip:"+ip)
}
