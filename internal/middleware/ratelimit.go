// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/course-portal/internal/core"
)

const keyPrefix = "ratelimit:"

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
}

// buckets asks redis first and falls back to in-process token buckets when
// redis is unreachable, so a redis outage degrades to per-instance limits.
type buckets struct {
	redis  *redis_rate.Limiter
	memory *memoryBuckets
}

func newBuckets(rdb *redis.Client) *buckets {
	return &buckets{
		redis:  redis_rate.NewLimiter(rdb),
		memory: newMemoryBuckets(),
	}
}

func (b *buckets) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	res, err := b.redis.Allow(ctx, key, limit)
	if err == nil {
		return res, nil
	}

	slog.DebugContext(ctx, "redis rate limit unavailable, using memory", "error", err)
	return b.memory.allow(key, limit)
}

type RateLimiter struct {
	buckets *buckets
	config  RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	return &RateLimiter{
		buckets: newBuckets(rdb),
		config:  cfg,
	}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		res, err := rl.buckets.allow(r.Context(), key, rl.config.Limit)
		if err != nil {
			if rl.config.FailOpen {
				slog.Warn("rate limiter error, failing open",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSON(w, http.StatusServiceUnavailable, core.ErrorResponse{
				Message: "service unavailable",
				Code:    "UNAVAILABLE",
			})
			return
		}

		setRateLimitHeaders(w, res, rl.config.Limit)

		if res.Allowed == 0 {
			writeRateLimitExceeded(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// KeyByIP trusts the last X-Forwarded-For hop, the one appended by our
// own proxy.
func KeyByIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return keyPrefix + "ip:" + strings.TrimSpace(hops[len(hops)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return keyPrefix + "ip:" + xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	return keyPrefix + "ip:" + ip
}

func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return keyPrefix + "user:" + userID
	}
	return KeyByIP(r)
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSON(w, http.StatusTooManyRequests, core.ErrorResponse{
		Message: fmt.Sprintf("too many requests, retry in %ds", retryAfter),
		Code:    "RATE_LIMITED",
	})
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

type memoryBuckets struct {
	entries sync.Map
}

const (
	sweepInterval = 5 * time.Minute
	idleTTL       = 10 * time.Minute
)

func newMemoryBuckets() *memoryBuckets {
	m := &memoryBuckets{}
	go m.sweep()
	return m
}

func (m *memoryBuckets) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-idleTTL).Unix()
		m.entries.Range(func(key, value any) bool {
			if b, ok := value.(*memoryBucket); ok && b.lastSeen.Load() < cutoff {
				m.entries.Delete(key)
			}
			return true
		})
	}
}

func (m *memoryBuckets) allow(
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	if perSecond <= 0 {
		return nil, fmt.Errorf("invalid limit %d per %s", limit.Rate, limit.Period)
	}

	value, ok := m.entries.Load(key)
	if !ok {
		value, _ = m.entries.LoadOrStore(key, &memoryBucket{
			limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst),
		})
	}

	b, ok := value.(*memoryBucket)
	if !ok {
		return nil, fmt.Errorf("unexpected bucket type %T", value)
	}
	b.lastSeen.Store(time.Now().Unix())

	refill := time.Duration(float64(time.Second) / perSecond)
	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(b.limiter.Tokens()), 0),
		RetryAfter: -1,
		ResetAfter: refill,
	}

	if b.limiter.Allow() {
		res.Allowed = 1
		res.Remaining = max(int(b.limiter.Tokens()), 0)
	} else {
		res.RetryAfter = refill
	}

	return res, nil
}

// TierConfig is the per-minute budget for one entitlement level.
type TierConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

const (
	TierFree    = "free"
	TierPremium = "premium"
	TierAdmin   = "admin"
)

// DefaultTiers sizes message sending: admins answer many threads, premium
// users get more room than free accounts.
var DefaultTiers = map[string]TierConfig{
	TierFree:    {RequestsPerMinute: 30, BurstSize: 10},
	TierPremium: {RequestsPerMinute: 120, BurstSize: 30},
	TierAdmin:   {RequestsPerMinute: 600, BurstSize: 100},
}

func tierFor(claims *SessionClaims) string {
	switch {
	case claims == nil:
		return TierFree
	case claims.Role == RoleAdmin:
		return TierAdmin
	case claims.IsPremium:
		return TierPremium
	default:
		return TierFree
	}
}

// TieredRateLimiter limits authenticated callers per user, sized by their
// entitlement. It must run after Authenticator.
func TieredRateLimiter(
	rdb *redis.Client,
	scope string,
	tiers map[string]TierConfig,
) func(http.Handler) http.Handler {
	b := newBuckets(rdb)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tier := tierFor(GetClaims(r.Context()))

			budget, ok := tiers[tier]
			if !ok {
				budget = tiers[TierFree]
			}

			limit := PerMinute(budget.RequestsPerMinute, budget.BurstSize)
			key := KeyByUser(r) + ":" + scope

			res, err := b.allow(r.Context(), key, limit)
			if err != nil {
				slog.WarnContext(r.Context(), "tiered limiter failed open", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Tier", tier)
			setRateLimitHeaders(w, res, limit)

			if res.Allowed == 0 {
				writeRateLimitExceeded(w, res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: time.Minute,
	}
}
