package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/api/validators"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

// rateLimiterStore counts hits in a fixed window. RateLimitKey namespaces
// the counter so it cannot collide with nonces or idempotency records.
type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy throttles one auth surface per client IP and per
// wallet named in the body. A zero limit disables that dimension.
type AuthRateLimitPolicy struct {
	name         string
	window       time.Duration
	ipLimit      int
	addressLimit int
}

// NewAuthRateLimitPolicy builds a policy with the supplied window and limits.
func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, addressLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{
		name:         name,
		window:       window,
		ipLimit:      ipLimit,
		addressLimit: addressLimit,
	}
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.addressLimit > 0)
}

// retryAfter is the window rounded up to whole seconds. Fixed windows make
// this an upper bound.
func (p AuthRateLimitPolicy) retryAfter() string {
	return strconv.Itoa(int(math.Ceil(p.window.Seconds())))
}

type limitHit struct {
	dimension string
	value     string
	limit     int
}

// AuthRateLimit rejects a request with 429 once any of its counters passes
// the policy limit. Store failures surface as dependency errors.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			hits := make([]limitHit, 0, 2)
			if policy.ipLimit > 0 {
				if ip := clientIP(r); ip != "" {
					hits = append(hits, limitHit{dimension: "ip", value: ip, limit: policy.ipLimit})
				}
			}
			if policy.addressLimit > 0 {
				body, err := validators.ReadBody(w, r)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				if address := bodyAddress(body); address != "" {
					hits = append(hits, limitHit{dimension: "address", value: address, limit: policy.addressLimit})
				}
			}

			for _, hit := range hits {
				key := store.RateLimitKey(strings.Join([]string{policy.name, hit.dimension, hit.value}, ":"))
				count, err := store.IncrWithTTL(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(hit.limit) {
					rejectRateLimited(ctx, logg, w, policy, hit, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy AuthRateLimitPolicy, hit limitHit, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"scope":          hit.dimension,
			hit.dimension:    hit.value,
			"attempts":       count,
			"limit":          hit.limit,
			"window_seconds": int(policy.window.Seconds()),
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", policy.retryAfter())
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
		WithDetails(map[string]any{"scope": hit.dimension}))
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// bodyAddress returns the lower-cased wallet from a JSON body so that
// checksummed and plain spellings share a counter. Malformed addresses are
// not counted.
func bodyAddress(payload []byte) string {
	var body struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	address := strings.TrimSpace(body.Address)
	if !common.IsHexAddress(address) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(address).Hex())
}
