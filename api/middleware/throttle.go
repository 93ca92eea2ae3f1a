package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/pos-backend/api/responses"
	pkgerrors "github.com/angelmondragon/pos-backend/pkg/errors"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

type fixedWindowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// ThrottlePolicy limits attempts on a credential endpoint per client IP and
// per submitted email. A zero limit disables that dimension.
type ThrottlePolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewThrottlePolicy(name string, window time.Duration, ipLimit, emailLimit int) ThrottlePolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return ThrottlePolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p ThrottlePolicy) active() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// counter is one dimension a request is counted against. Raw email
// addresses never reach Redis or the logs, only their digest.
type counter struct {
	dimension string
	value     string
	limit     int
}

func (p ThrottlePolicy) counters(r *http.Request, body []byte) []counter {
	var out []counter
	if ip := clientIP(r); p.ipLimit > 0 && ip != "" {
		out = append(out, counter{dimension: "ip", value: ip, limit: p.ipLimit})
	}
	if email := loginEmail(body); p.emailLimit > 0 && email != "" {
		out = append(out, counter{dimension: "email", value: digest(email), limit: p.emailLimit})
	}
	return out
}

// Throttle rejects requests over the policy with 429 and a Retry-After of
// one window. Redis failures fail closed with 503.
func Throttle(policy ThrottlePolicy, limiter fixedWindowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.emailLimit > 0 && r.Body != nil {
				raw, err := io.ReadAll(r.Body)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				body = raw
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, c := range policy.counters(r, body) {
				scope := policy.name + ":" + c.dimension + ":" + c.value
				allowed, attempts, err := limiter.FixedWindowAllow(ctx, scope, int64(c.limit), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check login throttle"))
					return
				}
				if !allowed {
					rejectThrottled(ctx, logg, w, policy, c, attempts)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectThrottled(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy ThrottlePolicy, c counter, attempts int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":         policy.name,
			"dimension":      c.dimension,
			"key":            c.value,
			"attempts":       attempts,
			"limit":          c.limit,
			"window_seconds": int(policy.window.Seconds()),
		}), "auth.throttled")
	}
	w.Header().Set("Retry-After", strconv.Itoa(max(1, int(policy.window/time.Second))))
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
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

func loginEmail(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
