package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"payment-service/internal/response"

	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed-window counter per client in Redis. Keyed by
// authenticated user id when present, source IP otherwise. Fails open when
// Redis is unreachable so an outage never blocks payments.
func RateLimiter(rdb *redis.Client, limit int, window time.Duration, keyPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var clientID string
			if userID, ok := GetUserID(ctx); ok {
				clientID = "uid:" + strconv.FormatInt(userID, 10)
			} else {
				ip := r.Header.Get("X-Forwarded-For")
				if ip == "" {
					ip = r.RemoteAddr
				}
				clientID = "ip:" + strings.TrimSpace(strings.Split(ip, ",")[0])
			}

			key := keyPrefix + ":" + clientID
			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, window)
			}

			if count > int64(limit) {
				ttl, _ := rdb.TTL(ctx, key).Result()
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
				response.Error(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(limit)-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}
