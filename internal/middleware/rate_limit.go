package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/billbridge/billbridge-api/internal/pkg/response"
)

// RateLimit limits requests per authenticated user for a named action using a
// fixed one-minute window in Redis. Requests pass through when Redis is not
// configured or unreachable.
func RateLimit(cache *redis.Client, action string, maxPerMin int) func(http.Handler) http.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cache == nil {
				next.ServeHTTP(w, r)
				return
			}

			userID := GetUserID(r.Context())
			key := "rl:" + action + ":"
			if userID != uuid.Nil {
				key += userID.String()
			} else {
				key += getClientIP(r)
			}

			cnt, err := cache.Incr(r.Context(), key).Result()
			if err != nil {
				// fail-open on cache errors
				log.Warn().Err(err).Str("action", action).Msg("Rate limit check failed")
				next.ServeHTTP(w, r)
				return
			}
			if cnt == 1 {
				cache.Expire(r.Context(), key, time.Minute)
			}
			if cnt > int64(maxPerMin) {
				response.TooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
