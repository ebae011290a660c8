package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"payment-service/internal/response"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ContextUserID contextKey = "userID"

// GetUserID returns the authenticated user id stashed by Auth.
func GetUserID(ctx context.Context) (int64, bool) {
	val, ok := ctx.Value(ContextUserID).(int64)
	return val, ok
}

type claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Auth verifies the HS256 bearer token and puts the user id on the request
// context. Requests without a valid token never reach the handlers.
func Auth(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				response.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			var c claims
			token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				response.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			sub := c.UserID
			if sub == "" {
				sub = c.Subject
			}
			userID, err := strconv.ParseInt(sub, 10, 64)
			if err != nil || userID <= 0 {
				response.Error(w, http.StatusUnauthorized, "invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), ContextUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
