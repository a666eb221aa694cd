package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/server/auth"
)

type ctxKey int

const userIDKey ctxKey = 0

// UserID returns the authenticated user id, or "" when auth is disabled.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithAuth validates the bearer token and stores the user id in the request
// context. With an empty secret the request passes through untouched.
func WithAuth(secretKey []byte, log logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(secretKey) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(common.AuthHeaderName)
		token, ok := strings.CutPrefix(header, common.AuthScheme+" ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, secretKey)
		if err != nil {
			log.Warn(r.Context(), "rejected token", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
