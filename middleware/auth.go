package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/homedash/utils"
)

const (
	// ContextUserIDKey holds the authenticated user's id as a uint.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside Gin context.
	ContextUsernameKey = "username"
)

// AuthRequired resolves the bearer token to a user id. Every handler behind it
// can rely on CurrentUserID returning a non-zero id.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, code, msg := bearerToken(ctx.GetHeader("Authorization"))
		if code != 0 {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// CurrentUserID returns the id stored by AuthRequired.
func CurrentUserID(ctx *gin.Context) (uint, bool) {
	id, ok := ctx.Value(ContextUserIDKey).(uint)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// CurrentUsername returns the username claim of the request, if any.
func CurrentUsername(ctx *gin.Context) string {
	return ctx.GetString(ContextUsernameKey)
}

func bearerToken(header string) (token string, code int, msg string) {
	if header == "" {
		return "", 40101, "authorization header missing"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", 40102, "invalid authorization header format"
	}
	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", 40103, "empty bearer token"
	}
	return token, 0, ""
}
