package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodbloom/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextEmailKey stores the account email inside Gin context.
	ContextEmailKey = "email"
	// ContextTokenKey stores the raw bearer token, forwarded to the AI service.
	ContextTokenKey = "token"
)

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return authenticate(false)
}

// AuthRequiredAllowQuery also accepts the token as ?token=, for websocket
// upgrades where browsers cannot set headers.
func AuthRequiredAllowQuery() gin.HandlerFunc {
	return authenticate(true)
}

func authenticate(allowQuery bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenString, code, msg := extractToken(ctx, allowQuery)
		if code != 0 {
			utils.Error(ctx, http.StatusUnauthorized, code, msg)
			ctx.Abort()
			return
		}

		if utils.IsTokenBlacklisted(tokenString) {
			utils.Error(ctx, http.StatusUnauthorized, 40104, "token revoked")
			ctx.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextEmailKey, claims.Email)
		ctx.Set(ContextTokenKey, tokenString)
		ctx.Next()
	}
}

func extractToken(ctx *gin.Context, allowQuery bool) (string, int, string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		if allowQuery {
			if t := strings.TrimSpace(ctx.Query("token")); t != "" {
				return t, 0, ""
			}
		}
		return "", 40101, "authorization header missing"
	}

	token, ok := utils.BearerToken(authHeader)
	if !ok {
		return "", 40102, "invalid authorization header format"
	}
	return token, 0, ""
}
