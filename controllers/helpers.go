package controllers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/middleware"
	"github.com/cppla/moodbloom/models"
)

// userResponse is the authenticated view of an account.
type userResponse struct {
	models.User
	IsAdmin bool `json:"isAdmin"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{User: user, IsAdmin: config.IsAdminEmail(user.Email)}
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 20
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// callerToken is the bearer token of the request, forwarded to the AI service.
func callerToken(ctx *gin.Context) string {
	return ctx.GetString(middleware.ContextTokenKey)
}

func isAdmin(ctx *gin.Context) bool {
	return config.IsAdminEmail(ctx.GetString(middleware.ContextEmailKey))
}

func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(ctx.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func tokenTTL() time.Duration {
	return time.Duration(config.Get().TokenTTLHours) * time.Hour
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
