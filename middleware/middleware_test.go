package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/metrics"
	"github.com/cppla/moodbloom/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Override(config.AppConfig{JWTSecret: "middleware-test-secret", RateLimitPerMinute: 4})
	os.Exit(m.Run())
}

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/private", mw, func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{
			"userId": ctx.GetUint(ContextUserIDKey),
			"email":  ctx.GetString(ContextEmailKey),
		})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	token, err := utils.GenerateToken(42, "ana@example.com", time.Hour)
	require.NoError(t, err)
	revoked, err := utils.GenerateToken(43, "bo@example.com", time.Hour)
	require.NoError(t, err)
	utils.BlacklistToken(revoked, time.Now().Add(time.Hour))

	cases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, `"code":40101`},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, `"code":40102`},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized, `"code":40104`},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, `"code":40105`},
		{"valid", "Bearer " + token, http.StatusOK, `"email":"ana@example.com"`},
	}

	r := authRouter(AuthRequired())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
		})
	}
}

func TestAuthRequiredAllowQuery(t *testing.T) {
	token, err := utils.GenerateToken(7, "ws@example.com", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	authRouter(AuthRequiredAllowQuery()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":7`)

	w = httptest.NewRecorder()
	authRouter(AuthRequired()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware())
	r.GET("/ping", func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })

	var limited int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Greater(t, limited, 0)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "limits are tracked per client IP")
}

func TestRateLimitKeysByUser(t *testing.T) {
	r := gin.New()
	r.Use(func(ctx *gin.Context) { ctx.Set(ContextUserIDKey, uint(99)) }, RateLimitMiddleware())
	r.GET("/ping", func(ctx *gin.Context) { ctx.String(http.StatusOK, "pong") })

	var last *httptest.ResponseRecorder
	for i, ip := range []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"} {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = ip + ":1234"
		last = httptest.NewRecorder()
		r.ServeHTTP(last, req)
		if i < 2 {
			assert.Equal(t, http.StatusOK, last.Code)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code, "one bucket per user across addresses")
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestLimiterSetSweepsIdleBuckets(t *testing.T) {
	s := newLimiterSet(60)
	now := time.Now()
	ok, _ := s.allow("ip:a", now)
	require.True(t, ok)

	ok, _ = s.allow("ip:b", now.Add(2*limiterIdle))
	require.True(t, ok)
	assert.Len(t, s.buckets, 1)
	assert.Contains(t, s.buckets, "ip:b")
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/journal/:id", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/journal/12", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	mw := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(mw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, mw.Body.String(), `route="/api/journal/:id"`)
}
