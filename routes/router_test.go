package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "moodbloom-routes")
	if err != nil {
		panic(err)
	}
	config.Override(config.AppConfig{
		GinMode:        "test",
		GinPath:        filepath.Join(dir, "gin.log"),
		JWTSecret:      "routes-test-secret",
		UploadDir:      dir,
		AllowedOrigins: []string{"https://app.moodbloom.test"},
	})
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:routes?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return SetupRouter(db, services.NewAIClient("http://127.0.0.1:1", "", time.Second))
}

func do(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)

	w = do(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "moodbloom_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	w := do(newRouter(t), http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "40400")
}

func TestRegisterThenProtectedRoute(t *testing.T) {
	r := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/dashboard/stats", "", "").Code)

	w := do(r, http.MethodPost, "/api/auth/register", `{"name":"Route","email":"route@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&env))
	require.NotEmpty(t, env.Data.Token)

	w = do(r, http.MethodGet, "/api/dashboard/stats", "", env.Data.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"streakCount":0`)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://App.moodbloom.test/"})
	req := httptest.NewRequest(http.MethodGet, "/api/community/1/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://app.moodbloom.test")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.test")
	assert.False(t, check(req))
}
