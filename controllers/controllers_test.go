package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/middleware"
	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	dir, err := os.MkdirTemp("", "moodbloom-controllers")
	if err != nil {
		panic(err)
	}
	config.Override(config.AppConfig{
		JWTSecret:   "controllers-test-secret",
		UploadDir:   dir,
		AdminEmails: []string{"admin@moodbloom.app"},
	})
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type fakeAnalyzer struct {
	mu        sync.Mutex
	analysis  *services.Analysis
	err       error
	recs      []services.SuggestedRecommendation
	summary   *services.SummaryInsights
	textCalls int
	tokens    []string
}

func (f *fakeAnalyzer) record(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
}

func (f *fakeAnalyzer) AnalyzeText(_ context.Context, token, _ string) (*services.Analysis, error) {
	f.record(token)
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *fakeAnalyzer) AnalyzeVoice(_ context.Context, token, _ string, audio io.Reader) (*services.Analysis, error) {
	f.record(token)
	if _, err := io.ReadAll(audio); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis, nil
}

func (f *fakeAnalyzer) GenerateRecommendations(_ context.Context, token string, _ services.RecommendationRequest) ([]services.SuggestedRecommendation, error) {
	f.record(token)
	if f.err != nil {
		return nil, f.err
	}
	return f.recs, nil
}

func (f *fakeAnalyzer) GenerateSummary(_ context.Context, token string, _ []services.SummaryCheckIn) (*services.SummaryInsights, error) {
	f.record(token)
	if f.err != nil {
		return nil, f.err
	}
	if f.summary == nil {
		return &services.SummaryInsights{}, nil
	}
	return f.summary, nil
}

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	ledger *services.Ledger
	ai     *fakeAnalyzer
	router *gin.Engine
	auth   gin.HandlerFunc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	return &testEnv{
		t:      t,
		db:     db,
		ledger: services.NewLedger(db),
		ai: &fakeAnalyzer{analysis: &services.Analysis{
			Mood: "happy", MoodScore: 8, EnergyLevel: 7, SentimentScore: 0.9,
			EmotionalState: "joy", DetectedEmotions: []string{"joy"},
		}},
		router: gin.New(),
		auth:   middleware.AuthRequired(),
	}
}

// user creates an account with password "secret1" and returns it with a token.
func (e *testEnv) user(email string) (models.User, string) {
	e.t.Helper()
	hash, err := utils.HashPassword("secret1")
	require.NoError(e.t, err)
	u := models.User{Name: strings.Split(email, "@")[0], Email: email, PasswordHash: hash}
	require.NoError(e.t, e.db.Create(&u).Error)
	token, err := utils.GenerateToken(u.ID, u.Email, time.Hour)
	require.NoError(e.t, err)
	return u, token
}

func (e *testEnv) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// rawRequest sends body verbatim as JSON, for payloads that do not parse.
func (e *testEnv) rawRequest(method, path, body, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decode asserts the status and unmarshals the envelope data into out.
func decode(t *testing.T, w *httptest.ResponseRecorder, status int, out any) envelope {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func (e *testEnv) balance(userID uint) int {
	e.t.Helper()
	var u models.User
	require.NoError(e.t, e.db.First(&u, userID).Error)
	return u.Tokens.Balance
}
