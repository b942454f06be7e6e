package controllers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
)

func moodEnv(t *testing.T) (*testEnv, *MoodController) {
	e := newTestEnv(t)
	m := NewMoodController(e.db, e.ledger, e.ai)
	m.uploadDir = t.TempDir()
	m.dispatch = func(fn func()) { fn() }
	e.router.POST("/mood/analyze-voice", e.auth, m.AnalyzeVoice)
	e.router.POST("/mood/analyze-text", e.auth, m.AnalyzeText)
	e.router.POST("/mood/check-in", e.auth, m.CheckIn)
	e.router.GET("/mood/history", e.auth, m.History)
	return e, m
}

func TestCheckInFirstAwardAndRecommendations(t *testing.T) {
	e, _ := moodEnv(t)
	e.ai.recs = []services.SuggestedRecommendation{
		{Type: "music", Title: "Upbeat Mix", Description: "Songs", Link: "https://example.com/mix"},
		{Type: "podcast", Title: "Ignored", Description: "unknown type"},
	}
	user, token := e.user("first@example.com")

	var res services.CheckInResult
	decode(t, e.request(http.MethodPost, "/mood/check-in", map[string]any{
		"mood": "happy", "moodScore": 8, "energyLevel": 6, "emotionalState": "joy", "method": "text",
	}, token), http.StatusCreated, &res)

	assert.Equal(t, 1, res.Streak.Count)
	assert.Equal(t, models.PlantSprout, res.Streak.PlantLevel)
	require.NotNil(t, res.TokensAwarded)
	assert.Equal(t, services.AwardResult{Amount: 10, Reason: "First check-in", NewBalance: 10}, *res.TokensAwarded)
	assert.Equal(t, 10, e.balance(user.ID))
	assert.Zero(t, e.ai.textCalls, "a check-in with a mood is not analyzed")

	var recs []models.Recommendation
	require.NoError(t, e.db.Where("user_id = ?", user.ID).Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.Equal(t, "ai", recs[0].Source)
	assert.Equal(t, "happy", recs[0].Mood)

	decode(t, e.request(http.MethodPost, "/mood/check-in", map[string]any{
		"mood": "calm", "moodScore": 6, "energyLevel": 5, "method": "text",
	}, token), http.StatusCreated, &res)
	assert.Nil(t, res.TokensAwarded)
	assert.Equal(t, 1, res.Streak.Count)
}

func TestCheckInTextAnalysis(t *testing.T) {
	e, _ := moodEnv(t)
	_, token := e.user("text@example.com")

	var res services.CheckInResult
	decode(t, e.request(http.MethodPost, "/mood/check-in", map[string]any{
		"method": "text", "text": "Had a wonderful day",
	}, token), http.StatusCreated, &res)
	assert.Equal(t, "happy", res.CheckIn.Mood)
	assert.Equal(t, 8, res.CheckIn.MoodScore)
	assert.Equal(t, []string{"joy"}, []string(res.CheckIn.DetectedEmotions))
	assert.False(t, res.CheckIn.AnalysisFailed)
	assert.Equal(t, []string{token, token}, e.ai.tokens)
}

func TestCheckInFallsBackToNeutralWhenAIUnavailable(t *testing.T) {
	e, _ := moodEnv(t)
	e.ai.err = services.ErrAIUnavailable
	user, token := e.user("offline@example.com")

	var res services.CheckInResult
	decode(t, e.request(http.MethodPost, "/mood/check-in", map[string]any{
		"method": "text", "text": "not sure how I feel",
	}, token), http.StatusCreated, &res)

	assert.Equal(t, "neutral", res.CheckIn.Mood)
	assert.Equal(t, "neutral", res.CheckIn.EmotionalState)
	assert.Equal(t, 5, res.CheckIn.MoodScore)
	assert.Equal(t, 5, res.CheckIn.EnergyLevel)
	assert.True(t, res.CheckIn.AnalysisFailed)
	require.NotNil(t, res.TokensAwarded)

	var stored models.CheckIn
	require.NoError(t, e.db.Where("user_id = ?", user.ID).First(&stored).Error)
	assert.True(t, stored.AnalysisFailed)
}

func TestCheckInValidation(t *testing.T) {
	e, _ := moodEnv(t)
	_, token := e.user("invalid@example.com")

	cases := []map[string]any{
		{"mood": "happy", "moodScore": 5, "energyLevel": 5},
		{"mood": "happy", "moodScore": 5, "energyLevel": 5, "method": "telepathy"},
		{"method": "text"},
		{"mood": "happy", "moodScore": 11, "energyLevel": 5, "method": "text"},
		{"mood": "happy", "moodScore": 5, "energyLevel": 5, "method": "voice", "audioPath": "/etc/passwd"},
	}
	for _, body := range cases {
		assert.Equal(t, http.StatusBadRequest, e.request(http.MethodPost, "/mood/check-in", body, token).Code, body)
	}
}

func TestCheckInRejectsOversizedLabels(t *testing.T) {
	e, _ := moodEnv(t)
	user, token := e.user("labels@example.com")

	cases := []map[string]any{
		{"mood": strings.Repeat("m", 33), "moodScore": 5, "energyLevel": 5, "method": "text"},
		{"mood": "calm", "emotionalState": strings.Repeat("é", 65), "moodScore": 5, "energyLevel": 5, "method": "text"},
	}
	for _, body := range cases {
		env := decode(t, e.request(http.MethodPost, "/mood/check-in", body, token), http.StatusBadRequest, nil)
		assert.Equal(t, 40019, env.Code)
	}

	body := map[string]any{"mood": strings.Repeat("m", 32), "emotionalState": strings.Repeat("é", 64), "moodScore": 5, "energyLevel": 5, "method": "text"}
	decode(t, e.request(http.MethodPost, "/mood/check-in", body, token), http.StatusCreated, nil)

	var n int64
	require.NoError(t, e.db.Model(&models.CheckIn{}).Where("user_id = ?", user.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestHistoryNewestFirst(t *testing.T) {
	e, _ := moodEnv(t)
	user, token := e.user("history@example.com")
	other, _ := e.user("other@example.com")

	base := time.Now().Add(-time.Hour)
	for i, mood := range []string{"sad", "calm", "happy"} {
		require.NoError(t, e.db.Create(&models.CheckIn{
			UserID: user.ID, Mood: mood, MoodScore: 5, EnergyLevel: 5, EmotionalState: mood,
			Method: models.MethodText, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
	require.NoError(t, e.db.Create(&models.CheckIn{UserID: other.ID, Mood: "angry", MoodScore: 2, EnergyLevel: 8, EmotionalState: "anger", Method: models.MethodText}).Error)

	var page struct {
		Items []models.CheckIn `json:"items"`
	}
	decode(t, e.request(http.MethodGet, "/mood/history", nil, token), http.StatusOK, &page)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "happy", page.Items[0].Mood)
	assert.Equal(t, "sad", page.Items[2].Mood)
}

func TestAnalyzeText(t *testing.T) {
	e, _ := moodEnv(t)
	_, token := e.user("analyze@example.com")

	assert.Equal(t, http.StatusBadRequest, e.request(http.MethodPost, "/mood/analyze-text", map[string]string{"text": "  "}, token).Code)

	var got services.Analysis
	decode(t, e.request(http.MethodPost, "/mood/analyze-text", map[string]string{"text": "lovely"}, token), http.StatusOK, &got)
	assert.Equal(t, "happy", got.Mood)

	e.ai.err = errors.New("down")
	assert.Equal(t, http.StatusBadGateway, e.request(http.MethodPost, "/mood/analyze-text", map[string]string{"text": "lovely"}, token).Code)
}

func voiceRequest(t *testing.T, filename, contentType string, data []byte, token string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/mood/analyze-voice", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAnalyzeVoiceStoresRecordingForCleanup(t *testing.T) {
	e, m := moodEnv(t)
	user, token := e.user("voice@example.com")
	m.retention = 2 * time.Hour

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, voiceRequest(t, "clip.webm", "audio/webm", []byte("webm-bytes"), token))

	var got struct {
		Analysis  services.Analysis `json:"analysis"`
		AudioPath string            `json:"audioPath"`
	}
	decode(t, w, http.StatusOK, &got)
	assert.Equal(t, "happy", got.Analysis.Mood)
	_, err := os.Stat(got.AudioPath)
	require.NoError(t, err)

	var record models.UploadedFile
	require.NoError(t, e.db.Where("user_id = ?", user.ID).First(&record).Error)
	assert.Equal(t, got.AudioPath, record.FilePath)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), record.ExpireAt, time.Minute)

	// the stored path may be attached to a check-in by its owner
	var res services.CheckInResult
	decode(t, e.request(http.MethodPost, "/mood/check-in", map[string]any{
		"mood": "happy", "moodScore": 7, "energyLevel": 6, "method": "voice", "audioPath": got.AudioPath,
	}, token), http.StatusCreated, &res)
	assert.Equal(t, got.AudioPath, res.CheckIn.AudioPath)
}

func TestAnalyzeVoiceRejectsBadUploads(t *testing.T) {
	e, _ := moodEnv(t)
	_, token := e.user("badvoice@example.com")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, voiceRequest(t, "notes.txt", "text/plain", []byte("hello"), token))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, voiceRequest(t, "clip.mp3", "application/x-msdownload", []byte("MZ"), token))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
