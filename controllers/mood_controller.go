package controllers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

const recommendationTimeout = 30 * time.Second

// Column sizes of check_ins.mood and check_ins.emotional_state.
const (
	maxMoodLength           = 32
	maxEmotionalStateLength = 64
)

// MoodController handles mood analysis, check-ins and history.
type MoodController struct {
	db        *gorm.DB
	ledger    *services.Ledger
	analyzer  services.MoodAnalyzer
	uploadDir string
	retention time.Duration
	// dispatch runs post-check-in work off the request path.
	dispatch func(func())
}

// NewMoodController creates a MoodController.
func NewMoodController(db *gorm.DB, ledger *services.Ledger, analyzer services.MoodAnalyzer) *MoodController {
	cfg := config.Get()
	return &MoodController{
		db:        db,
		ledger:    ledger,
		analyzer:  analyzer,
		uploadDir: cfg.UploadDir,
		retention: time.Duration(cfg.AudioRetentionHours) * time.Hour,
		dispatch:  func(fn func()) { go fn() },
	}
}

// AnalyzeVoice stores an uploaded recording and returns the AI analysis of it.
func (m *MoodController) AnalyzeVoice(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	header, err := ctx.FormFile("audio")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "No audio file provided")
		return
	}

	path, err := utils.SaveUpload(header, filepath.Join(m.uploadDir, "audio"), "voice", utils.AudioUploadRule)
	switch {
	case errors.Is(err, utils.ErrFileTooLarge):
		utils.Error(ctx, http.StatusBadRequest, 40011, "audio file exceeds 10MB")
		return
	case errors.Is(err, utils.ErrUnsupportedFileType):
		utils.Error(ctx, http.StatusBadRequest, 40012, "audio must be webm, mp3, wav or ogg")
		return
	case err != nil:
		utils.ServerError(ctx, 50010, "failed to store audio", err)
		return
	}

	record := models.UploadedFile{UserID: userID, FilePath: path, ExpireAt: time.Now().Add(m.retention)}
	if err := m.db.Create(&record).Error; err != nil {
		_ = os.Remove(path)
		utils.ServerError(ctx, 50011, "failed to register audio", err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		utils.ServerError(ctx, 50012, "failed to read audio", err)
		return
	}
	defer f.Close()

	analysis, err := m.analyzer.AnalyzeVoice(ctx.Request.Context(), callerToken(ctx), filepath.Base(path), f)
	if err != nil {
		utils.Logger.Warn("voice analysis failed", zap.Uint("user_id", userID), zap.Error(err))
		utils.Error(ctx, http.StatusBadGateway, 50201, "Error analyzing voice")
		return
	}

	utils.Success(ctx, gin.H{"analysis": analysis, "audioPath": path})
}

// AnalyzeText returns the AI analysis of a piece of text.
func (m *MoodController) AnalyzeText(ctx *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40013, "Text is required")
		return
	}

	analysis, err := m.analyzer.AnalyzeText(ctx.Request.Context(), callerToken(ctx), req.Text)
	if err != nil {
		utils.Logger.Warn("text analysis failed", zap.Error(err))
		utils.Error(ctx, http.StatusBadGateway, 50202, "Error analyzing text")
		return
	}
	utils.Success(ctx, analysis)
}

type checkInRequest struct {
	Mood             string   `json:"mood"`
	MoodScore        int      `json:"moodScore"`
	EnergyLevel      int      `json:"energyLevel"`
	EmotionalState   string   `json:"emotionalState"`
	DetectedEmotions []string `json:"detectedEmotions"`
	SentimentScore   float64  `json:"sentimentScore"`
	Method           string   `json:"method"`
	Text             string   `json:"text"`
	AudioPath        string   `json:"audioPath"`
}

// CheckIn records a mood check-in, advances the streak and grants any award.
// Recommendations for the new mood are requested in the background.
func (m *MoodController) CheckIn(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req checkInRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40014, "invalid request payload")
		return
	}
	if req.Method != models.MethodVoice && req.Method != models.MethodText {
		utils.Error(ctx, http.StatusBadRequest, 40015, "method must be voice or text")
		return
	}

	checkIn := models.CheckIn{
		UserID:           userID,
		Mood:             strings.TrimSpace(req.Mood),
		MoodScore:        req.MoodScore,
		EnergyLevel:      req.EnergyLevel,
		EmotionalState:   strings.TrimSpace(req.EmotionalState),
		DetectedEmotions: req.DetectedEmotions,
		SentimentScore:   req.SentimentScore,
		Method:           req.Method,
		Text:             strings.TrimSpace(req.Text),
	}
	if utf8.RuneCountInString(checkIn.Mood) > maxMoodLength || utf8.RuneCountInString(checkIn.EmotionalState) > maxEmotionalStateLength {
		utils.Error(ctx, http.StatusBadRequest, 40019, "mood must be at most 32 and emotionalState at most 64 characters")
		return
	}

	if req.AudioPath != "" {
		var n int64
		if err := m.db.Model(&models.UploadedFile{}).Where("user_id = ? AND file_path = ?", userID, req.AudioPath).Count(&n).Error; err != nil {
			utils.ServerError(ctx, 50013, "failed to verify audio", err)
			return
		}
		if n == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40016, "unknown audioPath")
			return
		}
		checkIn.AudioPath = req.AudioPath
	}

	if checkIn.Mood == "" {
		if checkIn.Text == "" {
			utils.Error(ctx, http.StatusBadRequest, 40017, "mood or text is required")
			return
		}
		m.fillFromAnalysis(ctx, &checkIn)
	}

	if checkIn.EmotionalState == "" {
		checkIn.EmotionalState = "neutral"
	}
	if checkIn.MoodScore < 1 || checkIn.MoodScore > 10 || checkIn.EnergyLevel < 1 || checkIn.EnergyLevel > 10 {
		utils.Error(ctx, http.StatusBadRequest, 40018, "moodScore and energyLevel must be between 1 and 10")
		return
	}

	result, err := m.ledger.RecordCheckIn(ctx.Request.Context(), &checkIn)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
			return
		}
		utils.ServerError(ctx, 50014, "Server error", err)
		return
	}
	utils.Invalidate(utils.CacheUserPrefix(userID))

	token := callerToken(ctx)
	saved := result.CheckIn
	m.dispatch(func() { m.storeRecommendations(token, saved) })

	utils.Respond(ctx, http.StatusCreated, 0, "success", result)
}

// fillFromAnalysis runs text analysis; failures fall back to a neutral reading.
func (m *MoodController) fillFromAnalysis(ctx *gin.Context, checkIn *models.CheckIn) {
	analysis, err := m.analyzer.AnalyzeText(ctx.Request.Context(), callerToken(ctx), checkIn.Text)
	if err != nil {
		utils.Logger.Warn("check-in analysis failed, using neutral mood", zap.Uint("user_id", checkIn.UserID), zap.Error(err))
		checkIn.Mood = "neutral"
		checkIn.EmotionalState = "neutral"
		checkIn.MoodScore = 5
		checkIn.EnergyLevel = 5
		checkIn.SentimentScore = 0
		checkIn.AnalysisFailed = true
		return
	}

	checkIn.Mood = truncateRunes(analysis.Mood, maxMoodLength)
	checkIn.MoodScore = clampScore(analysis.MoodScore)
	checkIn.EnergyLevel = clampScore(analysis.EnergyLevel)
	checkIn.SentimentScore = analysis.SentimentScore
	checkIn.EmotionalState = truncateRunes(analysis.EmotionalState, maxEmotionalStateLength)
	checkIn.DetectedEmotions = analysis.DetectedEmotions
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func clampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func (m *MoodController) storeRecommendations(token string, checkIn models.CheckIn) {
	ctx, cancel := context.WithTimeout(context.Background(), recommendationTimeout)
	defer cancel()

	suggested, err := m.analyzer.GenerateRecommendations(ctx, token, services.RecommendationRequest{
		UserID:           checkIn.UserID,
		Mood:             checkIn.Mood,
		MoodScore:        checkIn.MoodScore,
		EnergyLevel:      checkIn.EnergyLevel,
		EmotionalState:   checkIn.EmotionalState,
		DetectedEmotions: checkIn.DetectedEmotions,
	})
	if err != nil {
		utils.Logger.Warn("recommendation generation failed", zap.Uint("user_id", checkIn.UserID), zap.Error(err))
		return
	}

	recs := make([]models.Recommendation, 0, len(suggested))
	for _, s := range suggested {
		if !models.ValidRecommendationType(s.Type) || strings.TrimSpace(s.Title) == "" {
			continue
		}
		mood := s.Mood
		if mood == "" {
			mood = checkIn.Mood
		}
		recs = append(recs, models.Recommendation{
			UserID:      checkIn.UserID,
			Type:        s.Type,
			Title:       utils.StripTags(s.Title),
			Description: utils.StripTags(s.Description),
			Link:        s.Link,
			Source:      "ai",
			Mood:        mood,
		})
	}
	if len(recs) == 0 {
		return
	}
	if err := m.db.WithContext(ctx).Create(&recs).Error; err != nil {
		utils.Logger.Error("store recommendations failed", zap.Uint("user_id", checkIn.UserID), zap.Error(err))
	}
}

// History lists the user's check-ins, newest first.
func (m *MoodController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("limit"))
	var total int64
	if err := m.db.Model(&models.CheckIn{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		utils.ServerError(ctx, 50015, "failed to count check-ins", err)
		return
	}

	var items []models.CheckIn
	if err := m.db.Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&items).Error; err != nil {
		utils.ServerError(ctx, 50016, "failed to load check-ins", err)
		return
	}

	utils.Success(ctx, gin.H{
		"items": items,
		"pagination": gin.H{
			"page":       page,
			"pageSize":   pageSize,
			"total":      total,
			"totalPages": int((total + int64(pageSize) - 1) / int64(pageSize)),
		},
	})
}
