package controllers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

const summaryDownloadPrefix = "/api/summaries/download/"

// SummaryController generates and serves weekly PDF summaries.
type SummaryController struct {
	db       *gorm.DB
	analyzer services.MoodAnalyzer
	dir      string
}

// NewSummaryController creates a SummaryController writing PDFs under the upload dir.
func NewSummaryController(db *gorm.DB, analyzer services.MoodAnalyzer) *SummaryController {
	return &SummaryController{
		db:       db,
		analyzer: analyzer,
		dir:      filepath.Join(config.Get().UploadDir, "summaries"),
	}
}

// List returns the user's summaries, newest first.
func (s *SummaryController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var items []models.Summary
	if err := s.db.Where("user_id = ?", userID).Order("date DESC").Order("id DESC").Find(&items).Error; err != nil {
		utils.ServerError(ctx, 50040, "Error fetching summaries", err)
		return
	}
	utils.Success(ctx, items)
}

// Generate builds a summary of the last 7 days of check-ins.
func (s *SummaryController) Generate(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	now := time.Now()
	var checkIns []models.CheckIn
	if err := s.db.Where("user_id = ? AND created_at >= ?", userID, now.AddDate(0, 0, -7)).
		Order("created_at ASC").Order("id ASC").Find(&checkIns).Error; err != nil {
		utils.ServerError(ctx, 50041, "Error generating summary", err)
		return
	}
	if len(checkIns) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40040, "Not enough check-ins to generate a summary")
		return
	}

	payload := make([]services.SummaryCheckIn, 0, len(checkIns))
	ids := make([]uint, 0, len(checkIns))
	for _, ci := range checkIns {
		ids = append(ids, ci.ID)
		payload = append(payload, services.SummaryCheckIn{
			Mood:             ci.Mood,
			MoodScore:        ci.MoodScore,
			EnergyLevel:      ci.EnergyLevel,
			EmotionalState:   ci.EmotionalState,
			DetectedEmotions: ci.DetectedEmotions,
			SentimentScore:   ci.SentimentScore,
			CreatedAt:        ci.CreatedAt,
		})
	}

	insights, recommendations := services.DefaultInsights, services.DefaultRecommendations
	if out, err := s.analyzer.GenerateSummary(ctx.Request.Context(), callerToken(ctx), payload); err != nil {
		utils.Logger.Warn("summary generation failed, using fallback text", zap.Uint("user_id", userID), zap.Error(err))
	} else {
		if out.Insights != "" {
			insights = out.Insights
		}
		if out.Recommendations != "" {
			recommendations = out.Recommendations
		}
	}

	fileName := services.SummaryFileName(userID, now)
	pdfPath := filepath.Join(s.dir, fileName)
	if err := services.WriteSummaryPDF(pdfPath, services.SummaryDocument{
		GeneratedAt:     now,
		CheckIns:        checkIns,
		Insights:        insights,
		Recommendations: recommendations,
	}); err != nil {
		utils.ServerError(ctx, 50042, "Error generating summary", err)
		return
	}

	summary := models.Summary{
		UserID:          userID,
		Date:            now,
		Available:       true,
		URL:             summaryDownloadPrefix + fileName,
		FileName:        fileName,
		PDFPath:         pdfPath,
		CheckIns:        ids,
		Insights:        insights,
		Recommendations: recommendations,
	}
	if err := s.db.Create(&summary).Error; err != nil {
		_ = os.Remove(pdfPath)
		utils.ServerError(ctx, 50043, "Error generating summary", err)
		return
	}

	utils.Respond(ctx, http.StatusCreated, 0, "success", summary)
}

// Download streams a summary PDF owned by the caller. Unknown and foreign
// file names are indistinguishable.
func (s *SummaryController) Download(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	name := filepath.Base(ctx.Param("filename"))
	var summary models.Summary
	if err := s.db.Where("user_id = ? AND file_name = ?", userID, name).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40440, "Summary not found")
			return
		}
		utils.ServerError(ctx, 50044, "Error downloading summary", err)
		return
	}

	if _, err := os.Stat(summary.PDFPath); err != nil {
		utils.Error(ctx, http.StatusNotFound, 40440, "Summary not found")
		return
	}
	ctx.FileAttachment(summary.PDFPath, summary.FileName)
}
