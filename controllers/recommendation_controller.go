package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

const (
	feedbackAward   = 2
	completionAward = 5
)

// RecommendationController lists recommendations and records user feedback.
type RecommendationController struct {
	db     *gorm.DB
	ledger *services.Ledger
}

// NewRecommendationController creates a RecommendationController.
func NewRecommendationController(db *gorm.DB, ledger *services.Ledger) *RecommendationController {
	return &RecommendationController{db: db, ledger: ledger}
}

// List returns the recommendations of the last 7 days, newest first.
func (r *RecommendationController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	since := time.Now().AddDate(0, 0, -7)
	var recs []models.Recommendation
	if err := r.db.Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		utils.ServerError(ctx, 50030, "Error fetching recommendations", err)
		return
	}
	utils.Success(ctx, recs)
}

func (r *RecommendationController) loadOwned(ctx *gin.Context, userID, id uint) (*models.Recommendation, bool) {
	var rec models.Recommendation
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40430, "Recommendation not found")
			return nil, false
		}
		utils.ServerError(ctx, 50031, "failed to load recommendation", err)
		return nil, false
	}
	return &rec, true
}

// Feedback stores whether a recommendation helped. The first helpful vote earns tokens.
func (r *RecommendationController) Feedback(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		RecommendationID uint  `json:"recommendationId" binding:"required"`
		Helpful          *bool `json:"helpful" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "recommendationId and helpful are required")
		return
	}

	rec, ok := r.loadOwned(ctx, userID, req.RecommendationID)
	if !ok {
		return
	}

	now := time.Now()
	feedback := map[string]interface{}{"feedback_helpful": *req.Helpful, "feedback_timestamp": now}
	if *req.Helpful {
		// the award is tied to feedback_awarded, which never resets
		txn, _, err := r.ledger.ApplyWith(ctx.Request.Context(), userID, services.Entry{
			Amount:      feedbackAward,
			Type:        models.TokenEarned,
			Source:      models.SourceRecommendation,
			Description: "Provided feedback on recommendation",
		}, func(tx *gorm.DB) (bool, error) {
			if err := tx.Model(&models.Recommendation{}).Where("id = ?", rec.ID).Updates(feedback).Error; err != nil {
				return false, err
			}
			res := tx.Model(&models.Recommendation{}).
				Where("id = ? AND feedback_awarded = ?", rec.ID, false).
				Update("feedback_awarded", true)
			return res.RowsAffected == 1, res.Error
		})
		if err != nil {
			utils.ServerError(ctx, 50032, "Error submitting feedback", err)
			return
		}
		if txn != nil {
			utils.Invalidate(utils.CacheUserPrefix(userID))
		}
	} else if err := r.db.Model(&models.Recommendation{}).Where("id = ?", rec.ID).Updates(feedback).Error; err != nil {
		utils.ServerError(ctx, 50032, "Error submitting feedback", err)
		return
	}

	rec.Feedback = models.RecommendationFeedback{Helpful: req.Helpful, Timestamp: &now}
	utils.Success(ctx, rec)
}

// Complete marks a recommendation done. Tokens are granted the first time only.
func (r *RecommendationController) Complete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40430, "Recommendation not found")
		return
	}

	rec, ok := r.loadOwned(ctx, userID, id)
	if !ok {
		return
	}

	txn, wallet, err := r.ledger.ApplyWith(ctx.Request.Context(), userID, services.Entry{
		Amount:      completionAward,
		Type:        models.TokenEarned,
		Source:      models.SourceRecommendation,
		Description: "Completed recommendation: " + rec.Title,
	}, func(tx *gorm.DB) (bool, error) {
		res := tx.Model(&models.Recommendation{}).
			Where("id = ? AND is_completed = ?", rec.ID, false).
			Update("is_completed", true)
		return res.RowsAffected == 1, res.Error
	})
	if err != nil {
		utils.ServerError(ctx, 50034, "Error marking recommendation as completed", err)
		return
	}
	rec.IsCompleted = true

	awarded := 0
	if txn != nil {
		awarded = completionAward
		utils.Invalidate(utils.CacheUserPrefix(userID))
	}

	utils.Success(ctx, gin.H{
		"recommendation": rec,
		"tokensAwarded":  awarded,
		"newBalance":     wallet.Balance,
	})
}
