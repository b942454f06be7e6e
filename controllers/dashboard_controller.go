package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/utils"
)

const dashboardCacheTTL = 10 * time.Minute

// DashboardStats summarizes a user's activity for the home screen.
type DashboardStats struct {
	StreakCount       int        `json:"streakCount"`
	TotalCheckIns     int64      `json:"totalCheckIns"`
	LastCheckIn       *time.Time `json:"lastCheckIn"`
	CurrentMood       *string    `json:"currentMood"`
	CompletedJournals int64      `json:"completedJournals"`
	TokenBalance      int        `json:"tokenBalance"`
}

// DashboardController provides per-user statistics.
type DashboardController struct {
	db *gorm.DB
}

// NewDashboardController creates a new DashboardController instance.
func NewDashboardController(db *gorm.DB) *DashboardController {
	return &DashboardController{db: db}
}

// Stats returns the dashboard statistics of the current user.
func (d *DashboardController) Stats(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	stats, err := utils.Cached(ctx.Request.Context(), utils.CacheDashboardKey(userID), dashboardCacheTTL, func() (DashboardStats, error) {
		return d.collect(userID)
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
	case err != nil:
		utils.ServerError(ctx, 50080, "Error fetching dashboard stats", err)
	default:
		utils.Success(ctx, stats)
	}
}

func (d *DashboardController) collect(userID uint) (DashboardStats, error) {
	var user models.User
	if err := d.db.First(&user, userID).Error; err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{
		StreakCount:  user.Streak.Count,
		TokenBalance: user.Tokens.Balance,
	}
	if err := d.db.Model(&models.CheckIn{}).Where("user_id = ?", userID).Count(&stats.TotalCheckIns).Error; err != nil {
		return stats, fmt.Errorf("count check-ins: %w", err)
	}
	if err := d.db.Model(&models.Journal{}).Where("user_id = ?", userID).Count(&stats.CompletedJournals).Error; err != nil {
		return stats, fmt.Errorf("count journals: %w", err)
	}

	var last models.CheckIn
	err := d.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").First(&last).Error
	switch {
	case err == nil:
		stats.LastCheckIn = &last.CreatedAt
		stats.CurrentMood = &last.Mood
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return stats, fmt.Errorf("last check-in: %w", err)
	}
	return stats, nil
}
