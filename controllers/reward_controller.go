package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

// RewardController serves the rewards catalog and redemption.
type RewardController struct {
	db     *gorm.DB
	ledger *services.Ledger
}

// NewRewardController creates a RewardController.
func NewRewardController(db *gorm.DB, ledger *services.Ledger) *RewardController {
	return &RewardController{db: db, ledger: ledger}
}

// List returns the available rewards, cheapest first.
func (r *RewardController) List(ctx *gin.Context) {
	var rewards []models.Reward
	if err := r.db.Where("available = ?", true).Order("token_cost ASC").Order("id ASC").Find(&rewards).Error; err != nil {
		utils.ServerError(ctx, 50070, "Error fetching rewards", err)
		return
	}
	utils.Success(ctx, rewards)
}

// Create adds a reward to the catalog. Admin only.
func (r *RewardController) Create(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40370, "admin only")
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ImageURL    string `json:"imageUrl"`
		TokenCost   int    `json:"tokenCost"`
		Category    string `json:"category"`
		Available   *bool  `json:"available"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid request payload")
		return
	}

	reward := models.Reward{
		Title:       utils.StripTags(req.Title),
		Description: utils.StripTags(req.Description),
		ImageURL:    strings.TrimSpace(req.ImageURL),
		TokenCost:   req.TokenCost,
		Category:    strings.TrimSpace(req.Category),
		Available:   req.Available == nil || *req.Available,
	}
	if reward.Category == "" {
		reward.Category = "other"
	}
	if reward.Title == "" || reward.Description == "" {
		utils.Error(ctx, http.StatusBadRequest, 40071, "title and description are required")
		return
	}
	if reward.TokenCost <= 0 {
		utils.Error(ctx, http.StatusBadRequest, 40072, "tokenCost must be positive")
		return
	}
	if !models.ValidRewardCategory(reward.Category) {
		utils.Error(ctx, http.StatusBadRequest, 40073, "category must be therapy, content, plant or other")
		return
	}
	if reward.ImageURL != "" {
		if u, err := url.Parse(reward.ImageURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			utils.Error(ctx, http.StatusBadRequest, 40074, "imageUrl must be an http(s) URL")
			return
		}
	}

	if err := r.db.Create(&reward).Error; err != nil {
		utils.ServerError(ctx, 50071, "failed to create reward", err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", reward)
}

// Redeem spends the reward's token cost from the caller's wallet.
func (r *RewardController) Redeem(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40470, "Reward not found")
		return
	}

	var reward models.Reward
	if err := r.db.Where("id = ? AND available = ?", id, true).First(&reward).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40470, "Reward not found")
			return
		}
		utils.ServerError(ctx, 50072, "failed to load reward", err)
		return
	}

	txn, wallet, err := r.ledger.Apply(ctx.Request.Context(), userID, services.Entry{
		Amount:      reward.TokenCost,
		Type:        models.TokenSpent,
		Source:      models.SourceRedemption,
		Description: "Redeemed reward: " + reward.Title,
	})
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.Error(ctx, http.StatusBadRequest, 40075, "Insufficient token balance")
		return
	case err != nil:
		utils.ServerError(ctx, 50073, "failed to redeem reward", err)
		return
	}
	utils.Invalidate(utils.CacheUserPrefix(userID))

	utils.Success(ctx, gin.H{"reward": reward, "transaction": txn, "newBalance": wallet.Balance})
}
