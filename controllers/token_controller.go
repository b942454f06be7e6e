package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

// TokenController exposes the token ledger of the current user.
type TokenController struct {
	db     *gorm.DB
	ledger *services.Ledger
}

// NewTokenController creates a TokenController.
func NewTokenController(db *gorm.DB, ledger *services.Ledger) *TokenController {
	return &TokenController{db: db, ledger: ledger}
}

// History returns the wallet and its transactions, newest first.
func (t *TokenController) History(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := t.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
		return
	}

	var txns []models.TokenTransaction
	if err := t.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&txns).Error; err != nil {
		utils.ServerError(ctx, 50060, "Error fetching token history", err)
		return
	}

	utils.Success(ctx, gin.H{
		"balance":      user.Tokens.Balance,
		"lifetime":     user.Tokens.Lifetime,
		"lastUpdated":  user.Tokens.LastUpdated,
		"transactions": txns,
	})
}

// Create applies a manual transaction to the caller's wallet.
func (t *TokenController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Amount      int    `json:"amount"`
		Type        string `json:"type"`
		Source      string `json:"source"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40065, "invalid request payload")
		return
	}
	req.Description = utils.StripTags(req.Description)
	if req.Amount == 0 || req.Type == "" || strings.TrimSpace(req.Source) == "" || req.Description == "" {
		utils.Error(ctx, http.StatusBadRequest, 40060, "All fields are required")
		return
	}
	if req.Type != models.TokenEarned && req.Type != models.TokenSpent {
		utils.Error(ctx, http.StatusBadRequest, 40061, "Type must be either earned or spent")
		return
	}
	if req.Amount < 0 {
		utils.Error(ctx, http.StatusBadRequest, 40062, "amount must be positive")
		return
	}
	if !models.ValidTokenSource(req.Source) {
		utils.Error(ctx, http.StatusBadRequest, 40063, "unknown token source")
		return
	}

	txn, wallet, err := t.ledger.Apply(ctx.Request.Context(), userID, services.Entry{
		Amount: req.Amount, Type: req.Type, Source: req.Source, Description: req.Description,
	})
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		utils.Error(ctx, http.StatusBadRequest, 40064, "Insufficient token balance")
		return
	case errors.Is(err, services.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
		return
	case err != nil:
		utils.ServerError(ctx, 50061, "Error updating tokens", err)
		return
	}
	utils.Invalidate(utils.CacheUserPrefix(userID))

	utils.Success(ctx, gin.H{"token": txn, "newBalance": wallet.Balance})
}

// Audit compares a user's stored wallet with the sum of their transactions. Admin only.
func (t *TokenController) Audit(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40360, "admin only")
		return
	}
	userID, ok := parseIDParam(ctx, "userId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40066, "invalid user id")
		return
	}

	var user models.User
	if err := t.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
			return
		}
		utils.ServerError(ctx, 50062, "Error auditing tokens", err)
		return
	}
	expected, err := t.ledger.Reconcile(ctx.Request.Context(), userID)
	if err != nil {
		utils.ServerError(ctx, 50062, "Error auditing tokens", err)
		return
	}

	utils.Success(ctx, gin.H{
		"userId":     userID,
		"stored":     user.Tokens,
		"reconciled": expected,
		"consistent": expected.Balance == user.Tokens.Balance && expected.Lifetime == user.Tokens.Lifetime,
	})
}
