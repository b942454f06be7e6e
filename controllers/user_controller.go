package controllers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/utils"
)

// UserController serves the authenticated user's profile.
type UserController struct {
	db *gorm.DB
}

// NewUserController creates a UserController.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{db: db}
}

// GetProfile returns the current user's profile.
func (u *UserController) GetProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := u.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
		return
	}
	utils.Success(ctx, newUserResponse(user))
}

// UpdateProfile changes name, role or profile picture. Omitted fields are kept.
func (u *UserController) UpdateProfile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Name           *string `json:"name"`
		Role           *string `json:"role"`
		ProfilePicture *string `json:"profilePicture"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40090, "invalid request payload")
		return
	}

	var user models.User
	if err := u.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := utils.StripTags(*req.Name)
		if name == "" || len([]rune(name)) > 100 {
			utils.Error(ctx, http.StatusBadRequest, 40091, "name must be between 1 and 100 characters")
			return
		}
		updates["name"] = name
	}
	if req.Role != nil {
		if !models.ValidRole(*req.Role) {
			utils.Error(ctx, http.StatusBadRequest, 40092, "role must be student, professional or other")
			return
		}
		updates["role"] = *req.Role
	}
	if req.ProfilePicture != nil {
		pic := strings.TrimSpace(*req.ProfilePicture)
		if pic != "" {
			parsed, err := url.Parse(pic)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				utils.Error(ctx, http.StatusBadRequest, 40093, "profilePicture must be an http(s) URL")
				return
			}
		}
		updates["profile_picture"] = pic
	}

	if len(updates) > 0 {
		if err := u.db.Model(&user).Updates(updates).Error; err != nil {
			utils.ServerError(ctx, 50090, "failed to update profile", err)
			return
		}
		if err := u.db.First(&user, userID).Error; err != nil {
			utils.ServerError(ctx, 50091, "failed to reload profile", err)
			return
		}
	}

	utils.Success(ctx, newUserResponse(user))
}
