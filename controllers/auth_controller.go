package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/utils"
)

// AuthController handles registration, login and session endpoints.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register creates an account with a bcrypt-hashed password and issues a JWT.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "name, email and password are required")
		return
	}

	name := utils.StripTags(req.Name)
	if name == "" || len([]rune(name)) > 100 {
		utils.Error(ctx, http.StatusBadRequest, 40002, "name must be between 1 and 100 characters")
		return
	}
	if len(req.Password) < utils.MinPasswordLength {
		utils.Error(ctx, http.StatusBadRequest, 40003, "password must be at least 6 characters")
		return
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = models.RoleOther
	}
	if !models.ValidRole(role) {
		utils.Error(ctx, http.StatusBadRequest, 40004, "role must be student, professional or other")
		return
	}

	email := normalizeEmail(req.Email)
	var count int64
	if err := a.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.ServerError(ctx, 50001, "failed to check email", err)
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "User already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.ServerError(ctx, 50002, "failed to hash password", err)
		return
	}

	user := models.User{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := a.db.Create(&user).Error; err != nil {
		utils.ServerError(ctx, 50003, "failed to create user", err)
		return
	}

	a.issueToken(ctx, user, http.StatusCreated)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40005, "email and password are required")
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "Invalid credentials")
			return
		}
		utils.ServerError(ctx, 50004, "failed to load user", err)
		return
	}
	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "Invalid credentials")
		return
	}

	a.issueToken(ctx, user, http.StatusOK)
}

func (a *AuthController) issueToken(ctx *gin.Context, user models.User, status int) {
	token, err := utils.GenerateToken(user.ID, user.Email, tokenTTL())
	if err != nil {
		utils.ServerError(ctx, 50005, "failed to generate token", err)
		return
	}
	utils.Respond(ctx, status, 0, "success", gin.H{
		"token": token,
		"user":  newUserResponse(user),
	})
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := callerToken(ctx)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(tokenTTL())
	if claims.RegisteredClaims.ExpiresAt != nil {
		expiresAt = claims.RegisteredClaims.ExpiresAt.Time
	}

	utils.BlacklistToken(token, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "User not found")
		return
	}

	utils.Success(ctx, newUserResponse(user))
}
