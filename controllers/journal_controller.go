package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

const maxJournalTags = 20

// JournalController manages a user's journal entries.
type JournalController struct {
	db       *gorm.DB
	analyzer services.MoodAnalyzer
}

// NewJournalController creates a JournalController.
func NewJournalController(db *gorm.DB, analyzer services.MoodAnalyzer) *JournalController {
	return &JournalController{db: db, analyzer: analyzer}
}

func withHTML(j models.Journal) models.Journal {
	j.ContentHTML = utils.RenderMarkdown(j.Content)
	return j
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = utils.StripTags(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxJournalTags {
			break
		}
	}
	return out
}

// analyzeMood returns nil when the AI service cannot tag the entry.
func (j *JournalController) analyzeMood(ctx context.Context, token, content string) *string {
	analysis, err := j.analyzer.AnalyzeText(ctx, token, content)
	if err != nil || analysis.Mood == "" {
		if err != nil {
			utils.Logger.Warn("journal analysis failed", zap.Error(err))
		}
		return nil
	}
	mood := analysis.Mood
	return &mood
}

// List returns the user's entries, newest first.
func (j *JournalController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var entries []models.Journal
	if err := j.db.Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&entries).Error; err != nil {
		utils.ServerError(ctx, 50020, "failed to load journal", err)
		return
	}
	for i := range entries {
		entries[i] = withHTML(entries[i])
	}
	utils.Success(ctx, entries)
}

// Create adds an entry. The mood is tagged by the AI service when reachable.
func (j *JournalController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		IsPrivate *bool    `json:"isPrivate"`
		Tags      []string `json:"tags"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	title := utils.StripTags(req.Title)
	content := strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "Title and content are required")
		return
	}
	if len([]rune(title)) > 200 {
		utils.Error(ctx, http.StatusBadRequest, 40022, "title cannot exceed 200 characters")
		return
	}

	entry := models.Journal{
		UserID:    userID,
		Title:     title,
		Content:   content,
		Mood:      j.analyzeMood(ctx.Request.Context(), callerToken(ctx), content),
		Tags:      cleanTags(req.Tags),
		IsPrivate: req.IsPrivate == nil || *req.IsPrivate,
	}
	if err := j.db.Create(&entry).Error; err != nil {
		utils.ServerError(ctx, 50021, "failed to create journal entry", err)
		return
	}
	utils.Invalidate(utils.CacheUserPrefix(userID))

	utils.Respond(ctx, http.StatusCreated, 0, "success", withHTML(entry))
}

func (j *JournalController) loadOwned(ctx *gin.Context) (*models.Journal, bool) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return nil, false
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40420, "Journal entry not found")
		return nil, false
	}

	var entry models.Journal
	if err := j.db.Where("id = ? AND user_id = ?", id, userID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "Journal entry not found")
			return nil, false
		}
		utils.ServerError(ctx, 50022, "failed to load journal entry", err)
		return nil, false
	}
	return &entry, true
}

// Get returns one of the user's entries.
func (j *JournalController) Get(ctx *gin.Context) {
	entry, ok := j.loadOwned(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, withHTML(*entry))
}

// Update edits an entry. The mood is re-analyzed only when the content changed.
func (j *JournalController) Update(ctx *gin.Context) {
	entry, ok := j.loadOwned(ctx)
	if !ok {
		return
	}

	var req struct {
		Title     *string   `json:"title"`
		Content   *string   `json:"content"`
		IsPrivate *bool     `json:"isPrivate"`
		Tags      *[]string `json:"tags"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}

	if req.Title != nil {
		title := utils.StripTags(*req.Title)
		if title == "" || len([]rune(title)) > 200 {
			utils.Error(ctx, http.StatusBadRequest, 40024, "title must be between 1 and 200 characters")
			return
		}
		entry.Title = title
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			utils.Error(ctx, http.StatusBadRequest, 40025, "content cannot be empty")
			return
		}
		if content != entry.Content {
			entry.Content = content
			entry.Mood = j.analyzeMood(ctx.Request.Context(), callerToken(ctx), content)
		}
	}
	if req.IsPrivate != nil {
		entry.IsPrivate = *req.IsPrivate
	}
	if req.Tags != nil {
		entry.Tags = cleanTags(*req.Tags)
	}

	if err := j.db.Save(entry).Error; err != nil {
		utils.ServerError(ctx, 50023, "failed to update journal entry", err)
		return
	}
	utils.Success(ctx, withHTML(*entry))
}

// Delete removes one of the user's entries.
func (j *JournalController) Delete(ctx *gin.Context) {
	entry, ok := j.loadOwned(ctx)
	if !ok {
		return
	}
	if err := j.db.Delete(entry).Error; err != nil {
		utils.ServerError(ctx, 50024, "failed to delete journal entry", err)
		return
	}
	utils.Invalidate(utils.CacheUserPrefix(entry.UserID))
	utils.Success(ctx, gin.H{"message": "Journal entry removed"})
}
