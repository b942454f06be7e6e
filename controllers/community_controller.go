package controllers

import (
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

const (
	groupCreationAward    = 15
	participationAward    = 2
	participationChance   = 0.3
	maxMessageLength      = 2000
	communityListCacheTTL = 5 * time.Minute
)

// publicUser is the part of an account other members may see.
type publicUser struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
}

type groupView struct {
	ID          uint         `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	CreatedBy   uint         `json:"createdBy"`
	Members     []publicUser `json:"members"`
	MemberCount int          `json:"memberCount"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type messageView struct {
	ID        uint       `json:"id"`
	GroupID   uint       `json:"groupId"`
	User      publicUser `json:"user"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
}

var seedGroups = []models.CommunityGroup{
	{Name: "Anxiety Support", Description: "A safe space to share experiences and coping strategies for anxiety.", Category: "support"},
	{Name: "Mindfulness Practice", Description: "Group dedicated to sharing mindfulness techniques and daily practices.", Category: "wellness"},
	{Name: "Student Mental Health", Description: "Support group for students dealing with academic stress and pressure.", Category: "students"},
	{Name: "Mood Boosters", Description: "Share positive experiences, achievements, and things that lift your mood.", Category: "positivity"},
	{Name: "Sleep Better", Description: "Discussion group for improving sleep quality and addressing sleep issues.", Category: "wellness"},
}

// CommunityController manages groups, memberships and group chat.
type CommunityController struct {
	db     *gorm.DB
	ledger *services.Ledger
	hub    *services.ChatHub
	// roll returns a number in [0,1) deciding participation awards.
	roll func() float64
}

// NewCommunityController creates a CommunityController.
func NewCommunityController(db *gorm.DB, ledger *services.Ledger, hub *services.ChatHub) *CommunityController {
	return &CommunityController{db: db, ledger: ledger, hub: hub, roll: rand.Float64}
}

func (c *CommunityController) publicUsers(ids []uint) (map[uint]publicUser, error) {
	out := make(map[uint]publicUser, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := c.db.Select("id", "name", "profile_picture").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = publicUser{ID: u.ID, Name: u.Name, ProfilePicture: u.ProfilePicture}
	}
	return out, nil
}

func (c *CommunityController) groupViews(groups []models.CommunityGroup) ([]groupView, error) {
	if len(groups) == 0 {
		return []groupView{}, nil
	}
	groupIDs := make([]uint, len(groups))
	for i, g := range groups {
		groupIDs[i] = g.ID
	}

	var members []models.CommunityMember
	if err := c.db.Where("group_id IN ?", groupIDs).Order("id ASC").Find(&members).Error; err != nil {
		return nil, err
	}
	userIDs := make([]uint, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := c.publicUsers(userIDs)
	if err != nil {
		return nil, err
	}

	byGroup := map[uint][]publicUser{}
	for _, m := range members {
		if u, ok := users[m.UserID]; ok {
			byGroup[m.GroupID] = append(byGroup[m.GroupID], u)
		}
	}

	views := make([]groupView, len(groups))
	for i, g := range groups {
		ms := byGroup[g.ID]
		if ms == nil {
			ms = []publicUser{}
		}
		views[i] = groupView{
			ID: g.ID, Name: g.Name, Description: g.Description, Category: g.Category,
			CreatedBy: g.CreatedBy, Members: ms, MemberCount: len(ms), CreatedAt: g.CreatedAt,
		}
	}
	return views, nil
}

func (c *CommunityController) groupView(group models.CommunityGroup) (groupView, error) {
	views, err := c.groupViews([]models.CommunityGroup{group})
	if err != nil {
		return groupView{}, err
	}
	return views[0], nil
}

func (c *CommunityController) loadGroup(ctx *gin.Context) (*models.CommunityGroup, bool) {
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusNotFound, 40450, "Group not found")
		return nil, false
	}
	var group models.CommunityGroup
	if err := c.db.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40450, "Group not found")
			return nil, false
		}
		utils.ServerError(ctx, 50050, "Error fetching community group", err)
		return nil, false
	}
	return &group, true
}

func (c *CommunityController) isMember(groupID, userID uint) (bool, error) {
	var n int64
	err := c.db.Model(&models.CommunityMember{}).Where("group_id = ? AND user_id = ?", groupID, userID).Count(&n).Error
	return n > 0, err
}

// List returns all groups, newest first.
func (c *CommunityController) List(ctx *gin.Context) {
	views, err := utils.Cached(ctx.Request.Context(), utils.CacheCommunityList, communityListCacheTTL, func() ([]groupView, error) {
		var groups []models.CommunityGroup
		if err := c.db.Order("created_at DESC").Order("id DESC").Find(&groups).Error; err != nil {
			return nil, err
		}
		return c.groupViews(groups)
	})
	if err != nil {
		utils.ServerError(ctx, 50051, "Error fetching community groups", err)
		return
	}
	utils.Success(ctx, views)
}

// Get returns one group with its members and messages.
func (c *CommunityController) Get(ctx *gin.Context) {
	group, ok := c.loadGroup(ctx)
	if !ok {
		return
	}
	view, err := c.groupView(*group)
	if err != nil {
		utils.ServerError(ctx, 50050, "Error fetching community group", err)
		return
	}
	messages, err := c.messageViews(group.ID)
	if err != nil {
		utils.ServerError(ctx, 50050, "Error fetching community group", err)
		return
	}
	online := 0
	if c.hub != nil {
		online = c.hub.Subscribers(group.ID)
	}
	utils.Success(ctx, gin.H{"group": view, "messages": messages, "online": online})
}

// Create adds a group with the creator as first member and awards tokens.
func (c *CommunityController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Category    string `json:"category"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40056, "invalid request payload")
		return
	}
	group := models.CommunityGroup{
		Name:        utils.StripTags(req.Name),
		Description: utils.StripTags(req.Description),
		Category:    utils.StripTags(req.Category),
		CreatedBy:   userID,
	}
	if group.Name == "" || group.Description == "" || group.Category == "" {
		utils.Error(ctx, http.StatusBadRequest, 40050, "Please provide all required fields")
		return
	}

	_, _, err := c.ledger.ApplyWith(ctx.Request.Context(), userID, services.Entry{
		Amount:      groupCreationAward,
		Type:        models.TokenEarned,
		Source:      models.SourceCommunity,
		Description: "Created a new community group",
	}, func(tx *gorm.DB) (bool, error) {
		if err := tx.Create(&group).Error; err != nil {
			return false, err
		}
		return true, tx.Create(&models.CommunityMember{GroupID: group.ID, UserID: userID}).Error
	})
	if err != nil {
		utils.ServerError(ctx, 50052, "Error creating community group", err)
		return
	}
	utils.Invalidate(utils.CacheCommunityPrefix, utils.CacheUserPrefix(userID))

	view, err := c.groupView(group)
	if err != nil {
		utils.ServerError(ctx, 50052, "Error creating community group", err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", view)
}

// Join adds the caller to a group.
func (c *CommunityController) Join(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	group, ok := c.loadGroup(ctx)
	if !ok {
		return
	}

	member, err := c.isMember(group.ID, userID)
	if err != nil {
		utils.ServerError(ctx, 50054, "Error joining community group", err)
		return
	}
	if member {
		utils.Error(ctx, http.StatusBadRequest, 40051, "Already a member of this group")
		return
	}
	if err := c.db.Create(&models.CommunityMember{GroupID: group.ID, UserID: userID}).Error; err != nil {
		// the unique pair index catches a concurrent join
		utils.Error(ctx, http.StatusBadRequest, 40051, "Already a member of this group")
		return
	}
	utils.Invalidate(utils.CacheCommunityPrefix)

	view, err := c.groupView(*group)
	if err != nil {
		utils.ServerError(ctx, 50054, "Error joining community group", err)
		return
	}
	utils.Success(ctx, view)
}

// Leave removes the caller from a group.
func (c *CommunityController) Leave(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	group, ok := c.loadGroup(ctx)
	if !ok {
		return
	}

	res := c.db.Where("group_id = ? AND user_id = ?", group.ID, userID).Delete(&models.CommunityMember{})
	if res.Error != nil {
		utils.ServerError(ctx, 50055, "Error leaving community group", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40052, "Not a member of this group")
		return
	}
	utils.Invalidate(utils.CacheCommunityPrefix)

	view, err := c.groupView(*group)
	if err != nil {
		utils.ServerError(ctx, 50055, "Error leaving community group", err)
		return
	}
	utils.Success(ctx, view)
}

// PostMessage appends a message to a group the caller belongs to and pushes
// it to live subscribers. Posting sometimes earns a participation award.
func (c *CommunityController) PostMessage(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40056, "invalid request payload")
		return
	}
	content := utils.StripTags(req.Content)
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40053, "Message content is required")
		return
	}
	if len([]rune(content)) > maxMessageLength {
		utils.Error(ctx, http.StatusBadRequest, 40054, "message cannot exceed 2000 characters")
		return
	}

	group, ok := c.loadGroup(ctx)
	if !ok {
		return
	}
	member, err := c.isMember(group.ID, userID)
	if err != nil {
		utils.ServerError(ctx, 50056, "Error posting message", err)
		return
	}
	if !member {
		utils.Error(ctx, http.StatusForbidden, 40350, "Must be a member to post messages")
		return
	}

	msg := models.CommunityMessage{GroupID: group.ID, UserID: userID, Content: content}
	if err := c.db.Create(&msg).Error; err != nil {
		utils.ServerError(ctx, 50056, "Error posting message", err)
		return
	}

	users, err := c.publicUsers([]uint{userID})
	if err != nil {
		utils.ServerError(ctx, 50056, "Error posting message", err)
		return
	}
	view := messageView{ID: msg.ID, GroupID: msg.GroupID, User: users[userID], Content: msg.Content, CreatedAt: msg.CreatedAt}
	if c.hub != nil {
		c.hub.Broadcast(group.ID, view)
	}

	if c.roll() < participationChance {
		if _, err := c.ledger.Earn(ctx.Request.Context(), userID, participationAward, models.SourceCommunity, "Active participation in community"); err != nil {
			utils.Logger.Error("participation award failed", zap.Uint("user_id", userID), zap.Error(err))
		} else {
			utils.Invalidate(utils.CacheUserPrefix(userID))
		}
	}

	utils.Respond(ctx, http.StatusCreated, 0, "success", view)
}

func (c *CommunityController) messageViews(groupID uint) ([]messageView, error) {
	var msgs []models.CommunityMessage
	if err := c.db.Where("group_id = ?", groupID).Order("created_at ASC").Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.UserID)
	}
	users, err := c.publicUsers(ids)
	if err != nil {
		return nil, err
	}
	views := make([]messageView, len(msgs))
	for i, m := range msgs {
		views[i] = messageView{ID: m.ID, GroupID: m.GroupID, User: users[m.UserID], Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return views, nil
}

// Messages lists a group's messages in posting order.
func (c *CommunityController) Messages(ctx *gin.Context) {
	group, ok := c.loadGroup(ctx)
	if !ok {
		return
	}
	views, err := c.messageViews(group.ID)
	if err != nil {
		utils.ServerError(ctx, 50057, "Error fetching messages", err)
		return
	}
	utils.Success(ctx, views)
}

// Seed creates the sample groups with the caller as their member.
func (c *CommunityController) Seed(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	errGroupsExist := errors.New("groups exist")
	var created []models.CommunityGroup
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.CommunityGroup{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errGroupsExist
		}
		for _, g := range seedGroups {
			g.CreatedBy = userID
			if err := tx.Create(&g).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.CommunityMember{GroupID: g.ID, UserID: userID}).Error; err != nil {
				return err
			}
			created = append(created, g)
		}
		return nil
	})
	if errors.Is(err, errGroupsExist) {
		utils.Error(ctx, http.StatusBadRequest, 40055, "Community groups already exist")
		return
	}
	if err != nil {
		utils.ServerError(ctx, 50058, "Error seeding community groups", err)
		return
	}
	utils.Invalidate(utils.CacheCommunityPrefix)

	views, err := c.groupViews(created)
	if err != nil {
		utils.ServerError(ctx, 50058, "Error seeding community groups", err)
		return
	}
	utils.Respond(ctx, http.StatusCreated, 0, "success", views)
}

// Stream upgrades to a websocket carrying new messages of a group. Members only.
func (c *CommunityController) Stream(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	group, ok := c.loadGroup(ctx)
	if !ok {
		return
	}
	member, err := c.isMember(group.ID, userID)
	if err != nil {
		utils.ServerError(ctx, 50059, "failed to check membership", err)
		return
	}
	if !member {
		utils.Error(ctx, http.StatusForbidden, 40351, "Must be a member to follow messages")
		return
	}

	if err := c.hub.Serve(ctx.Writer, ctx.Request, group.ID); err != nil {
		utils.Logger.Warn("websocket upgrade failed", zap.Uint("group_id", group.ID), zap.Error(err))
	}
}
