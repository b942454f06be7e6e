package routes

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/controllers"
	"github.com/cppla/moodbloom/metrics"
	"github.com/cppla/moodbloom/middleware"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, analyzer services.MoodAnalyzer) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	allowAll := len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*"
	if allowAll {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}

	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "redis": utils.RedisStatus(ctx.Request.Context())})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	var checkOrigin func(*http.Request) bool
	if !allowAll {
		checkOrigin = originChecker(cfg.AllowedOrigins)
	}
	ledger := services.NewLedger(db)
	hub := services.NewChatHub(checkOrigin)

	authController := controllers.NewAuthController(db)
	userController := controllers.NewUserController(db)
	moodController := controllers.NewMoodController(db, ledger, analyzer)
	journalController := controllers.NewJournalController(db, analyzer)
	recommendationController := controllers.NewRecommendationController(db, ledger)
	summaryController := controllers.NewSummaryController(db, analyzer)
	communityController := controllers.NewCommunityController(db, ledger, hub)
	tokenController := controllers.NewTokenController(db, ledger)
	rewardController := controllers.NewRewardController(db, ledger)
	dashboardController := controllers.NewDashboardController(db)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// browsers cannot set headers on websocket upgrades
	api.GET("/community/:id/ws", middleware.AuthRequiredAllowQuery(), communityController.Stream)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/users/profile", userController.GetProfile)
	protected.PUT("/users/profile", userController.UpdateProfile)

	mood := protected.Group("/mood")
	mood.POST("/analyze-voice", moodController.AnalyzeVoice)
	mood.POST("/analyze-text", moodController.AnalyzeText)
	mood.POST("/check-in", moodController.CheckIn)
	mood.GET("/history", moodController.History)

	journal := protected.Group("/journal")
	journal.GET("", journalController.List)
	journal.GET("/entries", journalController.List)
	journal.POST("", journalController.Create)
	journal.GET("/:id", journalController.Get)
	journal.PUT("/:id", journalController.Update)
	journal.DELETE("/:id", journalController.Delete)

	recs := protected.Group("/recommendations")
	recs.GET("", recommendationController.List)
	recs.POST("/feedback", recommendationController.Feedback)
	recs.PUT("/:id/complete", recommendationController.Complete)

	summaries := protected.Group("/summaries")
	summaries.GET("", summaryController.List)
	summaries.POST("/generate", summaryController.Generate)
	summaries.GET("/download/:filename", summaryController.Download)

	community := protected.Group("/community")
	community.GET("", communityController.List)
	community.POST("", communityController.Create)
	community.POST("/seed", communityController.Seed)
	community.GET("/:id", communityController.Get)
	community.POST("/:id/join", communityController.Join)
	community.POST("/:id/leave", communityController.Leave)
	community.POST("/:id/message", communityController.PostMessage)
	community.GET("/:id/messages", communityController.Messages)

	protected.GET("/tokens", tokenController.History)
	protected.POST("/tokens", tokenController.Create)
	protected.GET("/tokens/audit/:userId", tokenController.Audit)

	protected.GET("/rewards", rewardController.List)
	protected.POST("/rewards", rewardController.Create)
	protected.POST("/rewards/:id/redeem", rewardController.Redeem)

	protected.GET("/dashboard/stats", dashboardController.Stats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

// originChecker accepts websocket upgrades from the configured CORS origins
// and from clients that send no Origin header.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
