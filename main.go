package main

import (
	"context"
	"time"

	"github.com/cppla/moodbloom/config"
	"github.com/cppla/moodbloom/models"
	"github.com/cppla/moodbloom/routes"
	"github.com/cppla/moodbloom/services"
	"github.com/cppla/moodbloom/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db, err := config.OpenDatabase(cfg, models.All()...)
	if err != nil {
		utils.Sugar.Fatalf("database: %v", err)
	}

	analyzer := services.NewAIClient(cfg.AIServiceURL, cfg.AIServiceToken, time.Duration(cfg.AIServiceTimeoutSec)*time.Second)
	r := routes.SetupRouter(db, analyzer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	utils.StartUploadCleaner(ctx, db, 5*time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
