package utils

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/cppla/moodbloom/config"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Override(config.AppConfig{JWTSecret: "utils-test-secret"})
	os.Exit(m.Run())
}
