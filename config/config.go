package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminEmails        []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: "mysql" (default) or "sqlite"
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// Redis for caching and token revocation
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// External AI analysis service
	AIServiceURL        string
	AIServiceToken      string
	AIServiceTimeoutSec int
	// Uploaded audio and generated summaries
	UploadDir           string
	AudioRetentionHours int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: .env -> config/config.json -> defaults -> environment variable overrides.
	// A missing .env is normal in production.
	_ = godotenv.Load()

	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("config/config.json ignored: %v", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Override replaces the cached configuration. Defaults are applied to zero fields.
func Override(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// IsAdminEmail reports whether the email belongs to a configured administrator.
func IsAdminEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	for _, e := range Get().AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

// fileConfig mirrors the grouped sections of config/config.json.
type fileConfig struct {
	App struct {
		AppPort            string
		JWTSecret          string
		TokenTTLHours      int
		RateLimitPerMinute int
		AllowedOrigins     []string
		AdminEmails        []string
		GinMode            string
		GinPath            string
	} `json:"app"`
	Database struct {
		Driver      string
		DatabaseURI string
		DBHost      string
		DBPort      string
		DBUser      string
		DBPassword  string
		DBName      string
		SQLitePath  string
	} `json:"database"`
	Redis struct {
		Enabled       bool
		RedisHost     string
		RedisPort     int
		RedisDB       int
		RedisPassword string
	} `json:"redis"`
	Log struct {
		Level      string
		Path       string
		MaxSizeMB  int
		MaxBackups int
		MaxAgeDays int
		Compress   bool
	} `json:"log"`
	AI struct {
		ServiceURL   string
		ServiceToken string
		TimeoutSec   int
	} `json:"ai"`
	Uploads struct {
		Dir                 string
		AudioRetentionHours int
	} `json:"uploads"`
}

// loadJSONConfig fills out from the file at path. A missing file is not an
// error; malformed JSON is.
func loadJSONConfig(path string, out *AppConfig) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	out.AppPort = fc.App.AppPort
	out.JWTSecret = fc.App.JWTSecret
	out.TokenTTLHours = fc.App.TokenTTLHours
	out.RateLimitPerMinute = fc.App.RateLimitPerMinute
	out.AllowedOrigins = fc.App.AllowedOrigins
	out.AdminEmails = fc.App.AdminEmails
	out.GinMode = fc.App.GinMode
	out.GinPath = fc.App.GinPath

	out.DBDriver = fc.Database.Driver
	out.DatabaseURI = fc.Database.DatabaseURI
	out.DBHost = fc.Database.DBHost
	out.DBPort = fc.Database.DBPort
	out.DBUser = fc.Database.DBUser
	out.DBPassword = fc.Database.DBPassword
	out.DBName = fc.Database.DBName
	out.SQLitePath = fc.Database.SQLitePath

	out.RedisEnabled = fc.Redis.Enabled
	out.RedisHost = fc.Redis.RedisHost
	out.RedisPort = fc.Redis.RedisPort
	out.RedisDB = fc.Redis.RedisDB
	out.RedisPassword = fc.Redis.RedisPassword

	out.LogLevel = fc.Log.Level
	out.LogPath = fc.Log.Path
	out.LogMaxSizeMB = fc.Log.MaxSizeMB
	out.LogMaxBackups = fc.Log.MaxBackups
	out.LogMaxAgeDays = fc.Log.MaxAgeDays
	out.LogCompress = fc.Log.Compress

	out.AIServiceURL = fc.AI.ServiceURL
	out.AIServiceToken = fc.AI.ServiceToken
	out.AIServiceTimeoutSec = fc.AI.TimeoutSec

	out.UploadDir = fc.Uploads.Dir
	out.AudioRetentionHours = fc.Uploads.AudioRetentionHours
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "5000"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "moodbloom"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "moodbloom.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.AIServiceURL == "" {
		c.AIServiceURL = "http://localhost:8000"
	}
	if c.AIServiceTimeoutSec == 0 {
		c.AIServiceTimeoutSec = 30
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.AudioRetentionHours == 0 {
		c.AudioRetentionHours = 24
	}
}

type envSetter func(raw string) error

func setString(p *string) envSetter {
	return func(raw string) error { *p = raw; return nil }
}

func setInt(p *int) envSetter {
	return func(raw string) error {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*p = n
		return nil
	}
}

func setBool(p *bool) envSetter {
	return func(raw string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

func setList(p *[]string) envSetter {
	return func(raw string) error { *p = splitAndTrim(raw); return nil }
}

// applyEnvOverrides lets environment variables win over file and defaults.
// Unparseable values are reported and ignored.
func applyEnvOverrides(c *AppConfig) {
	bindings := []struct {
		key string
		set envSetter
	}{
		{"APP_PORT", setString(&c.AppPort)},
		{"JWT_SECRET", setString(&c.JWTSecret)},
		{"TOKEN_TTL_HOURS", setInt(&c.TokenTTLHours)},
		{"GIN_MODE", setString(&c.GinMode)},
		{"GIN_PATH", setString(&c.GinPath)},
		{"RATE_LIMIT_PER_MINUTE", setInt(&c.RateLimitPerMinute)},
		{"CORS_ALLOWED_ORIGINS", setList(&c.AllowedOrigins)},
		{"ADMIN_EMAILS", setList(&c.AdminEmails)},

		{"DB_DRIVER", setString(&c.DBDriver)},
		{"DATABASE_URI", setString(&c.DatabaseURI)},
		{"DB_HOST", setString(&c.DBHost)},
		{"DB_PORT", setString(&c.DBPort)},
		{"DB_USER", setString(&c.DBUser)},
		{"DB_PASSWORD", setString(&c.DBPassword)},
		{"DB_NAME", setString(&c.DBName)},
		{"SQLITE_PATH", setString(&c.SQLitePath)},

		{"REDIS_ENABLED", setBool(&c.RedisEnabled)},
		{"REDIS_HOST", setString(&c.RedisHost)},
		{"REDIS_PORT", setInt(&c.RedisPort)},
		{"REDIS_DB", setInt(&c.RedisDB)},
		{"REDIS_PASSWORD", setString(&c.RedisPassword)},

		{"LOG_LEVEL", setString(&c.LogLevel)},
		{"LOG_PATH", setString(&c.LogPath)},
		{"LOG_MAX_SIZE_MB", setInt(&c.LogMaxSizeMB)},
		{"LOG_MAX_BACKUPS", setInt(&c.LogMaxBackups)},
		{"LOG_MAX_AGE_DAYS", setInt(&c.LogMaxAgeDays)},
		{"LOG_COMPRESS", setBool(&c.LogCompress)},

		{"AI_SERVICE_URL", setString(&c.AIServiceURL)},
		{"AI_SERVICE_TOKEN", setString(&c.AIServiceToken)},
		{"AI_SERVICE_TIMEOUT_SEC", setInt(&c.AIServiceTimeoutSec)},

		{"UPLOAD_DIR", setString(&c.UploadDir)},
		{"AUDIO_RETENTION_HOURS", setInt(&c.AudioRetentionHours)},
	}
	for _, b := range bindings {
		raw, ok := os.LookupEnv(b.key)
		if !ok || raw == "" {
			continue
		}
		if err := b.set(raw); err != nil {
			log.Printf("ignoring %s=%q: %v", b.key, raw, err)
		}
	}
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
