package config

import (
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/tradedesk/internal/logging"
)

const (
	defaultDBPath      = "./tradedesk.db"
	defaultPort        = "8080"
	defaultEnv         = "development"
	defaultLogLevel    = "info"
	defaultLogFormat   = "console"
	defaultBaseCountry = "Hongkong"
	defaultUploadDir   = "./uploads"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail      string
	AdminPassword   string
	SessionHashKey  string
	SessionBlockKey string
	DBPath          string
	Port            string
	Env             string
	LogLevel        string
	LogFormat       string
	BaseCountry     string
	UploadDir       string
}

// Load reads environment variables and returns a populated Config. A .env
// file in the working directory is applied first without overriding
// variables that are already set.
func Load() Config {
	if err := LoadDotEnv(".env"); err != nil {
		logging.Logger.Warn("could not read .env", zap.Error(err))
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() Config {
	cfg := Config{
		AdminEmail:      os.Getenv("ADMIN_EMAIL"),
		AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
		SessionHashKey:  os.Getenv("SESSION_HASH_KEY"),
		SessionBlockKey: os.Getenv("SESSION_BLOCK_KEY"),
		DBPath:          getenv("DB_PATH", defaultDBPath),
		Port:            getenv("PORT", defaultPort),
		Env:             strings.ToLower(getenv("APP_ENV", defaultEnv)),
		LogLevel:        getenv("LOG_LEVEL", defaultLogLevel),
		LogFormat:       getenv("LOG_FORMAT", defaultLogFormat),
		BaseCountry:     getenv("BASE_COUNTRY", defaultBaseCountry),
		UploadDir:       getenv("UPLOAD_DIR", defaultUploadDir),
	}

	for key, value := range map[string]string{
		"ADMIN_EMAIL":      cfg.AdminEmail,
		"ADMIN_PASSWORD":   cfg.AdminPassword,
		"SESSION_HASH_KEY": cfg.SessionHashKey,
	} {
		if value == "" {
			logging.Logger.Warn("environment variable is not set", zap.String("key", key))
		}
	}

	return cfg
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

// Logging maps the config onto logger settings.
func (c Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	lc.Development = c.IsDev()
	return lc
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
