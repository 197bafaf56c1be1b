package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode   string
	Port      string
	Database  DatabaseConfig
	JWT       JWTConfig
	Fawaterak FawaterakConfig
	Frontend  FrontendConfig
	Email     EmailConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds session-signing configuration
type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

// FawaterakConfig holds payment gateway credentials. The payment adapter
// refuses to start without them (fails closed).
type FawaterakConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	TimeoutSecs   int
}

// FrontendConfig holds the redirect URLs handed to the gateway
type FrontendConfig struct {
	SuccessURL string
	FailURL    string
	PendingURL string
}

// EmailConfig holds SendGrid configuration for notifications
type EmailConfig struct {
	SendGridKey string
	FromEmail   string
	FromName    string
}

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(),
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "default_secret"),
			ExpiryHours: getEnvInt("JWT_EXPIRY_HOURS", 168),
		},
		Fawaterak: FawaterakConfig{
			BaseURL:       getEnv("FAWATERAK_BASE_URL", "https://staging.fawaterk.com/api/v2"),
			APIKey:        getEnv("FAWATERAK_API_KEY", ""),
			WebhookSecret: getEnv("FAWATERAK_WEBHOOK_SECRET", ""),
			TimeoutSecs:   getEnvInt("FAWATERAK_TIMEOUT_SECS", 15),
		},
		Frontend: FrontendConfig{
			SuccessURL: getEnv("FRONTEND_SUCCESS_URL", "http://localhost:5173/payment/success"),
			FailURL:    getEnv("FRONTEND_FAILURE_URL", "http://localhost:5173/payment/failed"),
			PendingURL: getEnv("FRONTEND_PENDING_URL", "http://localhost:5173/payment/pending"),
		},
		Email: EmailConfig{
			SendGridKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:   getEnv("EMAIL_FROM", "no-reply@edhub.app"),
			FromName:    getEnv("EMAIL_FROM_NAME", "EdHub"),
		},
	}

	if config.IsProd() && config.JWT.Secret == "default_secret" {
		return nil, fmt.Errorf("JWT_SECRET must be set in prod mode")
	}
	if config.IsProd() && (config.Fawaterak.APIKey == "" || config.Fawaterak.WebhookSecret == "") {
		return nil, fmt.Errorf("FAWATERAK_API_KEY and FAWATERAK_WEBHOOK_SECRET must be set in prod mode")
	}

	AppConfig = config

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", appMode)
	return config, nil
}

// loadDatabaseConfig loads database config
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		User:     getEnv("DB_USER", "root"),
		Password: getEnv("DB_PASS", ""),
		DBName:   getEnv("DB_NAME", "edhub"),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid int for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return intValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		return origins
	}
	if c.IsDev() {
		return "*"
	}
	return "https://edhub.app"
}
