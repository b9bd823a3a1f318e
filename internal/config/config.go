package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// WhatsApp Cloud API configuration
	WhatsApp WhatsAppConfig

	// Paytm refund gateway configuration
	Paytm PaytmConfig

	// Internal processor dispatch configuration
	Dispatch DispatchConfig

	// Webhook deduplication and audit retention
	Webhook WebhookConfig

	// Front-end configuration (ticket links)
	Frontend FrontendConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// WhatsAppConfig holds WhatsApp Cloud API configuration
type WhatsAppConfig struct {
	APIURL        string // Graph API base, e.g. https://graph.facebook.com/v21.0
	AccessToken   string // Bearer token (SECRET - never expose to client)
	PhoneNumberID string // Sender phone number id
	VerifyToken   string // Webhook handshake verify token
}

// PaytmConfig holds Paytm refund gateway configuration.
// When MerchantID/MerchantKey are empty the client runs sandboxed and
// synthesizes mock refund ids instead of calling the gateway.
type PaytmConfig struct {
	MerchantID  string
	MerchantKey string
	Environment string // "staging" or "production"
}

// DispatchConfig holds configuration for webhook -> processor invocation
type DispatchConfig struct {
	BaseURL       string        // Base URL of this service's processor endpoints
	ServiceSecret string        // HS256 secret for service tokens; empty disables auth
	TokenExpiry   time.Duration // Lifetime of a minted service token
}

// WebhookConfig holds dedup cache and audit retention settings
type WebhookConfig struct {
	DedupTTL       time.Duration // How long a message id is remembered
	EventRetention time.Duration // How long webhook_events audit rows are kept
}

// FrontendConfig holds front-end related configuration
type FrontendConfig struct {
	BaseURL string // Used to build e-ticket links
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		WhatsApp: WhatsAppConfig{
			APIURL:        getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v21.0"),
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			VerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		},
		Paytm: PaytmConfig{
			MerchantID:  getEnv("PAYTM_MERCHANT_ID", ""),
			MerchantKey: getEnv("PAYTM_MERCHANT_KEY", ""),
			Environment: getEnv("PAYTM_ENVIRONMENT", "staging"),
		},
		Dispatch: DispatchConfig{
			BaseURL:       getEnv("DISPATCH_BASE_URL", "http://localhost:"+getEnv("PORT", "8080")),
			ServiceSecret: getEnv("SERVICE_TOKEN_SECRET", ""),
			TokenExpiry:   time.Duration(getEnvAsInt("SERVICE_TOKEN_EXPIRY", 300)) * time.Second,
		},
		Webhook: WebhookConfig{
			DedupTTL:       time.Duration(getEnvAsInt("WEBHOOK_DEDUP_TTL_SECONDS", 600)) * time.Second,
			EventRetention: time.Duration(getEnvAsInt("WEBHOOK_EVENT_RETENTION_DAYS", 30)) * 24 * time.Hour,
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Client-Info", "Apikey"}),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Paytm.Environment != "staging" && c.Paytm.Environment != "production" {
		return fmt.Errorf("invalid PAYTM_ENVIRONMENT: %s (must be 'staging' or 'production')", c.Paytm.Environment)
	}

	// WhatsApp credentials are only mandatory in production; development runs
	// with send-logging instead of real deliveries.
	if c.Server.Environment == "production" {
		if c.WhatsApp.AccessToken == "" {
			return fmt.Errorf("WHATSAPP_ACCESS_TOKEN is required in production")
		}
		if c.WhatsApp.PhoneNumberID == "" {
			return fmt.Errorf("WHATSAPP_PHONE_NUMBER_ID is required in production")
		}
		if c.WhatsApp.VerifyToken == "" {
			return fmt.Errorf("WHATSAPP_VERIFY_TOKEN is required in production")
		}
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
