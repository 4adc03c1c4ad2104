package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Database
	DatabaseURL string

	// Push gateway (OneSignal REST API)
	OneSignalAppID  string
	OneSignalAPIKey string
	OneSignalAPIURL string

	// Timeouts
	GatewayTimeoutSeconds int
	LookupTimeoutSeconds  int

	// Database Connection Pool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// Server
	ServerShutdownTimeoutSeconds int

	// Logging
	LogLevel  string
	LogFormat string

	// Delivery hints per notification category.
	Delivery *DeliveryConfig `yaml:"delivery"`
}

// DeliveryConfig holds the static delivery hints attached to outgoing
// notifications. Per-category hints live in an explicit table so adding a
// category is a data change, not a code change.
type DeliveryConfig struct {
	Priority           int    `yaml:"priority"`
	AndroidAccentColor string `yaml:"android_accent_color"`
	SmallIcon          string `yaml:"small_icon"`
	LargeIcon          string `yaml:"large_icon"`
	Sound              string `yaml:"sound"`
	AndroidGroup       string `yaml:"android_group"`
	AndroidVisibility  int    `yaml:"android_visibility"`

	// Message-path specifics
	MessageChannelID  string `yaml:"message_channel_id"`
	MessageTTLSeconds int    `yaml:"message_ttl_seconds"`

	Categories map[string]CategoryHints `yaml:"categories"`
}

// CategoryHints holds the per-category portion of the delivery hints.
type CategoryHints struct {
	CollapseID string `yaml:"collapse_id"`
}

// CollapseID returns the collapse key for a category, or "" when the
// category does not coalesce.
func (d *DeliveryConfig) CollapseID(category string) string {
	if d == nil || d.Categories == nil {
		return ""
	}
	return d.Categories[category].CollapseID
}

// DefaultDelivery returns the delivery hints used when no config file
// overrides them. The values match what the mobile clients expect.
func DefaultDelivery() *DeliveryConfig {
	return &DeliveryConfig{
		Priority:           10,
		AndroidAccentColor: "FF2196F3",
		SmallIcon:          "ic_notification",
		LargeIcon:          "ic_launcher",
		Sound:              "default",
		AndroidGroup:       "messages",
		AndroidVisibility:  1,
		MessageChannelID:   "fcm_fallback_notification_channel",
		MessageTTLSeconds:  259200, // 3 days
		Categories: map[string]CategoryHints{
			"message":       {CollapseID: "message"},
			"part_request":  {},
			"part_response": {},
		},
	}
}

var AppConfig *Config

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Database
		DatabaseURL: getEnvOrDefault("DATABASE_URL", "postgres://localhost/allopieces?sslmode=disable"),

		// OneSignal (trim whitespace to avoid common config errors)
		OneSignalAppID:  strings.TrimSpace(getEnvOrDefault("ONESIGNAL_APP_ID", "")),
		OneSignalAPIKey: strings.TrimSpace(getEnvOrDefault("ONESIGNAL_REST_API_KEY", "")),
		OneSignalAPIURL: getEnvOrDefault("ONESIGNAL_API_URL", "https://onesignal.com/api/v1/notifications"),

		// Timeouts
		GatewayTimeoutSeconds: getEnvAsInt("GATEWAY_TIMEOUT_SECONDS", 30),
		LookupTimeoutSeconds:  getEnvAsInt("LOOKUP_TIMEOUT_SECONDS", 10),

		// Database Connection Pool
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 15),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 1),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		Delivery: DefaultDelivery(),
	}

	// Load the delivery-hint table from a configuration file when present.
	// Environment variables keep precedence for everything else.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")

	configFile, err := os.Open(configFilePath)
	if err != nil {
		log.Printf("No config file at %s, using built-in delivery hints", configFilePath)
	} else {
		defer configFile.Close()
		log.Printf("Loading config file: %v", configFilePath)
		if err := LoadConfigFile(configFile, AppConfig); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}

	if AppConfig.Delivery == nil {
		AppConfig.Delivery = DefaultDelivery()
	}

	// Validate required configs
	if AppConfig.OneSignalAppID == "" {
		log.Println("Warning: OneSignal app ID is missing. Please set ONESIGNAL_APP_ID environment variable.")
	}

	if AppConfig.OneSignalAPIKey == "" {
		log.Println("Warning: OneSignal REST API key is missing. Dispatch requests will be rejected until ONESIGNAL_REST_API_KEY is set.")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}
