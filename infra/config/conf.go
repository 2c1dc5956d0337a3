// Package config reads the service configuration from the environment. The
// configuration is resolved once at startup and treated as immutable.
package config

import (
	"os"
	"strconv"
	"sync"
)

// AppConfig is the service-level configuration.
type AppConfig struct {
	Port             string
	Environment      string
	DBPath           string
	AutoCapture      bool
	AdminAPIKey      string
	WebhookSecret    string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableOpenSearch bool
	LoggingLevel     string
}

// GatewayCredentials is the processor credential set for the active
// environment, chosen from the sandbox/production pair by the production
// flag.
type GatewayCredentials struct {
	Production     bool
	OrganizationID string
	AccessKey      string
	SecretKey      string
}

var (
	appOnce sync.Once
	app     *AppConfig
)

// App returns the application configuration, reading the environment on
// first use.
func App() *AppConfig {
	appOnce.Do(func() {
		app = &AppConfig{
			Port:             GetEnv("APP_PORT", "9999"),
			Environment:      GetEnv("ENVIRONMENT", "development"),
			DBPath:           GetEnv("DB_PATH", "./data/cyberpay.db"),
			AutoCapture:      GetBoolEnv("CYBERSOURCE_AUTO_CAPTURE", true),
			AdminAPIKey:      GetEnv("ADMIN_API_KEY", ""),
			WebhookSecret:    GetEnv("CYBERSOURCE_WEBHOOK_SECRET", ""),
			OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableOpenSearch: GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
		}
	})
	return app
}

// Gateway resolves the processor credentials. Sandbox and production carry
// separate key sets; the boolean flag decides which pair is active.
func Gateway() GatewayCredentials {
	production := GetBoolEnv("CYBERSOURCE_PRODUCTION_ACTIVE", false)
	prefix := "CYBERSOURCE_SANDBOX_"
	if production {
		prefix = "CYBERSOURCE_PRODUCTION_"
	}
	return GatewayCredentials{
		Production:     production,
		OrganizationID: GetEnv(prefix+"ORGANIZATION_ID", ""),
		AccessKey:      GetEnv(prefix+"ACCESS_KEY", ""),
		SecretKey:      GetEnv(prefix+"SECRET_KEY", ""),
	}
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a
// default value.
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a
// default value.
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
