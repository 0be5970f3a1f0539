// Package config reads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server and the migrate command.
type Config struct {
	Port        string
	DBDriver    string
	DBDSN       string
	AutoMigrate bool
	LogLevel    string
	LogFormat   string
	BaseURL     string
	WSOrigins   []string

	JWTSecret string
	JWTIssuer string

	Email EmailConfig
	Push  PushConfig
}

// EmailConfig selects the invitation email provider. An empty Provider logs
// emails instead of sending them.
type EmailConfig struct {
	Provider string

	PostmarkToken    string
	PostmarkFrom     string
	PostmarkTemplate string
	PostmarkStream   string

	SESRegion   string
	SESFrom     string
	SESTemplate string
}

// InviteTemplate returns the template name of the selected provider.
func (e EmailConfig) InviteTemplate() string {
	switch e.Provider {
	case "postmark":
		return e.PostmarkTemplate
	case "ses":
		return e.SESTemplate
	}
	return "family-invitation"
}

type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

// LoadDotEnv loads a .env file from the working directory when present.
// Variables already set in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	autoMigrate, err := strconv.ParseBool(getEnvOrDefault("SHOPASSIST_AUTO_MIGRATE", "false"))
	if err != nil {
		return nil, fmt.Errorf("SHOPASSIST_AUTO_MIGRATE: %w", err)
	}

	cfg := &Config{
		Port:        getEnvOrDefault("SHOPASSIST_PORT", "8080"),
		DBDriver:    strings.ToLower(getEnvOrDefault("SHOPASSIST_DB_DRIVER", "sqlite")),
		DBDSN:       os.Getenv("SHOPASSIST_DB_DSN"),
		AutoMigrate: autoMigrate,
		LogLevel:    getEnvOrDefault("SHOPASSIST_LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getEnvOrDefault("SHOPASSIST_LOG_FORMAT", "text")),
		BaseURL:     strings.TrimRight(getEnvOrDefault("SHOPASSIST_BASE_URL", "http://localhost:8080"), "/"),
		WSOrigins:   splitList(os.Getenv("SHOPASSIST_WS_ORIGINS")),
		JWTSecret:   os.Getenv("SHOPASSIST_JWT_SECRET"),
		JWTIssuer:   os.Getenv("SHOPASSIST_JWT_ISSUER"),
		Email: EmailConfig{
			Provider:         strings.ToLower(os.Getenv("SHOPASSIST_EMAIL_PROVIDER")),
			PostmarkToken:    os.Getenv("POSTMARK_SERVER_TOKEN"),
			PostmarkFrom:     os.Getenv("POSTMARK_FROM"),
			PostmarkTemplate: getEnvOrDefault("POSTMARK_INVITE_TEMPLATE", "family-invitation"),
			PostmarkStream:   getEnvOrDefault("POSTMARK_MESSAGE_STREAM", "outbound"),
			SESRegion:        getEnvOrDefault("SES_REGION", "us-east-1"),
			SESFrom:          os.Getenv("SES_FROM"),
			SESTemplate:      getEnvOrDefault("SES_INVITE_TEMPLATE", "family-invitation"),
		},
		Push: PushConfig{
			VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
			Subscriber:      getEnvOrDefault("VAPID_SUBSCRIBER", "mailto:admin@localhost"),
		},
	}

	if cfg.DBDSN == "" && cfg.DBDriver == "sqlite" {
		cfg.DBDSN = "shopassist.db"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that never serve
// requests.
func LoadDatabase() (driver, dsn string, err error) {
	driver = strings.ToLower(getEnvOrDefault("SHOPASSIST_DB_DRIVER", "sqlite"))
	dsn = os.Getenv("SHOPASSIST_DB_DSN")
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "shopassist.db"
		}
	case "postgres":
		if dsn == "" {
			return "", "", fmt.Errorf("SHOPASSIST_DB_DSN is required for postgres")
		}
	default:
		return "", "", fmt.Errorf("unsupported SHOPASSIST_DB_DRIVER %q", driver)
	}
	return driver, dsn, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("SHOPASSIST_DB_DSN is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported SHOPASSIST_DB_DRIVER %q", c.DBDriver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("SHOPASSIST_JWT_SECRET environment variable is required")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported SHOPASSIST_LOG_FORMAT %q", c.LogFormat)
	}

	switch c.Email.Provider {
	case "":
	case "postmark":
		if c.Email.PostmarkToken == "" || c.Email.PostmarkFrom == "" {
			return fmt.Errorf("POSTMARK_SERVER_TOKEN and POSTMARK_FROM are required for the postmark provider")
		}
	case "ses":
		if c.Email.SESFrom == "" {
			return fmt.Errorf("SES_FROM is required for the ses provider")
		}
	default:
		return fmt.Errorf("unsupported SHOPASSIST_EMAIL_PROVIDER %q", c.Email.Provider)
	}

	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
