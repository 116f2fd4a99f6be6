// Package config loads the bot configuration from INMODOCS_-prefixed
// environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Environment names recognized by the bot. Anything other than "production"
// is treated as a development deployment (user-facing error messages get a
// DEV:: prefix).
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds the full configuration surface of the bot.
type Config struct {
	// Telegram
	BotToken      string `envconfig:"BOT_TOKEN" required:"true"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" required:"true"`
	AllowedUsers  string `envconfig:"ALLOWED_USERS" required:"true"` // comma-separated Telegram user ids

	// Google Drive
	BaseFolderID string `envconfig:"BASE_FOLDER_ID" required:"true"`

	// OAuth2. Credentials and token are the raw JSON documents Google issues;
	// their contents are never logged.
	GoogleCredentialsJSON string `envconfig:"GOOGLE_CREDENTIALS_JSON"`
	GoogleTokenJSON       string `envconfig:"GOOGLE_TOKEN_JSON"`
	PublicBaseURL         string `envconfig:"PUBLIC_BASE_URL"`

	// Token storage backend: SSM Parameter Store when true, local file otherwise.
	UseSSMTokenStore bool   `envconfig:"USE_SSM_TOKEN_STORE" default:"false"`
	SSMTokenParam    string `envconfig:"SSM_TOKEN_PARAM" default:"/inmodocs/prod/google-oauth-token"`
	TokenFilePath    string `envconfig:"TOKEN_FILE_PATH" default:"token.json"`

	// Server
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("INMODOCS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// AllowedUserIDs parses the comma-separated allowlist into Telegram user ids.
// Blank entries are skipped; a malformed id is a configuration error.
func (c *Config) AllowedUserIDs() (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(c.AllowedUsers, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q in INMODOCS_ALLOWED_USERS: %w", part, err)
		}
		ids[id] = true
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("INMODOCS_ALLOWED_USERS contains no user ids")
	}
	return ids, nil
}

// IsProduction reports whether the bot runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
