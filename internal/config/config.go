package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/yorukot/servicenow-mcp/internal/models"
)

const (
	DefaultAPIKeyHeader = "X-ServiceNow-API-Key"
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8080

	oauthTokenPath = "/oauth_token.do"
)

// ErrInvalidConfig is wrapped by every error returned from Load
var ErrInvalidConfig = errors.New("invalid configuration")

// serviceNowEnv mirrors the SERVICENOW_* environment variables
type serviceNowEnv struct {
	InstanceURL  string `env:"SERVICENOW_INSTANCE_URL"`
	AuthType     string `env:"SERVICENOW_AUTH_TYPE" envDefault:"basic"`
	Username     string `env:"SERVICENOW_USERNAME"`
	Password     string `env:"SERVICENOW_PASSWORD"`
	APIKey       string `env:"SERVICENOW_API_KEY"`
	APIKeyHeader string `env:"SERVICENOW_API_KEY_HEADER" envDefault:"X-ServiceNow-API-Key"`
	ClientID     string `env:"SERVICENOW_CLIENT_ID"`
	ClientSecret string `env:"SERVICENOW_CLIENT_SECRET"`
	TokenURL     string `env:"SERVICENOW_TOKEN_URL"`
}

// InboundConfig controls the listener and the optional shared-secret check
// on inbound requests. An empty APIKey disables the check.
type InboundConfig struct {
	Host         string `env:"MCP_SERVER_HOST" envDefault:"0.0.0.0"`
	Port         int    `env:"MCP_SERVER_PORT" envDefault:"8080"`
	APIKey       string `env:"MCP_SERVER_API_KEY"`
	APIKeyHeader string `env:"MCP_SERVER_API_KEY_HEADER"`
}

// AuthEnabled reports whether inbound requests must present APIKey
func (c InboundConfig) AuthEnabled() bool {
	return c.APIKey != ""
}

// FromEnv builds the ServiceNow configuration from the process environment
func FromEnv(logger *slog.Logger) (*models.ServerConfig, error) {
	return Load(nil, logger)
}

// Load builds the ServiceNow configuration from environ, or from the process
// environment when environ is nil. It either returns a complete config or an
// error naming the variables that need fixing. Empty values count as unset.
func Load(environ map[string]string, logger *slog.Logger) (*models.ServerConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var e serviceNowEnv
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if e.InstanceURL == "" {
		return nil, fmt.Errorf("%w: SERVICENOW_INSTANCE_URL environment variable is required", ErrInvalidConfig)
	}

	authType, err := models.ParseAuthType(e.AuthType)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid SERVICENOW_AUTH_TYPE '%s', must be one of: %s",
			ErrInvalidConfig, strings.ToLower(e.AuthType), authTypeList())
	}

	auth := models.AuthConfig{Type: authType}

	switch authType {
	case models.AuthTypeBasic:
		if e.Username == "" || e.Password == "" {
			return nil, fmt.Errorf("%w: SERVICENOW_USERNAME and SERVICENOW_PASSWORD are required for basic auth", ErrInvalidConfig)
		}
		auth.Basic = &models.BasicAuth{Username: e.Username, Password: e.Password}

	case models.AuthTypeAPIKey:
		if e.APIKey == "" {
			return nil, fmt.Errorf("%w: SERVICENOW_API_KEY is required for api_key auth", ErrInvalidConfig)
		}
		auth.APIKey = &models.APIKeyAuth{APIKey: e.APIKey, HeaderName: e.APIKeyHeader}

	case models.AuthTypeOAuth:
		if e.ClientID == "" || e.ClientSecret == "" || e.Username == "" || e.Password == "" {
			return nil, fmt.Errorf("%w: SERVICENOW_CLIENT_ID, SERVICENOW_CLIENT_SECRET, "+
				"SERVICENOW_USERNAME, and SERVICENOW_PASSWORD are required for oauth", ErrInvalidConfig)
		}
		tokenURL := e.TokenURL
		if tokenURL == "" {
			tokenURL = e.InstanceURL + oauthTokenPath
			logger.Warn("SERVICENOW_TOKEN_URL not set, using default", "token_url", tokenURL)
		}
		auth.OAuth = &models.OAuth{
			ClientID:     e.ClientID,
			ClientSecret: e.ClientSecret,
			Username:     e.Username,
			Password:     e.Password,
			TokenURL:     tokenURL,
		}
	}

	return &models.ServerConfig{InstanceURL: e.InstanceURL, Auth: auth}, nil
}

// LoadInbound reads the listener and inbound key settings from environ, or
// from the process environment when environ is nil.
func LoadInbound(environ map[string]string) (InboundConfig, error) {
	var c InboundConfig
	if err := env.ParseWithOptions(&c, env.Options{Environment: environ}); err != nil {
		return InboundConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return InboundConfig{}, fmt.Errorf("%w: MCP_SERVER_PORT %d is out of range [1, 65535]", ErrInvalidConfig, c.Port)
	}
	return c, nil
}

func authTypeList() string {
	names := make([]string, len(models.AuthTypes))
	for i, t := range models.AuthTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
