package models

import (
	"errors"
	"fmt"
	"strings"
)

// AuthType identifies how the gateway authenticates against ServiceNow
type AuthType string

const (
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeOAuth  AuthType = "oauth"
)

// AuthTypes lists every supported AuthType in display order
var AuthTypes = []AuthType{AuthTypeBasic, AuthTypeOAuth, AuthTypeAPIKey}

var ErrUnknownAuthType = errors.New("unknown auth type")

// ParseAuthType parses s case-insensitively into an AuthType
func ParseAuthType(s string) (AuthType, error) {
	t := AuthType(strings.ToLower(s))
	for _, known := range AuthTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAuthType, t)
}

// BasicAuth holds HTTP basic credentials
type BasicAuth struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// APIKeyAuth holds a static key sent in a request header
type APIKeyAuth struct {
	APIKey     string `json:"-"`
	HeaderName string `json:"header_name"`
}

// OAuth holds the client and resource owner credentials for a password grant
type OAuth struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
	Username     string `json:"username"`
	Password     string `json:"-"`
	TokenURL     string `json:"token_url"`
}

// AuthConfig is the outbound credential. Exactly one of Basic, APIKey or
// OAuth is set and it matches Type.
type AuthConfig struct {
	Type   AuthType    `json:"type"`
	Basic  *BasicAuth  `json:"basic,omitempty"`
	APIKey *APIKeyAuth `json:"api_key,omitempty"`
	OAuth  *OAuth      `json:"oauth,omitempty"`
}

// Validate checks that exactly the variant named by Type is populated
func (a *AuthConfig) Validate() error {
	set := 0
	for _, present := range []bool{a.Basic != nil, a.APIKey != nil, a.OAuth != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("auth config must have exactly one credential set, got %d", set)
	}

	var ok bool
	switch a.Type {
	case AuthTypeBasic:
		ok = a.Basic != nil
	case AuthTypeAPIKey:
		ok = a.APIKey != nil
	case AuthTypeOAuth:
		ok = a.OAuth != nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAuthType, a.Type)
	}
	if !ok {
		return fmt.Errorf("auth config type %q does not match the populated credential", a.Type)
	}
	return nil
}

// ServerConfig is the resolved outbound configuration. It is built once at
// startup and never modified afterwards.
type ServerConfig struct {
	InstanceURL string     `json:"instance_url"`
	Auth        AuthConfig `json:"auth"`
}
