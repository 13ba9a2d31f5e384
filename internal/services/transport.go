package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/yorukot/servicenow-mcp/internal/models"
	"golang.org/x/oauth2"
)

// headerTransport sets fixed headers on every outgoing request
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// basicAuthTransport sets HTTP basic credentials on every outgoing request
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

// authenticatedClient returns a copy of base whose transport applies auth.
// For OAuth it performs one password grant; the token is not refreshed.
func authenticatedClient(ctx context.Context, auth models.AuthConfig, base *http.Client) (*http.Client, error) {
	if err := auth.Validate(); err != nil {
		return nil, err
	}

	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	client := *base
	switch auth.Type {
	case models.AuthTypeBasic:
		client.Transport = &basicAuthTransport{
			username: auth.Basic.Username,
			password: auth.Basic.Password,
			base:     rt,
		}

	case models.AuthTypeAPIKey:
		client.Transport = &headerTransport{
			headers: map[string]string{auth.APIKey.HeaderName: auth.APIKey.APIKey},
			base:    rt,
		}

	case models.AuthTypeOAuth:
		conf := &oauth2.Config{
			ClientID:     auth.OAuth.ClientID,
			ClientSecret: auth.OAuth.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  auth.OAuth.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
		token, err := conf.PasswordCredentialsToken(ctx, auth.OAuth.Username, auth.OAuth.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain oauth token: %w", err)
		}
		client.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(token),
			Base:   rt,
		}
	}

	return &client, nil
}
