package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yorukot/servicenow-mcp/internal/models"
)

var incidentFixture = Incident{
	SysID:            "9d385017c611228701d22104cc95c371",
	Number:           "INC0010001",
	ShortDescription: "Email server down",
	State:            "New",
	Priority:         "1 - Critical",
	CreatedOn:        "2024-05-01 10:00:00",
	UpdatedOn:        "2024-05-01 10:05:00",
}

// tableServer serves the incident table and records the last request
func tableServer(t *testing.T, last *atomic.Pointer[http.Request], incidents []Incident) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/now/table/incident", func(w http.ResponseWriter, r *http.Request) {
		last.Store(r.Clone(context.Background()))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"result": incidents})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_BasicAuth(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := tableServer(t, &last, []Incident{incidentFixture})

	c, err := NewClient(context.Background(), &models.ServerConfig{
		InstanceURL: srv.URL,
		Auth: models.AuthConfig{
			Type:  models.AuthTypeBasic,
			Basic: &models.BasicAuth{Username: "admin", Password: "secret"},
		},
	}, nil)
	require.NoError(t, err)

	_, err = c.ListIncidents(context.Background(), ListIncidentsParams{})
	require.NoError(t, err)

	user, pass, ok := last.Load().BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", pass)
}

func TestNewClient_APIKeyAuth(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := tableServer(t, &last, nil)

	c, err := NewClient(context.Background(), &models.ServerConfig{
		InstanceURL: srv.URL + "/",
		Auth: models.AuthConfig{
			Type:   models.AuthTypeAPIKey,
			APIKey: &models.APIKeyAuth{APIKey: "my-api-key-value", HeaderName: "X-ServiceNow-API-Key"},
		},
	}, nil)
	require.NoError(t, err)

	_, err = c.ListIncidents(context.Background(), ListIncidentsParams{})
	require.NoError(t, err)

	assert.Equal(t, "my-api-key-value", last.Load().Header.Get("X-ServiceNow-API-Key"))
	assert.Empty(t, last.Load().Header.Get("Authorization"))
}

func TestNewClient_OAuthPasswordGrant(t *testing.T) {
	var tokenCalls atomic.Int32
	var last atomic.Pointer[http.Request]

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth_token.do", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "user", r.PostForm.Get("username"))
		assert.Equal(t, "pass", r.PostForm.Get("password"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "csecret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":1800}`))
	})
	mux.HandleFunc("GET /api/now/table/incident", func(w http.ResponseWriter, r *http.Request) {
		last.Store(r.Clone(context.Background()))
		w.Write([]byte(`{"result":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := NewClient(context.Background(), &models.ServerConfig{
		InstanceURL: srv.URL,
		Auth: models.AuthConfig{
			Type: models.AuthTypeOAuth,
			OAuth: &models.OAuth{
				ClientID:     "cid",
				ClientSecret: "csecret",
				Username:     "user",
				Password:     "pass",
				TokenURL:     srv.URL + "/oauth_token.do",
			},
		},
	}, nil)
	require.NoError(t, err)

	for range 2 {
		_, err = c.ListIncidents(context.Background(), ListIncidentsParams{})
		require.NoError(t, err)
	}

	assert.Equal(t, "Bearer tok-123", last.Load().Header.Get("Authorization"))
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestNewClient_OAuthTokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"access_denied"}`))
	}))
	defer srv.Close()

	_, err := NewClient(context.Background(), &models.ServerConfig{
		InstanceURL: srv.URL,
		Auth: models.AuthConfig{
			Type: models.AuthTypeOAuth,
			OAuth: &models.OAuth{
				ClientID: "cid", ClientSecret: "bad", Username: "u", Password: "p",
				TokenURL: srv.URL + "/oauth_token.do",
			},
		},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth token")
}

func TestNewClient_InvalidAuth(t *testing.T) {
	_, err := NewClient(context.Background(), &models.ServerConfig{
		InstanceURL: "https://test.service-now.com",
		Auth:        models.AuthConfig{Type: models.AuthTypeBasic},
	}, nil)
	assert.Error(t, err)
}

func basicClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), &models.ServerConfig{
		InstanceURL: url,
		Auth: models.AuthConfig{
			Type:  models.AuthTypeBasic,
			Basic: &models.BasicAuth{Username: "u", Password: "p"},
		},
	}, nil)
	require.NoError(t, err)
	return c
}

func TestListIncidents_Query(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := tableServer(t, &last, []Incident{incidentFixture})
	c := basicClient(t, srv.URL)

	got, err := c.ListIncidents(context.Background(), ListIncidentsParams{
		Limit:    500,
		Offset:   20,
		State:    "1",
		Category: "network",
		Query:    "email",
	})
	require.NoError(t, err)
	assert.Equal(t, []Incident{incidentFixture}, got)

	q := last.Load().URL.Query()
	assert.Equal(t, "100", q.Get("sysparm_limit"))
	assert.Equal(t, "20", q.Get("sysparm_offset"))
	assert.Equal(t, "true", q.Get("sysparm_display_value"))
	assert.Equal(t,
		"state=1^category=network^short_descriptionLIKEemail^ORdescriptionLIKEemail^ORDERBYDESCsys_created_on",
		q.Get("sysparm_query"))
	assert.Equal(t, "application/json", last.Load().Header.Get("Accept"))
}

func TestListIncidents_DefaultLimit(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := tableServer(t, &last, nil)
	c := basicClient(t, srv.URL)

	_, err := c.ListIncidents(context.Background(), ListIncidentsParams{Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, "10", last.Load().URL.Query().Get("sysparm_limit"))
	assert.Equal(t, "0", last.Load().URL.Query().Get("sysparm_offset"))
}

func TestGetIncident(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := tableServer(t, &last, []Incident{incidentFixture})
	c := basicClient(t, srv.URL)

	got, err := c.GetIncident(context.Background(), " INC0010001 ")
	require.NoError(t, err)
	assert.Equal(t, incidentFixture, *got)
	assert.Equal(t, "number=INC0010001", last.Load().URL.Query().Get("sysparm_query"))
	assert.Equal(t, "1", last.Load().URL.Query().Get("sysparm_limit"))
}

func TestGetIncident_NotFound(t *testing.T) {
	var last atomic.Pointer[http.Request]
	srv := tableServer(t, &last, nil)
	c := basicClient(t, srv.URL)

	_, err := c.GetIncident(context.Background(), "INC404")
	assert.ErrorIs(t, err, ErrIncidentNotFound)

	_, err = c.GetIncident(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestClient_ErrorStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusUnauthorized, want: ErrUnauthorized},
		{status: http.StatusForbidden, want: ErrUnauthorized},
		{status: http.StatusInternalServerError, want: ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			_, err := basicClient(t, srv.URL).ListIncidents(context.Background(), ListIncidentsParams{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
