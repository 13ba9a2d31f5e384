package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yorukot/servicenow-mcp/internal/models"
)

var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrUnauthorized     = errors.New("servicenow rejected the credentials")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrInvalidNumber    = errors.New("incident number is required")
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultListLimit = 10
	MaxListLimit     = 100

	incidentTablePath = "/api/now/table/incident"
	incidentFields    = "sys_id,number,short_description,description,state,priority,category,assigned_to,sys_created_on,sys_updated_on"
)

// Incident is a row of the ServiceNow incident table with display values
type Incident struct {
	SysID            string `json:"sys_id"`
	Number           string `json:"number"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description,omitempty"`
	State            string `json:"state"`
	Priority         string `json:"priority"`
	Category         string `json:"category,omitempty"`
	AssignedTo       string `json:"assigned_to,omitempty"`
	CreatedOn        string `json:"sys_created_on"`
	UpdatedOn        string `json:"sys_updated_on"`
}

// ListIncidentsParams filters an incident listing. Zero values are ignored.
type ListIncidentsParams struct {
	Limit      int
	Offset     int
	State      string
	Category   string
	AssignedTo string
	Query      string
}

// Client calls the ServiceNow REST API with the configured credentials
type Client struct {
	instanceURL string
	httpClient  *http.Client
}

// NewClient creates a ServiceNow client for cfg. When httpClient is nil a
// client with DefaultTimeout is used. For OAuth the token is requested here.
func NewClient(ctx context.Context, cfg *models.ServerConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	authed, err := authenticatedClient(ctx, cfg.Auth, httpClient)
	if err != nil {
		return nil, err
	}

	return &Client{
		instanceURL: strings.TrimRight(cfg.InstanceURL, "/"),
		httpClient:  authed,
	}, nil
}

// ListIncidents returns incidents matching params, newest first
func (c *Client) ListIncidents(ctx context.Context, params ListIncidentsParams) ([]Incident, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	var filters []string
	if params.State != "" {
		filters = append(filters, "state="+params.State)
	}
	if params.Category != "" {
		filters = append(filters, "category="+params.Category)
	}
	if params.AssignedTo != "" {
		filters = append(filters, "assigned_to="+params.AssignedTo)
	}
	if params.Query != "" {
		filters = append(filters, "short_descriptionLIKE"+params.Query+"^ORdescriptionLIKE"+params.Query)
	}
	filters = append(filters, "ORDERBYDESCsys_created_on")

	q := url.Values{}
	q.Set("sysparm_query", strings.Join(filters, "^"))
	q.Set("sysparm_limit", strconv.Itoa(limit))
	q.Set("sysparm_offset", strconv.Itoa(max(params.Offset, 0)))

	return c.queryIncidents(ctx, q)
}

// GetIncident returns the incident with the given number, e.g. INC0010001
func (c *Client) GetIncident(ctx context.Context, number string) (*Incident, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, ErrInvalidNumber
	}

	q := url.Values{}
	q.Set("sysparm_query", "number="+number)
	q.Set("sysparm_limit", "1")

	incidents, err := c.queryIncidents(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(incidents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncidentNotFound, number)
	}
	return &incidents[0], nil
}

func (c *Client) queryIncidents(ctx context.Context, q url.Values) ([]Incident, error) {
	q.Set("sysparm_fields", incidentFields)
	q.Set("sysparm_display_value", "true")
	q.Set("sysparm_exclude_reference_link", "true")

	var body struct {
		Result []Incident `json:"result"`
	}
	if err := c.get(ctx, incidentTablePath, q, &body); err != nil {
		return nil, err
	}
	return body.Result, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.instanceURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call servicenow: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
