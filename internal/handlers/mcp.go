package handlers

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yorukot/servicenow-mcp/internal/services"
)

// ServerName is reported to MCP clients during initialization
const ServerName = "servicenow-mcp"

// IncidentService is the subset of the ServiceNow client used by the tools
type IncidentService interface {
	ListIncidents(ctx context.Context, params services.ListIncidentsParams) ([]services.Incident, error)
	GetIncident(ctx context.Context, number string) (*services.Incident, error)
}

// ListIncidentsInput represents the list_incidents arguments
type ListIncidentsInput struct {
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of incidents to return (default 10, max 100)"`
	Offset     int    `json:"offset,omitempty" jsonschema:"number of incidents to skip"`
	State      string `json:"state,omitempty" jsonschema:"filter by incident state"`
	Category   string `json:"category,omitempty" jsonschema:"filter by category"`
	AssignedTo string `json:"assigned_to,omitempty" jsonschema:"filter by assignee"`
	Query      string `json:"query,omitempty" jsonschema:"text to search for in the short description and description"`
}

// ListIncidentsOutput represents the list_incidents result
type ListIncidentsOutput struct {
	Incidents []services.Incident `json:"incidents"`
	Count     int                 `json:"count"`
}

// GetIncidentInput represents the get_incident arguments
type GetIncidentInput struct {
	Number string `json:"number" jsonschema:"incident number, e.g. INC0010001"`
}

// NewMCPServer creates the MCP server exposing the incident tools
func NewMCPServer(svc IncidentService, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_incidents",
		Description: "List ServiceNow incidents, newest first",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ListIncidentsInput) (*mcp.CallToolResult, ListIncidentsOutput, error) {
		incidents, err := svc.ListIncidents(ctx, services.ListIncidentsParams{
			Limit:      in.Limit,
			Offset:     in.Offset,
			State:      in.State,
			Category:   in.Category,
			AssignedTo: in.AssignedTo,
			Query:      in.Query,
		})
		if err != nil {
			return nil, ListIncidentsOutput{}, err
		}
		if incidents == nil {
			incidents = []services.Incident{}
		}
		return nil, ListIncidentsOutput{Incidents: incidents, Count: len(incidents)}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_incident",
		Description: "Get a ServiceNow incident by number",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in GetIncidentInput) (*mcp.CallToolResult, services.Incident, error) {
		incident, err := svc.GetIncident(ctx, in.Number)
		if err != nil {
			return nil, services.Incident{}, err
		}
		return nil, *incident, nil
	})

	return server
}
