package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	mw "github.com/yorukot/servicenow-mcp/internal/middleware"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	// APIKey protects the MCP endpoints when non-empty
	APIKey string
	// APIKeyHeader, when set, is the only header the key is read from
	APIKeyHeader string
	// RequestLogging enables chi's request logger
	RequestLogging bool
	Logger         *slog.Logger
}

// NewRouter mounts the MCP transports for server.
//
//	/sse    SSE transport: GET opens a session, POST ?sessionid= delivers messages
//	/mcp    streamable HTTP transport
//	/health liveness probe, never authenticated
func NewRouter(server *mcp.Server, opts RouterOptions) http.Handler {
	getServer := func(*http.Request) *mcp.Server { return server }
	sse := mcp.NewSSEHandler(getServer, nil)
	streamable := mcp.NewStreamableHTTPHandler(getServer, &mcp.StreamableHTTPOptions{Logger: opts.Logger})

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	if opts.RequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", Health)

	r.Group(func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(mw.APIKeyAuth(opts.APIKey, opts.APIKeyHeader))
		}

		r.Handle("/sse", sse)
		r.Handle("/mcp", streamable)
	})

	return r
}

// Health reports that the process is serving
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
