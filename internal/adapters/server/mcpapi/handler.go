// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hylla/cotiza/internal/adapters/server/common"
	"github.com/hylla/cotiza/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
	// DefaultTenant is used when a tool call names no tenant_id.
	DefaultTenant string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter with the board, quote and insight tools.
func NewHandler(cfg Config, quotes common.QuoteService, insights common.InsightReader) (*Handler, error) {
	if quotes == nil {
		return nil, fmt.Errorf("quote service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerQuoteTools(mcpSrv, quotes, cfg.DefaultTenant)
	if insights != nil {
		registerInsightTool(mcpSrv, insights, cfg.DefaultTenant)
	}

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "cotiza"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	cfg.DefaultTenant = strings.TrimSpace(cfg.DefaultTenant)
	return cfg
}

// statusValues lists the accepted status wire values.
func statusValues() []string {
	statuses := domain.QuoteStatuses()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// registerQuoteTools registers board and quote mutation tools.
func registerQuoteTools(srv *mcpserver.MCPServer, quotes common.QuoteService, defaultTenant string) {
	srv.AddTool(
		mcp.NewTool(
			"cotiza.list_board",
			mcp.WithDescription("List a tenant's quotes grouped into status columns."),
			mcp.WithString("tenant_id", mcp.Description("Tenant identifier (defaults to the configured tenant)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tenantID := resolveTenant(req.GetString("tenant_id", ""), defaultTenant)
			if tenantID == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "tenant_id" not found`), nil
			}
			columns, err := quotes.Board(ctx, tenantID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(map[string]any{
				"tenant_id": tenantID,
				"columns":   columns,
			})
			if err != nil {
				return nil, fmt.Errorf("encode list_board result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"cotiza.create_quote",
			mcp.WithDescription("Create a draft quote. A unique quote number is allocated for the tenant."),
			mcp.WithString("tenant_id", mcp.Description("Tenant identifier (defaults to the configured tenant)")),
			mcp.WithString("client_id", mcp.Required(), mcp.Description("Client identifier")),
			mcp.WithArray("items", mcp.Required(), mcp.Description("Quote lines"), mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"product_id":  map[string]any{"type": "string"},
					"quantity":    map[string]any{"type": "integer", "minimum": 1},
					"description": map[string]any{"type": "string"},
					"unit_price":  map[string]any{"type": "string", "description": "Decimal override of the catalog price"},
				},
				"required": []string{"product_id", "quantity"},
			})),
			mcp.WithString("tax_rate", mcp.Description("Decimal tax rate override such as 0.16")),
			mcp.WithString("notes", mcp.Description("Optional notes printed on the quote")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				TenantID string                    `json:"tenant_id"`
				ClientID string                    `json:"client_id"`
				Items    []common.QuoteItemRequest `json:"items"`
				TaxRate  string                    `json:"tax_rate"`
				Notes    string                    `json:"notes"`
			}
			if err := req.BindArguments(&args); err != nil {
				return mcp.NewToolResultError("invalid_request: " + err.Error()), nil
			}
			tenantID := resolveTenant(args.TenantID, defaultTenant)
			if tenantID == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "tenant_id" not found`), nil
			}
			if strings.TrimSpace(args.ClientID) == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "client_id" not found`), nil
			}
			quote, err := quotes.CreateQuote(ctx, common.CreateQuoteRequest{
				TenantID: tenantID,
				ClientID: args.ClientID,
				Items:    args.Items,
				TaxRate:  args.TaxRate,
				Notes:    args.Notes,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(quote)
			if err != nil {
				return nil, fmt.Errorf("encode create_quote result: %w", err)
			}
			return result, nil
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"cotiza.set_quote_status",
			mcp.WithDescription("Set a quote's status. Any status may follow any other."),
			mcp.WithString("tenant_id", mcp.Description("Tenant identifier (defaults to the configured tenant)")),
			mcp.WithString("quote_id", mcp.Required(), mcp.Description("Quote id or number")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Target status"), mcp.Enum(statusValues()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			quoteID, err := req.RequireString("quote_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status, err := req.RequireString("status")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			tenantID := resolveTenant(req.GetString("tenant_id", ""), defaultTenant)
			if tenantID == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "tenant_id" not found`), nil
			}
			quote, err := quotes.SetQuoteStatus(ctx, common.SetQuoteStatusRequest{
				TenantID: tenantID,
				QuoteID:  quoteID,
				Status:   status,
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(quote)
			if err != nil {
				return nil, fmt.Errorf("encode set_quote_status result: %w", err)
			}
			return result, nil
		},
	)
}

// registerInsightTool registers the `cotiza.get_insights` tool.
func registerInsightTool(srv *mcpserver.MCPServer, insights common.InsightReader, defaultTenant string) {
	srv.AddTool(
		mcp.NewTool(
			"cotiza.get_insights",
			mcp.WithDescription("Return the cached business summary for a tenant."),
			mcp.WithString("tenant_id", mcp.Description("Tenant identifier (defaults to the configured tenant)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tenantID := resolveTenant(req.GetString("tenant_id", ""), defaultTenant)
			if tenantID == "" {
				return mcp.NewToolResultError(`invalid_request: required argument "tenant_id" not found`), nil
			}
			insight, err := insights.Insights(ctx, tenantID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			result, err := mcp.NewToolResultJSON(insight)
			if err != nil {
				return nil, fmt.Errorf("encode get_insights result: %w", err)
			}
			return result, nil
		},
	)
}

func resolveTenant(tenantID, fallback string) string {
	if trimmed := strings.TrimSpace(tenantID); trimmed != "" {
		return trimmed
	}
	return fallback
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("unknown error")
	}
	return mcp.NewToolResultError(common.ErrorCode(err) + ": " + err.Error())
}
