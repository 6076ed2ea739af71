// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hylla/cotiza/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service       common.Service
	defaultTenant string
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter. defaultTenant is used when a
// request names no tenant_id.
func NewHandler(service common.Service, defaultTenant string) *Handler {
	return &Handler{
		service:       service,
		defaultTenant: strings.TrimSpace(defaultTenant),
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "quote service is not configured",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch path {
	case "tenants":
		switch r.Method {
		case http.MethodGet:
			h.handleListTenants(w, r)
		case http.MethodPost:
			h.handleCreateTenant(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case "clients":
		switch r.Method {
		case http.MethodGet:
			h.handleListClients(w, r)
		case http.MethodPost:
			h.handleCreateClient(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case "products":
		switch r.Method {
		case http.MethodGet:
			h.handleListProducts(w, r)
		case http.MethodPost:
			h.handleCreateProduct(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case "quotes":
		switch r.Method {
		case http.MethodGet:
			h.handleListQuotes(w, r)
		case http.MethodPost:
			h.handleCreateQuote(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
		return
	case "board":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBoard(w, r)
		return
	case "insights":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleInsights(w, r)
		return
	}

	quoteID, action, ok := resolveQuoteRoute(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetQuote(w, r, quoteID)
		case http.MethodDelete:
			h.handleDeleteQuote(w, r, quoteID)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	case "status":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleSetQuoteStatus(w, r, quoteID)
	case "pdf":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleQuotePDF(w, r, quoteID)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleListTenants serves GET `/tenants`.
func (h *Handler) handleListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.service.ListTenants(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tenants": tenants})
}

// handleCreateTenant serves POST `/tenants`.
func (h *Handler) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req common.CreateTenantRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	tenant, err := h.service.CreateTenant(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tenant)
}

// handleListClients serves GET `/clients`.
func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	clients, err := h.service.ListClients(r.Context(), tenantID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

// handleCreateClient serves POST `/clients`.
func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req common.CreateClientRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.TenantID = h.tenantOrDefault(req.TenantID)
	client, err := h.service.CreateClient(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// handleListProducts serves GET `/products`.
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	products, err := h.service.ListProducts(r.Context(), tenantID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// handleCreateProduct serves POST `/products`.
func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req common.CreateProductRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.TenantID = h.tenantOrDefault(req.TenantID)
	product, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// handleListQuotes serves GET `/quotes`.
func (h *Handler) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	quotes, err := h.service.ListQuotes(r.Context(), tenantID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

// handleCreateQuote serves POST `/quotes`.
func (h *Handler) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var req common.CreateQuoteRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.TenantID = h.tenantOrDefault(req.TenantID)
	quote, err := h.service.CreateQuote(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quote)
}

// handleGetQuote serves GET `/quotes/{id}`.
func (h *Handler) handleGetQuote(w http.ResponseWriter, r *http.Request, quoteID string) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	quote, err := h.service.GetQuote(r.Context(), tenantID, quoteID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleDeleteQuote serves DELETE `/quotes/{id}`.
func (h *Handler) handleDeleteQuote(w http.ResponseWriter, r *http.Request, quoteID string) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteQuote(r.Context(), tenantID, quoteID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetQuoteStatus serves POST `/quotes/{id}/status`.
func (h *Handler) handleSetQuoteStatus(w http.ResponseWriter, r *http.Request, quoteID string) {
	var payload struct {
		TenantID string `json:"tenant_id"`
		Status   string `json:"status"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	tenantID := strings.TrimSpace(payload.TenantID)
	if tenantID == "" {
		tenantID = strings.TrimSpace(r.URL.Query().Get("tenant_id"))
	}
	quote, err := h.service.SetQuoteStatus(r.Context(), common.SetQuoteStatusRequest{
		TenantID: h.tenantOrDefault(tenantID),
		QuoteID:  quoteID,
		Status:   payload.Status,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handleQuotePDF serves GET `/quotes/{id}/pdf`.
func (h *Handler) handleQuotePDF(w http.ResponseWriter, r *http.Request, quoteID string) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	number, doc, err := h.service.RenderQuotePDF(r.Context(), tenantID, quoteID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, number))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// handleBoard serves GET `/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	columns, err := h.service.Board(r.Context(), tenantID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": tenantID,
		"columns":   columns,
	})
}

// handleInsights serves GET `/insights`.
func (h *Handler) handleInsights(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.queryTenant(w, r)
	if !ok {
		return
	}
	insight, err := h.service.Insights(r.Context(), tenantID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

// queryTenant resolves tenant_id from the query string or the handler default.
func (h *Handler) queryTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := h.tenantOrDefault(r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    common.CodeInvalidRequest,
			Message: "tenant_id is required",
			Hint:    "Pass ?tenant_id=<id> or configure [tenant] default_id.",
		})
		return "", false
	}
	return tenantID, true
}

func (h *Handler) tenantOrDefault(tenantID string) string {
	if trimmed := strings.TrimSpace(tenantID); trimmed != "" {
		return trimmed
	}
	return h.defaultTenant
}

// resolveQuoteRoute parses `quotes/{id}` and `quotes/{id}/{action}`.
func resolveQuoteRoute(path string) (string, string, bool) {
	const prefix = "quotes/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	id := strings.TrimSpace(parts[0])
	if id == "" || len(parts) > 2 {
		return "", "", false
	}
	if len(parts) == 1 {
		return id, "", true
	}
	return id, parts[1], true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	if err == nil {
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    common.CodeInternal,
			Message: "unknown error",
		})
		return
	}
	switch code := common.ErrorCode(err); code {
	case common.CodeNotFound:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    code,
			Message: err.Error(),
		})
	case common.CodeInvalidRequest:
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    code,
			Message: err.Error(),
		})
	case common.CodeAllocationFailed:
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    code,
			Message: err.Error(),
			Hint:    "No quote was created. Retry the request.",
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    code,
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
