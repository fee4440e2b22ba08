package handlers

import (
	"errors"
	"net/http"

	"github.com/astrafabric/monitor/internal/alerting"
	"github.com/astrafabric/monitor/internal/api"
	"github.com/astrafabric/monitor/internal/database"
	"github.com/astrafabric/monitor/internal/middleware"
	"github.com/astrafabric/monitor/internal/scheduler"
	"github.com/astrafabric/monitor/internal/services"
)

const maxGlobalAlertLimit = 500

// APIHandler serves the monitoring API
type APIHandler struct {
	monitorService *services.MonitorService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(monitorService *services.MonitorService) *APIHandler {
	return &APIHandler{monitorService: monitorService}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Resources
	mux.HandleFunc("POST /api/resources", h.handleCreateResource)
	mux.HandleFunc("GET /api/resources", h.handleListResources)
	mux.HandleFunc("DELETE /api/resources/{id}", h.handleDeleteResource)
	mux.HandleFunc("PATCH /api/resources/{id}", h.handleUpdateResource)
	mux.HandleFunc("GET /api/resources/{id}/metrics", h.handleResourceMetrics)
	mux.HandleFunc("GET /api/resources/{id}/status", h.handleResourceStatus)
	mux.HandleFunc("GET /api/resources/{id}/alerts", h.handleResourceAlerts)

	// Alert rules
	mux.HandleFunc("POST /api/resources/{id}/rules", h.handleCreateRule)
	mux.HandleFunc("GET /api/resources/{id}/rules", h.handleListRules)
	mux.HandleFunc("DELETE /api/resources/{id}/rules/{ruleID}", h.handleDeleteRule)

	// Notification channels
	mux.HandleFunc("POST /api/resources/{id}/channels", h.handleCreateChannel)
	mux.HandleFunc("GET /api/resources/{id}/channels", h.handleListChannels)

	// Dashboard
	mux.HandleFunc("GET /api/aggregated", h.handleAggregated)
	mux.HandleFunc("GET /api/alerts", h.handleGlobalAlerts)
	mux.HandleFunc("GET /api/monitors", h.handleMonitors)
}

// ========== Helpers ==========

// customerID resolves the customer of a request: the verified token claim
// when present, otherwise the customer_id query parameter or fallback.
func customerID(r *http.Request, fallback string) string {
	if id, ok := middleware.CustomerFromContext(r.Context()); ok {
		return id
	}
	if id := r.URL.Query().Get("customer_id"); id != "" {
		return id
	}
	return fallback
}

// loadResource fetches the resource named in the path. Resources of other
// customers are reported as not found.
func (h *APIHandler) loadResource(r *http.Request) (*database.Resource, error) {
	res, err := h.monitorService.GetResource(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if owner, ok := middleware.CustomerFromContext(r.Context()); ok && owner != res.CustomerID {
		return nil, database.ErrNotFound
	}
	return res, nil
}

// respondServiceError translates service and storage errors
func respondServiceError(w http.ResponseWriter, op string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		api.RespondValidationError(w, verr.Fields)
	case errors.Is(err, database.ErrNotFound):
		api.RespondNotFound(w, "Resource not found")
	default:
		api.RespondInternalError(w, op, err)
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := api.DecodeJSON(r, dst); err != nil {
		api.RespondBodyError(w, err)
		return false
	}
	if errs := api.Validate(dst); errs != nil {
		api.RespondValidationError(w, errs)
		return false
	}
	return true
}

// ========== Resources ==========

func (h *APIHandler) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req api.CreateResourceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	customer := customerID(r, req.CustomerID)
	if customer == "" {
		api.RespondValidationError(w, map[string]string{"customer_id": "is required"})
		return
	}

	id, err := h.monitorService.AddResource(r.Context(), api.ResourceRequestToService(req, customer))
	if err != nil {
		respondServiceError(w, "add resource", err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, api.CreateResourceResponse{ID: id})
}

func (h *APIHandler) handleListResources(w http.ResponseWriter, r *http.Request) {
	customer := customerID(r, "")
	if customer == "" {
		api.RespondValidationError(w, map[string]string{"customer_id": "is required"})
		return
	}

	resources, err := h.monitorService.GetCustomerResources(r.Context(), customer)
	if err != nil {
		respondServiceError(w, "list resources", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, resources)
}

func (h *APIHandler) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "remove resource", err)
		return
	}
	if err := h.monitorService.RemoveResource(r.Context(), res.ID); err != nil {
		respondServiceError(w, "remove resource", err)
		return
	}
	api.RespondNoContent(w)
}

func (h *APIHandler) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateResourceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "update resource", err)
		return
	}
	if err := h.monitorService.UpdatePollInterval(r.Context(), res.ID, req.PollIntervalMs); err != nil {
		respondServiceError(w, "update resource", err)
		return
	}

	updated, err := h.monitorService.GetResource(r.Context(), res.ID)
	if err != nil {
		respondServiceError(w, "update resource", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, updated)
}

// handleResourceMetrics answers with an empty series for unknown resources
func (h *APIHandler) handleResourceMetrics(w http.ResponseWriter, r *http.Request) {
	timeRange := api.ParseRange(r)
	resp := api.ResourceMetricsResponse{
		ResourceID: r.PathValue("id"),
		Range:      timeRange,
		Metrics:    []database.MetricsSample{},
	}

	if _, err := h.loadResource(r); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			api.RespondJSON(w, http.StatusOK, resp)
			return
		}
		respondServiceError(w, "resource metrics", err)
		return
	}

	metrics, err := h.monitorService.GetResourceMetrics(r.Context(), resp.ResourceID, timeRange)
	if err != nil {
		respondServiceError(w, "resource metrics", err)
		return
	}
	resp.Metrics = metrics
	api.RespondJSON(w, http.StatusOK, resp)
}

// handleResourceStatus answers unknown for resources that do not exist
func (h *APIHandler) handleResourceStatus(w http.ResponseWriter, r *http.Request) {
	resp := api.ResourceStatusResponse{ResourceID: r.PathValue("id"), Status: alerting.StatusUnknown}

	if _, err := h.loadResource(r); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			api.RespondJSON(w, http.StatusOK, resp)
			return
		}
		respondServiceError(w, "resource status", err)
		return
	}

	resp.Status = h.monitorService.GetResourceStatus(r.Context(), resp.ResourceID)
	api.RespondJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) handleResourceAlerts(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "active alerts", err)
		return
	}
	alerts, err := h.monitorService.GetActiveAlerts(r.Context(), res.ID)
	if err != nil {
		respondServiceError(w, "active alerts", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, alerts)
}

// ========== Alert rules ==========

func (h *APIHandler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAlertRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "add alert rule", err)
		return
	}

	rule, err := h.monitorService.AddAlertRule(r.Context(), res.ID, api.AlertRuleRequestToService(req))
	if err != nil {
		respondServiceError(w, "add alert rule", err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, rule)
}

func (h *APIHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "list alert rules", err)
		return
	}
	rules, err := h.monitorService.ListAlertRules(r.Context(), res.ID)
	if err != nil {
		respondServiceError(w, "list alert rules", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, rules)
}

func (h *APIHandler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "delete alert rule", err)
		return
	}
	if err := h.monitorService.DeleteAlertRule(r.Context(), res.ID, r.PathValue("ruleID")); err != nil {
		respondServiceError(w, "delete alert rule", err)
		return
	}
	api.RespondNoContent(w)
}

// ========== Notification channels ==========

func (h *APIHandler) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req api.CreateChannelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "add notification channel", err)
		return
	}

	ch, err := h.monitorService.AddNotificationChannel(r.Context(), res.ID, api.ChannelRequestToService(req))
	if err != nil {
		respondServiceError(w, "add notification channel", err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, ch)
}

func (h *APIHandler) handleListChannels(w http.ResponseWriter, r *http.Request) {
	res, err := h.loadResource(r)
	if err != nil {
		respondServiceError(w, "list notification channels", err)
		return
	}
	channels, err := h.monitorService.ListChannels(r.Context(), res.ID)
	if err != nil {
		respondServiceError(w, "list notification channels", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, channels)
}

// ========== Dashboard ==========

func (h *APIHandler) handleAggregated(w http.ResponseWriter, r *http.Request) {
	customer := customerID(r, "")
	if customer == "" {
		api.RespondValidationError(w, map[string]string{"customer_id": "is required"})
		return
	}

	agg, err := h.monitorService.GetAggregatedMetrics(r.Context(), customer)
	if err != nil {
		respondServiceError(w, "aggregated metrics", err)
		return
	}
	api.RespondJSON(w, http.StatusOK, agg)
}

// handleGlobalAlerts returns the alert feed. Token holders only see alerts
// of their own resources among the requested entries.
func (h *APIHandler) handleGlobalAlerts(w http.ResponseWriter, r *http.Request) {
	limit := api.ParseLimit(r, services.DefaultGlobalAlertLimit, maxGlobalAlertLimit)
	alerts, err := h.monitorService.GetGlobalAlerts(r.Context(), limit)
	if err != nil {
		respondServiceError(w, "global alerts", err)
		return
	}

	if owner, ok := middleware.CustomerFromContext(r.Context()); ok {
		owned, err := h.customerResourceIDs(r, owner)
		if err != nil {
			respondServiceError(w, "global alerts", err)
			return
		}
		filtered := make([]database.ActiveAlert, 0, len(alerts))
		for _, a := range alerts {
			if owned[a.ResourceID] {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}
	api.RespondJSON(w, http.StatusOK, alerts)
}

func (h *APIHandler) handleMonitors(w http.ResponseWriter, r *http.Request) {
	monitors := h.monitorService.Monitors()

	if owner, ok := middleware.CustomerFromContext(r.Context()); ok {
		owned, err := h.customerResourceIDs(r, owner)
		if err != nil {
			respondServiceError(w, "monitors", err)
			return
		}
		filtered := make([]scheduler.MonitorInfo, 0, len(monitors))
		for _, m := range monitors {
			if owned[m.ResourceID] {
				filtered = append(filtered, m)
			}
		}
		monitors = filtered
	}
	api.RespondJSON(w, http.StatusOK, monitors)
}

func (h *APIHandler) customerResourceIDs(r *http.Request, customer string) (map[string]bool, error) {
	views, err := h.monitorService.GetCustomerResources(r.Context(), customer)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(views))
	for _, v := range views {
		ids[v.ID] = true
	}
	return ids, nil
}
