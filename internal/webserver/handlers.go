package webserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/provmon/provmon/internal/checks"
	"github.com/provmon/provmon/internal/crawler"
	"github.com/provmon/provmon/internal/database"
	"github.com/provmon/provmon/internal/database/models"
	"github.com/provmon/provmon/internal/drift"
	"github.com/provmon/provmon/internal/registry"
)

type scanRequest struct {
	NPI  string `json:"npi"`
	URL  string `json:"url"`
	Tier string `json:"tier"`
}

type crawlRequest struct {
	URL string `json:"url"`
}

type baselineRequest struct {
	NPI        string                             `json:"npi"`
	PageURL    string                             `json:"page_url"`
	Framework  string                             `json:"framework"`
	Categories map[string]crawler.CategoryContent `json:"categories"`
}

type driftReportRequest struct {
	NPI          string              `json:"npi"`
	PageURL      string              `json:"page_url"`
	WidgetMode   string              `json:"widget_mode"`
	Observations []drift.Observation `json:"observations"`
}

type driftStatusRequest struct {
	Status     string `json:"status"`
	ResolvedBy string `json:"resolved_by"`
}

type heartbeatRequest struct {
	NPI        string `json:"npi"`
	PageURL    string `json:"page_url"`
	WidgetMode string `json:"widget_mode"`
}

type watchRequest struct {
	NPI  string `json:"npi"`
	URL  string `json:"url"`
	Tier string `json:"tier"`
}

type registryResponse struct {
	Organization *registry.OrgRecord       `json:"organization"`
	Providers    []registry.ProviderRecord `json:"providers,omitempty"`
}

type checkInfo struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Name     string          `json:"name"`
	Severity checks.Severity `json:"severity"`
	Tier     checks.Tier     `json:"tier"`
}

// handleRunScan handles the POST /api/scans endpoint.
func (ws *WebServer) handleRunScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.NPI == "" || req.URL == "" {
		WriteErrorResponse(w, "npi and url are required", http.StatusBadRequest)
		return
	}
	tier := checks.Tier(req.Tier)
	if req.Tier == "" {
		tier = checks.TierFree
	}
	if !checks.ValidTier(tier) {
		WriteErrorResponse(w, "Unknown tier: "+req.Tier, http.StatusBadRequest)
		return
	}

	session, err := ws.Engine.Run(ctx, req.NPI, req.URL, tier, "api")
	if err != nil {
		ws.Logger.WithError(err).Error("Scan failed")
		WriteErrorResponse(w, "Scan failed", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Scan completed", session)
}

// handleGetScans handles the GET /api/scans endpoint.
func (ws *WebServer) handleGetScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(query.Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = 20
	}

	sessions, total, err := ws.DB.LoadScanSessions(ctx, query.Get("npi"), page, perPage)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to load scan sessions")
		WriteErrorResponse(w, "Failed to retrieve scan sessions", http.StatusInternalServerError)
		return
	}

	totalPages := (total + perPage - 1) / perPage
	response := models.SessionsResponse{
		Sessions:   sessions,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	WriteSuccessResponse(w, "Scan sessions retrieved successfully", response)
}

// handleCrawl handles the POST /api/crawl endpoint.
func (ws *WebServer) handleCrawl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.URL == "" {
		WriteErrorResponse(w, "url is required", http.StatusBadRequest)
		return
	}

	snapshot, err := ws.Crawler.Crawl(ctx, crawler.NormalizeURL(req.URL))
	if err != nil {
		ws.Logger.WithField("url", req.URL).WithError(err).Warn("Crawl failed")
		WriteErrorResponse(w, "Could not fetch the site", http.StatusBadGateway)
		return
	}

	WriteSuccessResponse(w, "Crawl completed", snapshot)
}

// handleGetRegistry handles the GET /api/registry/{npi} endpoint. A missing
// provider is a 404; an unreachable registry is a 502, never conflated.
func (ws *WebServer) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	npi := mux.Vars(r)["npi"]

	org, err := ws.Registry.FetchOrganization(ctx, npi)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			WriteErrorResponse(w, "Provider not found in registry", http.StatusNotFound)
			return
		}
		ws.Logger.WithField("npi", npi).WithError(err).Error("Registry lookup failed")
		WriteErrorResponse(w, "Registry unavailable", http.StatusBadGateway)
		return
	}

	providers, err := ws.Registry.FetchProvidersByGeo(ctx, org.PracticeCity, org.PracticeState, org.PracticeZip)
	if err != nil {
		ws.Logger.WithField("npi", npi).WithError(err).Warn("Geo roster lookup failed")
	}

	WriteSuccessResponse(w, "Registry data retrieved successfully", registryResponse{
		Organization: org,
		Providers:    providers,
	})
}

// handleGetChecks handles the GET /api/checks endpoint.
func (ws *WebServer) handleGetChecks(w http.ResponseWriter, r *http.Request) {
	modules := ws.Checks.All()
	if tierParam := r.URL.Query().Get("tier"); tierParam != "" {
		tier := checks.Tier(tierParam)
		if !checks.ValidTier(tier) {
			WriteErrorResponse(w, "Unknown tier: "+tierParam, http.StatusBadRequest)
			return
		}
		modules = ws.Checks.ForTier(tier)
	}

	infos := make([]checkInfo, 0, len(modules))
	for _, m := range modules {
		infos = append(infos, checkInfo{
			ID:       m.ID(),
			Category: m.Category(),
			Name:     m.Name(),
			Severity: m.Severity(),
			Tier:     m.Tier(),
		})
	}

	WriteSuccessResponse(w, "Checks retrieved successfully", infos)
}

// handleSetBaselines handles the POST /api/baselines endpoint.
func (ws *WebServer) handleSetBaselines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req baselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.NPI == "" || len(req.Categories) == 0 {
		WriteErrorResponse(w, "npi and categories are required", http.StatusBadRequest)
		return
	}
	if req.PageURL == "" {
		req.PageURL = "/"
	}

	if err := ws.Detector.SetBaselines(ctx, req.NPI, req.PageURL, req.Framework, req.Categories); err != nil {
		ws.Logger.WithError(err).Error("Failed to set baselines")
		WriteErrorResponse(w, "Failed to set baselines", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Baselines updated", map[string]int{"upserted": len(req.Categories)})
}

// handleGetBaselines handles the GET /api/baselines endpoint.
func (ws *WebServer) handleGetBaselines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	npi := r.URL.Query().Get("npi")
	if npi == "" {
		WriteErrorResponse(w, "npi is required", http.StatusBadRequest)
		return
	}

	baselines, err := ws.DB.GetBaselines(ctx, npi, r.URL.Query().Get("page_url"))
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to load baselines")
		WriteErrorResponse(w, "Failed to retrieve baselines", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Baselines retrieved successfully", baselines)
}

// handleReportDrift handles the POST /api/drift endpoint.
func (ws *WebServer) handleReportDrift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req driftReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.NPI == "" || len(req.Observations) == 0 {
		WriteErrorResponse(w, "npi and observations are required", http.StatusBadRequest)
		return
	}

	report, err := ws.Detector.ReportObservations(ctx, req.NPI, req.PageURL, req.Observations)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to report drift")
		WriteErrorResponse(w, "Failed to record drift", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Drift observations processed", report)
}

// handleGetDrift handles the GET /api/drift endpoint.
func (ws *WebServer) handleGetDrift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit < 1 {
		limit = 50
	}
	offset, err := strconv.Atoi(query.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	filter := models.DriftFilter{
		NPI:      query.Get("npi"),
		Status:   models.DriftStatus(query.Get("status")),
		Severity: query.Get("severity"),
		Limit:    limit,
		Offset:   offset,
	}

	events, total, err := ws.DB.LoadDriftEvents(ctx, filter)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to load drift events")
		WriteErrorResponse(w, "Failed to retrieve drift events", http.StatusInternalServerError)
		return
	}

	response := models.DriftEventsResponse{
		Events: events,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}

	WriteSuccessResponse(w, "Drift events retrieved successfully", response)
}

// handleUpdateDrift handles the PATCH /api/drift/{id} endpoint.
func (ws *WebServer) handleUpdateDrift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var req driftStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	event, err := ws.Detector.UpdateStatus(ctx, id, models.DriftStatus(req.Status), req.ResolvedBy)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorResponse(w, "Drift event not found", http.StatusNotFound)
			return
		}
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	WriteSuccessResponse(w, "Drift event updated", event)
}

// handleHeartbeat handles the POST /api/heartbeat endpoint.
func (ws *WebServer) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.NPI == "" {
		WriteErrorResponse(w, "npi is required", http.StatusBadRequest)
		return
	}
	if req.PageURL == "" {
		req.PageURL = "/"
	}
	if req.WidgetMode == "" {
		req.WidgetMode = "watch"
	}

	heartbeat, err := ws.DB.RecordHeartbeat(ctx, req.NPI, req.PageURL, req.WidgetMode, time.Now().UTC())
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to record heartbeat")
		WriteErrorResponse(w, "Failed to record heartbeat", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Heartbeat recorded", heartbeat)
}

// handleWatch handles the POST /api/watch endpoint.
func (ws *WebServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req watchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	tier := checks.Tier(req.Tier)
	if req.Tier == "" {
		tier = checks.TierFree
	}

	entry, err := ws.Monitor.Watch(ctx, req.NPI, req.URL, tier)
	if err != nil {
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	WriteSuccessResponse(w, "Provider added to watch list", entry)
}

// handleGetWatchList handles the GET /api/watch endpoint.
func (ws *WebServer) handleGetWatchList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providers, err := ws.DB.LoadWatchedProviders(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to load watch list")
		WriteErrorResponse(w, "Failed to retrieve watch list", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Watch list retrieved successfully", providers)
}

// handleUnwatch handles the DELETE /api/watch/{npi} endpoint.
func (ws *WebServer) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	npi := mux.Vars(r)["npi"]

	if err := ws.Monitor.Unwatch(ctx, npi); err != nil {
		ws.Logger.WithError(err).Error("Failed to remove watch list entry")
		WriteErrorResponse(w, "Failed to remove watch list entry", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Provider removed from watch list", nil)
}

// handleGetStats handles the GET /api/stats endpoint.
func (ws *WebServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := ws.DB.GetStats(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to retrieve stats")
		WriteErrorResponse(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Statistics retrieved successfully", stats)
}
