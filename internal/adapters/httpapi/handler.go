// Package httpapi exposes the cluster review service over JSON/HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"ecodcluster/docs/schema/openapi"
	"ecodcluster/internal/blob"
	"ecodcluster/internal/core"
	"ecodcluster/pkg/domain"
)

// Route prefixes served by Handler.
const (
	APIPrefix      = "/api/v1"
	ReportsPath    = APIPrefix + "/reports"
	ReportDownload = ReportsPath + "/"
)

// Handler routes /api/v1 requests to the service. Reports is optional; when
// nil the report endpoints answer 404.
type Handler struct {
	Service *core.Service
	Reports *core.ReportService
}

// NewHandler constructs the API handler.
func NewHandler(svc *core.Service, reports *core.ReportService) *Handler {
	return &Handler{Service: svc, Reports: reports}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, string(domain.KindInternal), "cluster service not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == APIPrefix+"/clusters/priority":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handlePriority(w, r)
	case strings.HasPrefix(path, APIPrefix+"/clusters/"):
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleCluster(w, r, strings.TrimPrefix(path, APIPrefix+"/clusters/"))
	case path == APIPrefix+"/cluster-sets":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleClusterSets(w, r)
	case path == APIPrefix+"/dashboard/summary":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleSummary(w, r)
	case path == APIPrefix+"/dashboard/taxonomy":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleTaxonomy(w, r)
	case path == APIPrefix+"/dashboard/quality":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleQuality(w, r)
	case path == APIPrefix+"/openapi.yaml":
		if !allow(w, r, http.MethodGet) {
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openapi.Spec())
	case path == ReportsPath || strings.HasPrefix(path, ReportDownload):
		if h.Reports == nil {
			http.NotFound(w, r)
			return
		}
		h.handleReports(w, r, path)
	default:
		http.NotFound(w, r)
	}
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	return false
}

func (h *Handler) handlePriority(w http.ResponseWriter, r *http.Request) {
	q, err := parsePriorityQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	format, err := core.ParseReportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	page, err := h.Service.ListPriorityClusters(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if format == core.ReportCSV {
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_ = core.WritePriorityCSV(w, page)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCluster(w http.ResponseWriter, r *http.Request, rawID string) {
	if rawID == "" || strings.Contains(rawID, "/") {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeServiceError(w, domain.InvalidArgument("cluster id", "must be an integer, got %q", rawID))
		return
	}
	detail, err := h.Service.GetCluster(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cluster": detail})
}

func (h *Handler) handleClusterSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.Service.ListClusterSets(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cluster_sets": sets})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	setID, err := int64Param(r, "cluster_set_id", 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	summary, err := h.Service.Summary(r.Context(), setID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (h *Handler) handleTaxonomy(w http.ResponseWriter, r *http.Request) {
	q := domain.DefaultTaxonomyQuery()
	var err error
	if q.Limit, err = intParam(r, "limit", q.Limit); err != nil {
		writeServiceError(w, err)
		return
	}
	if q.ClusterSetID, err = int64Param(r, "cluster_set_id", 0); err != nil {
		writeServiceError(w, err)
		return
	}
	if q.ExcludeSingletons, err = boolParam(r, "exclude_singletons", q.ExcludeSingletons); err != nil {
		writeServiceError(w, err)
		return
	}
	rows, err := h.Service.TaxonomyBreakdown(r.Context(), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tgroups": rows})
}

func (h *Handler) handleQuality(w http.ResponseWriter, r *http.Request) {
	setID, err := int64Param(r, "cluster_set_id", 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dist, err := h.Service.QualityDistribution(r.Context(), setID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"distribution": dist})
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request, path string) {
	switch path {
	case ReportsPath:
		if !allow(w, r, http.MethodGet) {
			return
		}
		reports, err := h.Reports.ListReports(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
		return
	case ReportsPath + "/priority":
		if !allow(w, r, http.MethodPost) {
			return
		}
		h.handleExport(w, r)
		return
	}

	key := strings.TrimPrefix(path, ReportDownload)
	switch r.Method {
	case http.MethodGet:
		h.handleReportGet(w, r, key)
	case http.MethodDelete:
		if err := h.Reports.DeleteReport(r.Context(), key); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		allow(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := parsePriorityQuery(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	format, err := core.ParseReportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	info, err := h.Reports.ExportPriority(r.Context(), q, format)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", ReportDownload+info.Key)
	writeJSON(w, http.StatusCreated, map[string]any{"report": info})
}

func (h *Handler) handleReportGet(w http.ResponseWriter, r *http.Request, key string) {
	presign, err := boolParam(r, "presign", false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if presign {
		url, err := h.Reports.ReportURL(r.Context(), key, 0)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})
		return
	}
	info, body, err := h.Reports.OpenReport(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer func() { _ = body.Close() }()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		w.Header().Set("ETag", strconv.Quote(info.ETag))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func parsePriorityQuery(r *http.Request) (domain.PriorityQuery, error) {
	q := domain.DefaultPriorityQuery()
	var err error
	if q.Limit, err = intParam(r, "limit", q.Limit); err != nil {
		return q, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		q.Category = domain.Category(strings.ToLower(raw))
	}
	if q.ExcludeSingletons, err = boolParam(r, "exclude_singletons", q.ExcludeSingletons); err != nil {
		return q, err
	}
	if q.ClusterSetID, err = int64Param(r, "cluster_set_id", 0); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, domain.InvalidArgument("query", "%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func int64Param(r *http.Request, name string, def int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, domain.InvalidArgument("query", "%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, domain.InvalidArgument("query", "%s must be a boolean, got %q", name, raw)
	}
	return v, nil
}

// writeServiceError maps a service error to its HTTP status. Data source and
// internal failures never expose their cause to the client.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, blob.ErrUnsupported) {
		writeError(w, http.StatusNotImplemented, "unsupported", "operation not supported by the report store")
		return
	}
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindInvalidArgument:
		writeError(w, http.StatusBadRequest, string(kind), err.Error())
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, string(kind), err.Error())
	case domain.KindDataSource:
		writeError(w, http.StatusInternalServerError, string(kind), "data source unavailable")
	default:
		writeError(w, http.StatusInternalServerError, string(domain.KindInternal), "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": message, "code": code})
}
