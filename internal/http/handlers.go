package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-collector-service/internal/classifier"
	"github.com/kjstillabower/weather-collector-service/internal/collector"
	"github.com/kjstillabower/weather-collector-service/internal/lifecycle"
	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/observability"
	"github.com/kjstillabower/weather-collector-service/internal/service"
	"github.com/kjstillabower/weather-collector-service/internal/traffic"
	"github.com/kjstillabower/weather-collector-service/internal/validation"
)

// City name bounds for POST /weather/collect-city, in runes.
const (
	cityMinLength = 1
	cityMaxLength = 100
)

// maxBodyBytes caps request bodies on the write endpoints.
const maxBodyBytes = 64 << 10

// HealthConfig holds the dependencies and thresholds GET /health evaluates.
type HealthConfig struct {
	Window           time.Duration
	DegradedErrorPct int
	// StorePing checks storage reachability. Required.
	StorePing func(ctx context.Context) error
	// CachePing, when set, checks cache reachability. Used when backend is memcached.
	CachePing func() error
	Version   string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	collector        *collector.Collector
	weatherService   *service.WeatherService
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	col *collector.Collector,
	weatherService *service.WeatherService,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		collector:      col,
		weatherService: weatherService,
		healthConfig:   healthConfig,
		logger:         logger,
	}
}

// collectionResponse is the body of both collection endpoints.
type collectionResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message"`
	Data    *models.StoredObservation `json:"data,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

type collectCityRequest struct {
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// PostCollect handles POST /weather/collect for the configured default location.
func (h *Handler) PostCollect(w http.ResponseWriter, r *http.Request) {
	city := h.collector.DefaultLocation().City
	rec, err := h.collector.CollectDefault(r.Context())
	if err != nil {
		writeCollectionError(w, r, city, err)
		return
	}
	h.weatherService.Remember(r.Context(), rec)
	writeJSON(w, http.StatusOK, collectionResponse{
		Success: true,
		Message: "Weather data collected successfully",
		Data:    &rec,
	})
}

// PostCollectCity handles POST /weather/collect-city with body {city, latitude, longitude}.
func (h *Handler) PostCollectCity(w http.ResponseWriter, r *http.Request) {
	var req collectCityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON object")
		return
	}
	city, err := validation.ValidateCity(req.City, cityMinLength, cityMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error())
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "latitude and longitude are required")
		return
	}
	if err := validation.ValidateCoordinates(*req.Latitude, *req.Longitude); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}

	rec, err := h.collector.CollectForCity(r.Context(), city, *req.Latitude, *req.Longitude)
	if err != nil {
		writeCollectionError(w, r, city, err)
		return
	}
	h.weatherService.Remember(r.Context(), rec)
	writeJSON(w, http.StatusOK, collectionResponse{
		Success: true,
		Message: "Weather data for " + city + " collected successfully",
		Data:    &rec,
	})
}

// PostLog handles POST /weather/logs. The body is stored as given, without classification.
func (h *Handler) PostLog(w http.ResponseWriter, r *http.Request) {
	var obs models.WeatherObservation
	if err := decodeBody(w, r, &obs); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	rec, err := h.weatherService.CreateRaw(r.Context(), obs)
	if err != nil {
		if errors.Is(err, service.ErrInvalidObservation) {
			writeError(w, r, http.StatusBadRequest, "INVALID_OBSERVATION", err.Error())
			return
		}
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetLogs handles GET /weather/logs, newest first.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	recs, err := h.weatherService.RecentLogs(r.Context(), service.RecentLogsLimit)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if recs == nil {
		recs = []models.StoredObservation{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetInsights handles GET /weather/insights.
func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.weatherService.Insights(r.Context())
	if errors.Is(err, service.ErrNotEnoughData) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Not enough data"})
		return
	}
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}

type rainResponse struct {
	models.RainInfo
	Code           *int   `json:"code,omitempty"`
	Emoji          string `json:"emoji"`
	IntensityLabel string `json:"intensityLabel"`
}

// GetRain handles GET /weather/rain?code=&description=. Both parameters are optional.
func (h *Handler) GetRain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var code *int
	if raw := strings.TrimSpace(q.Get("code")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_CODE", "code must be an integer")
			return
		}
		code = &n
	}
	info := classifier.Classify(code, q.Get("description"))
	writeJSON(w, http.StatusOK, rainResponse{
		RainInfo:       info,
		Code:           code,
		Emoji:          classifier.RainEmoji(info.Probability),
		IntensityLabel: classifier.IntensityLabel(info.Intensity),
	})
}

// GetLatestByCity handles GET /weather/cities/{city}/latest.
func (h *Handler) GetLatestByCity(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(mux.Vars(r)["city"])
	if city == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", validation.ErrCityEmpty.Error())
		return
	}
	rec, ok, err := h.weatherService.LatestByCity(r.Context(), city)
	if err != nil {
		writeStorageError(w, r, err)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no observations for "+city)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	version := "dev"
	if h.healthConfig != nil && h.healthConfig.Version != "" {
		version = h.healthConfig.Version
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   "weather-collector-service",
		"version":   version,
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > storage > cache > collection error rate > healthy.
// Storage and cache are always probed so checks are reported in full.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := map[string]string{}
	if h.healthConfig != nil && h.healthConfig.StorePing != nil {
		checks["storage"] = checkStatus(h.healthConfig.StorePing(ctx))
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		checks["cache"] = checkStatus(h.healthConfig.CachePing())
	}

	switch lifecycle.Current() {
	case lifecycle.Draining:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	case lifecycle.Starting:
		return healthResult{"starting", http.StatusServiceUnavailable, "not_ready", checks}
	}
	if checks["storage"] == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "storage_unreachable", checks}
	}
	if checks["cache"] == "unhealthy" {
		return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable", checks}
	}
	if h.healthConfig != nil && h.healthConfig.Window > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := traffic.ErrorRate(h.healthConfig.Window)
		if total > 0 && float64(errs)*100/float64(total) >= float64(h.healthConfig.DegradedErrorPct) {
			checks["weatherApi"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", checks}
		}
	}
	checks["weatherApi"] = "healthy"
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func checkStatus(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// decodeBody decodes a single JSON value from a size-capped body.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
// MethodNotAllowed answers a known path requested with an unsupported method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", r.Method+" not allowed on "+r.URL.Path)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeCollectionError renders a failed collection with the status for its kind.
func writeCollectionError(w http.ResponseWriter, r *http.Request, city string, err error) {
	writeJSON(w, collectionStatus(err), collectionResponse{
		Success: false,
		Message: "Error collecting weather data for " + city,
		Error:   err.Error(),
	})
}

// collectionStatus maps a collection failure to its HTTP status.
func collectionStatus(err error) int {
	var cerr *collector.CollectionError
	if !errors.As(err, &cerr) {
		return http.StatusInternalServerError
	}
	switch cerr.Kind {
	case collector.KindProviderRejected:
		return http.StatusBadGateway
	case collector.KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeStorageError writes a 500 for read or raw-write failures and logs the cause at WARN.
func writeStorageError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusInternalServerError, "STORAGE_FAILURE", "Unable to access weather records")
	observability.LoggerFrom(r.Context(), nil).Warn("storage error", zap.Error(err))
}
