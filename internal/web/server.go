package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openyield/treasury/internal/logger"
	"github.com/openyield/treasury/internal/state"
	"github.com/openyield/treasury/internal/treasury"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer serves the read-only treasury API and Prometheus metrics.
type WebServer struct {
	router     *mux.Router
	port       string
	controller *treasury.Controller
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, controller *treasury.Controller) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:     mux.NewRouter(),
		port:       port,
		controller: controller,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/treasury/value", ws.handleGetValue).Methods("GET")
	api.HandleFunc("/treasury/shares/value", ws.handleGetShareValue).Methods("GET")
	api.HandleFunc("/treasury/active-pair", ws.handleGetActivePair).Methods("GET")
	api.HandleFunc("/treasury/best-pair", ws.handleGetBestPair).Methods("GET")
	api.HandleFunc("/treasury/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/reallocations", ws.handleGetReallocations).Methods("GET")
	api.HandleFunc("/reallocations/latest", ws.handleGetLatestReallocation).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	latestRun, runErr := state.GetLatestReallocation()
	runInfo := map[string]interface{}{
		"last_run_id":     "",
		"last_run_time":   nil,
		"last_outcome":    "unknown",
	}
	if runErr != nil {
		hasErrors = true
	} else if latestRun != nil {
		runInfo = map[string]interface{}{
			"last_run_id":   latestRun.RunID,
			"last_run_time": latestRun.Timestamp,
			"last_outcome":  string(latestRun.Outcome),
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "treasuryd",
			"version": "1.0.0",
		},
		"treasury_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"active_pair":      ws.controller.ActivePairID(),
			"reallocation":     runInfo,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetValue returns the treasury's current total value.
func (ws *WebServer) handleGetValue(w http.ResponseWriter, r *http.Request) {
	total, err := ws.controller.TotalValue()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute total value")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute total value")
		return
	}

	response := map[string]interface{}{
		"total_value": total.Dec(),
		"active_pair": ws.controller.ActivePairID(),
		"timestamp":   time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetShareValue values a share amount given as ?amount=<decimal>.
func (ws *WebServer) handleGetShareValue(w http.ResponseWriter, r *http.Request) {
	amountStr := r.URL.Query().Get("amount")
	if amountStr == "" {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Missing amount parameter")
		return
	}

	amount, err := uint256.FromDecimal(amountStr)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid amount parameter")
		return
	}

	value, err := ws.controller.ValueOfShares(amount)
	if err != nil {
		webLogger.Error().Err(err).Str("amount", amountStr).Msg("Failed to value shares")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, "Failed to value shares")
		return
	}

	response := map[string]interface{}{
		"share_amount": amount.Dec(),
		"value":        value.Dec(),
		"timestamp":    time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetActivePair reports where capital is currently deployed.
func (ws *WebServer) handleGetActivePair(w http.ResponseWriter, r *http.Request) {
	token0, token1, ok := ws.controller.ActivePairTokens()
	if !ok {
		ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"deployed": false,
		})
		return
	}

	response := map[string]interface{}{
		"deployed": true,
		"pair_id":  ws.controller.ActivePairID(),
		"token0":   token0,
		"token1":   token1,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetBestPair runs a read-only rating scan over the candidate set.
func (ws *WebServer) handleGetBestPair(w http.ResponseWriter, r *http.Request) {
	best, ratings := ws.controller.BestPair()

	response := map[string]interface{}{
		"best_pair": best,
		"ratings":   ratings,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSummary returns history-wide aggregates from the database.
func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := state.GetTreasurySummary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get treasury summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve treasury summary")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetSnapshots returns recent value snapshots.
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := ws.parseLimit(r, 20)

	snapshots, err := state.GetRecentSnapshots(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetReallocations returns recent reallocation runs.
func (ws *WebServer) handleGetReallocations(w http.ResponseWriter, r *http.Request) {
	limit := ws.parseLimit(r, 20)

	records, err := state.GetRecentReallocations(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent reallocations")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve reallocations")
		return
	}

	response := map[string]interface{}{
		"reallocations": records,
		"count":         len(records),
		"limit":         limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestReallocation returns the most recent run.
func (ws *WebServer) handleGetLatestReallocation(w http.ResponseWriter, r *http.Request) {
	record, err := state.GetLatestReallocation()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get latest reallocation")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest reallocation")
		return
	}
	if record == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "No reallocation runs recorded")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, record)
}

func (ws *WebServer) parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
