package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"apgrhost/internal/domain"
	"apgrhost/internal/middleware"
	"apgrhost/internal/service"
	"apgrhost/pkg/errors"
	"apgrhost/pkg/logger"
	"apgrhost/pkg/utils"
)

// maxCollectBody caps the collector payload
const maxCollectBody = 64 << 10

// VisitorHandler handles visitor collection HTTP requests
type VisitorHandler struct {
	visitorService service.VisitorService
	logger         *logger.Logger
}

// NewVisitorHandler creates a new visitor handler
func NewVisitorHandler(visitorService service.VisitorService, logger *logger.Logger) *VisitorHandler {
	return &VisitorHandler{
		visitorService: visitorService,
		logger:         logger,
	}
}

// CollectRequest is the JSON body posted by the page script
type CollectRequest struct {
	Fingerprint         string     `json:"fingerprint"`
	UserAgent           string     `json:"userAgent"`
	Language            string     `json:"language"`
	Timezone            string     `json:"timezone"`
	Platform            string     `json:"platform"`
	ScreenSize          string     `json:"screenSize"`
	ScreenWidth         int        `json:"screenWidth"`
	ScreenHeight        int        `json:"screenHeight"`
	TouchSupport        bool       `json:"touchSupport"`
	TouchSupported      bool       `json:"touchSupported"`
	DeviceMemory        float64    `json:"deviceMemory"`
	HardwareConcurrency int        `json:"hardwareConcurrency"`
	WebRTCIPs           []string   `json:"webrtcIps"`
	ClientTime          flexString `json:"clientTime"`
}

// CollectResponse is returned for every processed observation
type CollectResponse struct {
	OK         bool   `json:"ok"`
	Skip       string `json:"skip,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Confidence *int   `json:"confidence,omitempty"`
	Suspicion  *int   `json:"suspicion,omitempty"`
	Trust      *int   `json:"trust,omitempty"`
}

// StatsResponse represents the response for visitor statistics
type StatsResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// flexString accepts a JSON string or number; clientTime arrives as epoch millis from most scripts
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Collect handles POST /collect
func (h *VisitorHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var body CollectRequest
	if err := decodeBody(r, &body); err != nil {
		h.sendError(w, r, errors.NewValidationError("Invalid request body", map[string]interface{}{
			"reason": err.Error(),
		}))
		return
	}

	req := &service.CollectRequest{
		Fingerprint: body.Fingerprint,
		RawIP:       utils.ClientIP(r),
		UserAgent:   firstNonEmpty(body.UserAgent, r.UserAgent()),
		Headers:     lowerHeaders(r.Header),
		Client: domain.ClientDetails{
			Language:            body.Language,
			Timezone:            body.Timezone,
			Platform:            body.Platform,
			ScreenSize:          body.ScreenSize,
			ScreenWidth:         body.ScreenWidth,
			ScreenHeight:        body.ScreenHeight,
			TouchSupport:        body.TouchSupport || body.TouchSupported,
			DeviceMemory:        body.DeviceMemory,
			HardwareConcurrency: body.HardwareConcurrency,
			WebRTCIPs:           body.WebRTCIPs,
			ClientTime:          string(body.ClientTime),
		},
	}

	result, err := h.visitorService.Collect(r.Context(), req)
	if err != nil {
		h.sendError(w, r, errors.NewInternalError("Failed to process visit", err))
		return
	}

	response := CollectResponse{OK: true, Skip: result.Skipped}
	if result.Skipped == "" {
		response.Kind = string(result.Classification.Kind)
		response.Confidence = result.Classification.ConfidencePercent
		suspicion, trust := result.Suspicion.Score, result.Trust
		response.Suspicion = &suspicion
		response.Trust = &trust
	}

	h.writeJSON(w, http.StatusOK, response)
}

// GetStats handles GET /api/visitor/stats
func (h *VisitorHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.visitorService.Stats(r.Context())
	if err != nil {
		h.sendError(w, r, errors.NewUnavailableError("Visitor store unavailable", err))
		return
	}

	h.writeJSON(w, http.StatusOK, StatsResponse{Success: true, Data: stats})
}

// GetVisitors handles GET /api/visitor/visitors
func (h *VisitorHandler) GetVisitors(w http.ResponseWriter, r *http.Request) {
	visitors, err := h.visitorService.Visitors(r.Context())
	if err != nil {
		h.sendError(w, r, errors.NewUnavailableError("Visitor store unavailable", err))
		return
	}
	if visitors == nil {
		visitors = []*domain.VisitRecord{}
	}

	h.writeJSON(w, http.StatusOK, StatsResponse{Success: true, Data: visitors})
}

// PingBot handles GET /ping-bot, used by uptime monitors
func (h *VisitorHandler) PingBot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *VisitorHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

// sendError sends a standardized error response
func (h *VisitorHandler) sendError(w http.ResponseWriter, r *http.Request, appErr *errors.AppError) {
	h.logger.WithError(appErr).WithField("path", r.URL.Path).Warn("Request failed")
	if err := errors.WriteJSON(w, appErr, middleware.GetRequestID(r.Context())); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// decodeBody reads a JSON object; an empty body is an empty observation
func decodeBody(r *http.Request, v interface{}) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxCollectBody))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func lowerHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[strings.ToLower(name)] = values[0]
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
