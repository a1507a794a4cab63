package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"busmate/internal/busnum"
	"busmate/internal/domain"
	"busmate/internal/location"
	"busmate/internal/pipeline"
	"busmate/internal/recon"
	"busmate/internal/session"
)

// Registrar registers a bus number with the arrival service and returns
// the rider identifier issued for it.
type Registrar interface {
	RegisterBusNumber(ctx context.Context, busNumber string) (int64, error)
}

// FrameProcessor accepts camera frames for recognition.
type FrameProcessor interface {
	ProcessFrame(ctx context.Context, frame pipeline.Frame) int
}

// TrackingController is the location session surface the HTTP layer uses.
type TrackingController interface {
	StartTracking(ctx context.Context) bool
	StopTracking()
	IsTracking() bool
	HasNearbyBusStops() bool
	ConnectionState() domain.ConnectionState
}

type HTTPHandler struct {
	registrar Registrar
	sessions  *session.Store
	engine    *recon.Engine
	processor FrameProcessor
	tracker   TrackingController
	geo       *location.ReportedGeolocator
	logger    *slog.Logger
}

func NewHTTPHandler(
	registrar Registrar,
	sessions *session.Store,
	engine *recon.Engine,
	processor FrameProcessor,
	tracker TrackingController,
	geo *location.ReportedGeolocator,
	logger *slog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		registrar: registrar,
		sessions:  sessions,
		engine:    engine,
		processor: processor,
		tracker:   tracker,
		geo:       geo,
		logger:    logger.With("component", "http_handler"),
	}
}

type RegistrationRequest struct {
	BusNumber string `json:"busNumber"`
}

type RegistrationResponse struct {
	RiderID   int64  `json:"riderId"`
	BusNumber string `json:"busNumber"`
	Category  string `json:"category"`
	Tracking  bool   `json:"tracking"`
}

// RegisterBus validates and registers the rider's chosen bus, then starts
// the location tracking session.
func (h *HTTPHandler) RegisterBus(w http.ResponseWriter, r *http.Request) {
	var req RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	candidate := busnum.Classify(req.BusNumber)
	if !candidate.Valid {
		respondError(w, http.StatusBadRequest, "invalid bus number: "+candidate.Reason)
		return
	}

	riderID, err := h.registrar.RegisterBusNumber(r.Context(), candidate.Number)
	if err != nil {
		h.logger.Error("bus registration failed", "bus", candidate.Number, "error", err)
		respondError(w, http.StatusBadGateway, "registration with arrival service failed")
		return
	}

	h.sessions.SetRegistration(r.Context(), riderID, candidate.Number)
	h.engine.SetRegisteredBus(candidate.Number)

	// The session outlives this request; tied to StopTracking, not to
	// the request context.
	tracking := h.tracker.StartTracking(context.Background())

	h.logger.Info("bus registered", "bus", candidate.Number, "rider_id", riderID, "tracking", tracking)
	respondJSON(w, http.StatusOK, RegistrationResponse{
		RiderID:   riderID,
		BusNumber: candidate.Number,
		Category:  string(candidate.Category),
		Tracking:  tracking,
	})
}

// UnregisterBus stops tracking and clears the rider session.
func (h *HTTPHandler) UnregisterBus(w http.ResponseWriter, r *http.Request) {
	h.tracker.StopTracking()
	h.sessions.Clear(r.Context())
	h.engine.SetRegisteredBus("")

	h.logger.Info("bus registration cleared")
	w.WriteHeader(http.StatusNoContent)
}

type FrameRequest struct {
	Image      string             `json:"image"`
	Detections []domain.Detection `json:"detections"`
}

type FrameResponse struct {
	Accepted int `json:"accepted"`
}

// PostFrame accepts one camera frame (base64 JPEG) with its detector
// output and schedules OCR for the bus regions.
func (h *HTTPHandler) PostFrame(w http.ResponseWriter, r *http.Request) {
	var req FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is not valid base64")
		return
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		respondError(w, http.StatusBadRequest, "image could not be decoded")
		return
	}

	accepted := h.processor.ProcessFrame(r.Context(), pipeline.Frame{
		Image:      img,
		Detections: req.Detections,
	})

	respondJSON(w, http.StatusAccepted, FrameResponse{Accepted: accepted})
}

type PositionRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Denied    bool    `json:"denied"`
}

// PostPosition records a device-reported position fix, or a geolocation
// permission denial.
func (h *HTTPHandler) PostPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Denied {
		h.geo.ReportDenied()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.geo.Report(domain.Position{Latitude: req.Latitude, Longitude: req.Longitude})
	w.WriteHeader(http.StatusNoContent)
}

type VoiceRequest struct {
	Transcript string `json:"transcript"`
}

type VoiceResponse struct {
	Number   string `json:"number"`
	Category string `json:"category"`
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
}

// PostVoice turns a speech transcript into a bus number candidate.
func (h *HTTPHandler) PostVoice(w http.ResponseWriter, r *http.Request) {
	var req VoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	digits := busnum.DigitsFromTranscript(req.Transcript)
	if digits == "" {
		respondError(w, http.StatusUnprocessableEntity, "no bus number heard in transcript")
		return
	}

	candidate := busnum.Classify(digits)
	respondJSON(w, http.StatusOK, VoiceResponse{
		Number:   candidate.Number,
		Category: string(candidate.Category),
		Valid:    candidate.Valid,
		Reason:   candidate.Reason,
	})
}

type StatusResponse struct {
	RegisteredBus   string                  `json:"registeredBus"`
	RiderID         int64                   `json:"riderId"`
	Tracking        bool                    `json:"tracking"`
	HasNearbyStops  bool                    `json:"hasNearbyStops"`
	ConnectionState string                  `json:"connectionState"`
	LastDetected    string                  `json:"lastDetected,omitempty"`
	Snapshot        *domain.ArrivalSnapshot `json:"snapshot,omitempty"`
	ServerTime      time.Time               `json:"serverTime"`
}

// Status reports the full session state in one round trip.
func (h *HTTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		RegisteredBus:   h.sessions.RegisteredBus(),
		RiderID:         h.sessions.RiderID(),
		Tracking:        h.tracker.IsTracking(),
		HasNearbyStops:  h.tracker.HasNearbyBusStops(),
		ConnectionState: h.tracker.ConnectionState().String(),
		LastDetected:    h.engine.LastDetected(),
		ServerTime:      time.Now(),
	}

	if snap, ok := h.engine.Snapshot(); ok {
		resp.Snapshot = &snap
	}

	respondJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
