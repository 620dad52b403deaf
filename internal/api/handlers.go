package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/toyfleet/fleet-tracker/internal/gateway"
	"github.com/toyfleet/fleet-tracker/internal/inbound"
	"github.com/toyfleet/fleet-tracker/internal/model"
	"github.com/toyfleet/fleet-tracker/internal/repo"
	"github.com/toyfleet/fleet-tracker/internal/scheduler"
	"github.com/toyfleet/fleet-tracker/internal/service"
)

type Handler struct {
	repo       repo.DeviceRepository
	sched      *scheduler.Scheduler
	dispatcher *service.Dispatcher
	stats      *service.Stats
	inbound    *inbound.Processor
}

func NewHandler(
	r repo.DeviceRepository,
	s *scheduler.Scheduler,
	d *service.Dispatcher,
	stats *service.Stats,
	p *inbound.Processor,
) *Handler {
	return &Handler{repo: r, sched: s, dispatcher: d, stats: stats, inbound: p}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ListDevices returns every non-deleted device as a bare array, the
// shape the map frontend consumes.
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

type deviceRequest struct {
	DeviceID    *string  `json:"device_id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	SimNumber   *string  `json:"placa_gps"`
	Color       *string  `json:"color"`
	Tipo        *string  `json:"tipo"`
	Marca       *string  `json:"marca"`
	Modelo      *string  `json:"modelo"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (h *Handler) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Name == nil || *req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	d := model.Device{
		DeviceID:  fmt.Sprintf("DEV_%s", time.Now().UTC().Format("20060102150405")),
		Name:      *req.Name,
		Latitude:  model.DefaultLatitude,
		Longitude: model.DefaultLongitude,
		Tipo:      req.Tipo,
		Marca:     req.Marca,
		Modelo:    req.Modelo,
	}
	if req.DeviceID != nil && *req.DeviceID != "" {
		d.DeviceID = *req.DeviceID
	}
	if req.Description != nil {
		d.Description = *req.Description
	}
	if req.SimNumber != nil {
		d.SimNumber = *req.SimNumber
	}
	if req.Color != nil {
		d.Color = *req.Color
	}
	if req.Latitude != nil {
		d.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		d.Longitude = *req.Longitude
	}

	created, err := h.repo.Create(r.Context(), &d)
	if errors.Is(err, repo.ErrDuplicateSim) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "device created",
		"device":  created,
	})
}

func (h *Handler) UpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	device, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if req.Name != nil {
		device.Name = *req.Name
	}
	if req.Description != nil {
		device.Description = *req.Description
	}
	if req.SimNumber != nil {
		device.SimNumber = *req.SimNumber
	}
	if req.Color != nil {
		device.Color = *req.Color
	}
	if req.Latitude != nil {
		device.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		device.Longitude = *req.Longitude
	}

	err = h.repo.Update(r.Context(), device)
	if errors.Is(err, repo.ErrDuplicateSim) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "device updated",
		"device":  device,
	})
}

func (h *Handler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.repo.SoftDelete(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "device deleted"})
}

func (h *Handler) StartRental(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		DurationHours int `json:"duration_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.DurationHours <= 0 {
		req.DurationHours = 1
	}

	device, err := h.repo.StartRental(r.Context(), id, req.DurationHours)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rental started",
		"device":  device,
	})
}

func (h *Handler) EndRental(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	device, err := h.repo.EndRental(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rental ended",
		"device":  device,
	})
}

// RequestLocation one-shots a location request to a single device,
// outside the scheduler.
func (h *Handler) RequestLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	device, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if device.SimNumber == "" {
		writeError(w, http.StatusBadRequest, "device has no SIM number configured")
		return
	}

	message := ""
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		message = req.Message
	}
	if message == "" {
		message = service.DefaultCommand
	}

	res := h.dispatcher.Send(r.Context(), *device, message)
	if !res.Success {
		status := http.StatusInternalServerError
		if res.Reason == gateway.ReasonNoSim {
			status = http.StatusBadRequest
		}
		writeError(w, status, "sms send failed: "+res.Message)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("location request sent to %s", device.Name),
		"method":  res.Method,
		"to":      res.To,
		"status":  "success",
	})
}

// ReceiveSMS accepts either a form-encoded provider callback
// (From/Body) or a direct JSON shape (phone_number/sms_text), then
// hands the pair to the inbound processor.
func (h *Handler) ReceiveSMS(w http.ResponseWriter, r *http.Request) {
	phoneNumber, smsText, ok := extractInbound(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unrecognized request format")
		return
	}

	outcome, err := h.inbound.Handle(r.Context(), phoneNumber, smsText)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func extractInbound(r *http.Request) (phoneNumber, smsText string, ok bool) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return "", "", false
		}
		if from := r.PostForm.Get("From"); from != "" {
			// Some providers reuse the SMS callback for WhatsApp and
			// prefix the number accordingly.
			return strings.TrimPrefix(from, "whatsapp:"), r.PostForm.Get("Body"), true
		}
		return "", "", false
	}

	var body struct {
		PhoneNumber string `json:"phone_number"`
		From        string `json:"From"`
		SMSText     string `json:"sms_text"`
		Body        string `json:"Body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", "", false
	}

	phoneNumber = body.PhoneNumber
	if phoneNumber == "" {
		phoneNumber = strings.TrimPrefix(body.From, "whatsapp:")
	}
	smsText = body.SMSText
	if smsText == "" {
		smsText = body.Body
	}
	if phoneNumber == "" {
		return "", "", false
	}
	return phoneNumber, smsText, true
}

func (h *Handler) AutoUpdateStart(w http.ResponseWriter, r *http.Request) {
	if !h.dispatcher.HasAvailableBackend() {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "no sms gateway is configured or reachable",
		})
		return
	}

	if !h.sched.Start() {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "already_running",
			"message": "auto update is already running",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "started",
		"message":  fmt.Sprintf("requesting positions every %.0f seconds", h.sched.Interval().Seconds()),
		"interval": h.sched.Interval().Seconds(),
	})
}

func (h *Handler) AutoUpdateStop(w http.ResponseWriter, r *http.Request) {
	if !h.sched.Stop() {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "not_running",
			"message": "auto update is not running",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "stopped",
		"stats":  h.stats.Snapshot(),
	})
}

func (h *Handler) AutoUpdateStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"is_running":       h.sched.IsRunning(),
		"interval_seconds": h.sched.Interval().Seconds(),
		"gateways":         h.dispatcher.Availability(),
		"stats":            h.stats.Snapshot(),
	})
}

func (h *Handler) AutoUpdateSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.sched.SetInterval(time.Duration(req.Seconds) * time.Second); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "updated",
		"new_interval": req.Seconds,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
