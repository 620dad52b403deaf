package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("POST /api/devices", h.CreateDevice)
	mux.HandleFunc("PUT /api/devices/{id}", h.UpdateDevice)
	mux.HandleFunc("DELETE /api/devices/{id}", h.DeleteDevice)

	mux.HandleFunc("POST /api/devices/{id}/rent", h.StartRental)
	mux.HandleFunc("POST /api/devices/{id}/end-rental", h.EndRental)
	mux.HandleFunc("POST /api/devices/{id}/request-location", h.RequestLocation)

	mux.HandleFunc("POST /api/sms/receive", h.ReceiveSMS)

	mux.HandleFunc("POST /api/auto-update/start", h.AutoUpdateStart)
	mux.HandleFunc("POST /api/auto-update/stop", h.AutoUpdateStop)
	mux.HandleFunc("GET /api/auto-update/status", h.AutoUpdateStatus)
	mux.HandleFunc("POST /api/auto-update/set-interval", h.AutoUpdateSetInterval)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("fleet-tracker"))
	})

	return mux
}
