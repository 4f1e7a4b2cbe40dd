package www

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mecanimovil/engine"
)

func (h *Handlers) apiVehicleHealth(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	if vehicleID == "" {
		h.jsonError(w, "missing vehicle id", http.StatusBadRequest)
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	snap, err := h.engine.Cache().Get(vehicleID, force)
	if err != nil {
		h.jsonAPIError(w, err)
		return
	}

	h.engine.Events.Emit(engine.Event{Type: engine.EventHealthRefreshed, Payload: engine.HealthRefreshedEvent{
		VehicleID: snap.VehicleID,
		Score:     snap.Score,
		Alert:     snap.Alert,
	}})
	h.jsonOK(w, snap)
}

func (h *Handlers) apiInvalidateHealth(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	if vehicleID == "" {
		h.jsonError(w, "missing vehicle id", http.StatusBadRequest)
		return
	}

	h.engine.Cache().Invalidate(vehicleID)
	h.engine.Events.Emit(engine.Event{Type: engine.EventHealthInvalidated, Payload: engine.HealthInvalidatedEvent{
		VehicleID: vehicleID,
		Source:    "manual",
	}})
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	apiOK := false
	if _, err := h.engine.API().Ping(); err == nil {
		apiOK = true
	}
	h.jsonOK(w, map[string]any{
		"status":      "ok",
		"api":         apiOK,
		"messaging":   h.engine.MsgClient().IsConnected(),
		"sse_clients": h.eventHub.ClientCount(),
	})
}

func (h *Handlers) apiListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.engine.DB().ListAuditLog(limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, entries)
}
