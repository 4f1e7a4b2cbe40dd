package www

import (
	"encoding/json"
	"net/http"
	"time"

	"mecanimovil/engine"
)

func (h *Handlers) apiGenerateTransferToken(w http.ResponseWriter, r *http.Request) {
	offerID, err := urlParamInt64(r, "id")
	if err != nil {
		h.jsonError(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	sess, err := h.engine.Transfers().Generate(offerID)
	if err != nil {
		h.jsonAPIError(w, err)
		return
	}

	// Regenerating replaces any previous session for this offer.
	h.watchMu.Lock()
	if old, ok := h.watches[offerID]; ok {
		old.StopPolling()
	}
	h.watches[offerID] = sess
	h.watchMu.Unlock()

	h.engine.Events.Emit(engine.Event{Type: engine.EventTransferTokenIssued, Payload: engine.TransferTokenIssuedEvent{
		OfferID:   offerID,
		ExpiresAt: sess.ExpiresAt().Format(time.RFC3339),
		Actor:     h.actor(r),
	}})

	h.jsonOK(w, map[string]any{
		"offer_id":   offerID,
		"token":      sess.Token(),
		"expires_at": sess.ExpiresAt(),
	})
}

func (h *Handlers) apiStartWatch(w http.ResponseWriter, r *http.Request) {
	offerID, err := urlParamInt64(r, "id")
	if err != nil {
		h.jsonError(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	h.watchMu.Lock()
	sess, ok := h.watches[offerID]
	h.watchMu.Unlock()
	if !ok {
		h.jsonError(w, "no transfer session for offer", http.StatusNotFound)
		return
	}

	sess.StartPolling()
	h.jsonOK(w, map[string]string{"status": "watching"})
}

func (h *Handlers) apiStopWatch(w http.ResponseWriter, r *http.Request) {
	offerID, err := urlParamInt64(r, "id")
	if err != nil {
		h.jsonError(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	h.watchMu.Lock()
	sess, ok := h.watches[offerID]
	h.watchMu.Unlock()
	if ok {
		sess.StopPolling()
	}
	h.jsonOK(w, map[string]string{"status": "stopped"})
}

func (h *Handlers) apiCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		h.jsonError(w, "missing token", http.StatusBadRequest)
		return
	}

	result, err := h.engine.Transfers().Complete(req.Token)
	if err != nil {
		h.jsonAPIError(w, err)
		return
	}
	h.jsonOK(w, result)
}
