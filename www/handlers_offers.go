package www

import (
	"encoding/json"
	"net/http"
	"strconv"

	"mecanimovil/engine"
)

func (h *Handlers) apiListOffers(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	if refresh {
		if _, err := h.engine.Offers().Refresh(); err != nil {
			h.jsonAPIError(w, err)
			return
		}
	}
	h.jsonOK(w, h.engine.Offers().Snapshot())
}

func (h *Handlers) apiRefreshOffers(w http.ResponseWriter, r *http.Request) {
	merged, err := h.engine.Offers().Refresh()
	if err != nil {
		h.jsonAPIError(w, err)
		return
	}
	h.engine.Events.Emit(engine.Event{Type: engine.EventOffersRefreshed, Payload: engine.OffersRefreshedEvent{
		Count: len(merged),
	}})
	h.jsonOK(w, merged)
}

func (h *Handlers) apiRespondOffer(w http.ResponseWriter, r *http.Request) {
	offerID, err := urlParamInt64(r, "id")
	if err != nil {
		h.jsonError(w, "invalid offer id", http.StatusBadRequest)
		return
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.engine.Offers().Respond(offerID, req.Accept)
	if err != nil {
		h.jsonAPIError(w, err)
		return
	}

	h.engine.Events.Emit(engine.Event{Type: engine.EventOfferResponded, Payload: engine.OfferRespondedEvent{
		OfferID: offerID,
		Status:  resp.Status,
		Actor:   h.actor(r),
	}})
	h.jsonOK(w, resp)
}
