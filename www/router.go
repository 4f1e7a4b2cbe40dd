package www

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"mecanimovil/engine"
	"mecanimovil/transfer"
)

// Handlers serves the local JSON API the mobile UI talks to.
type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub

	watchMu sync.Mutex
	watches map[int64]*transfer.Session // offer ID -> active handover session
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	sessionStore := newSessionStore(eng.AppConfig().Web.SessionSecret)

	h := &Handlers{
		engine:   eng,
		sessions: sessionStore,
		eventHub: hub,
		watches:  make(map[int64]*transfer.Session),
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE
	r.Get("/events", hub.SSEHandler)

	// Auth
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	// API routes (no auth required for read)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/vehicles/{id}/health", h.apiVehicleHealth)
		r.Get("/offers", h.apiListOffers)
		r.Get("/audit", h.apiListAudit)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/vehicles/{id}/health/invalidate", h.apiInvalidateHealth)
			r.Post("/offers/refresh", h.apiRefreshOffers)
			r.Post("/offers/{id}/respond", h.apiRespondOffer)
			r.Post("/offers/{id}/transfer-token", h.apiGenerateTransferToken)
			r.Post("/offers/{id}/watch/start", h.apiStartWatch)
			r.Post("/offers/{id}/watch/stop", h.apiStopWatch)
			r.Post("/transfers/complete", h.apiCompleteTransfer)
			r.Get("/config", h.apiGetConfig)
			r.Post("/config/save", h.apiSaveConfig)
		})
	})

	stopFn := func() {
		hub.Stop()
		h.stopAllWatches()
	}

	return r, stopFn
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.engine.DB().GetAdminUser(req.Username)
	if err != nil || !checkPassword(user.PasswordHash, req.Password) {
		h.jsonError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = req.Username
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: session save error: %v", err)
	}

	h.jsonOK(w, map[string]string{"status": "ok", "username": req.Username})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	session.Values["username"] = ""
	session.Save(r, w)
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) stopAllWatches() {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	for _, s := range h.watches {
		s.StopPolling()
	}
}
