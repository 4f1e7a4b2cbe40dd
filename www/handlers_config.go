package www

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

func (h *Handlers) apiGetConfig(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.AppConfig())
}

type configSaveRequest struct {
	API *struct {
		BaseURL      string `json:"base_url"`
		Timeout      string `json:"timeout"`
		PollInterval string `json:"poll_interval"`
	} `json:"api,omitempty"`
	Cache *struct {
		TTL  string `json:"ttl"`
		Tier string `json:"tier"`
	} `json:"cache,omitempty"`
	Messaging *struct {
		Backend     string   `json:"backend"`
		MQTTBroker  string   `json:"mqtt_broker"`
		MQTTPort    int      `json:"mqtt_port"`
		Brokers     []string `json:"kafka_brokers"`
		HealthTopic string   `json:"health_topic"`
	} `json:"messaging,omitempty"`
}

func (h *Handlers) apiSaveConfig(w http.ResponseWriter, r *http.Request) {
	var req configSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg := h.engine.AppConfig()
	reconfigureAPI := false

	// Hold the config lock across the field updates so a concurrent
	// reader never sees a half-applied save. Save takes the same lock,
	// so release before persisting.
	cfg.Lock()

	if req.API != nil {
		if req.API.BaseURL != "" {
			cfg.API.BaseURL = req.API.BaseURL
		}
		if d, err := time.ParseDuration(req.API.Timeout); err == nil {
			cfg.API.Timeout = d
		}
		if d, err := time.ParseDuration(req.API.PollInterval); err == nil {
			cfg.API.PollInterval = d
		}
		reconfigureAPI = true
	}

	if req.Cache != nil {
		if d, err := time.ParseDuration(req.Cache.TTL); err == nil {
			cfg.Cache.TTL = d
		}
		if req.Cache.Tier != "" {
			cfg.Cache.Tier = req.Cache.Tier
		}
	}

	if req.Messaging != nil {
		if req.Messaging.Backend != "" {
			cfg.Messaging.Backend = req.Messaging.Backend
		}
		if req.Messaging.MQTTBroker != "" {
			cfg.Messaging.MQTT.Broker = req.Messaging.MQTTBroker
		}
		if req.Messaging.MQTTPort != 0 {
			cfg.Messaging.MQTT.Port = req.Messaging.MQTTPort
		}
		if len(req.Messaging.Brokers) > 0 {
			cfg.Messaging.Kafka.Brokers = req.Messaging.Brokers
		}
		if req.Messaging.HealthTopic != "" {
			cfg.Messaging.HealthTopic = req.Messaging.HealthTopic
		}
	}

	cfg.Unlock()

	if err := cfg.Save(h.engine.ConfigPath()); err != nil {
		log.Printf("config: save error: %v", err)
		h.jsonError(w, "failed to save: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if reconfigureAPI {
		h.engine.ReconfigureAPI()
	}

	h.jsonOK(w, map[string]string{"status": "saved"})
}
