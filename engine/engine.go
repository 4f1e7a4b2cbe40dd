package engine

import (
	"log"
	"time"

	"mecanimovil/api"
	"mecanimovil/config"
	"mecanimovil/healthcache"
	"mecanimovil/messaging"
	"mecanimovil/offers"
	"mecanimovil/store"
	"mecanimovil/transfer"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	API        *api.Client
	Cache      *healthcache.Cache
	Offers     *offers.Service
	MsgClient  *messaging.Client
	LogFunc    LogFunc
	Debug      bool
}

type Engine struct {
	cfg          *config.Config
	configPath   string
	db           *store.DB
	api          *api.Client
	cache        *healthcache.Cache
	offers       *offers.Service
	msgClient    *messaging.Client
	transfers    *transfer.Manager
	Events       *EventBus
	logFn        LogFunc
	stopChan     chan struct{}
	apiConnected bool
	msgConnected bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	return &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		api:        c.API,
		cache:      c.Cache,
		offers:     c.Offers,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}
}

func (e *Engine) Start() {
	te := &transferEmitter{bus: e.Events}
	e.transfers = transfer.NewManager(e.api, te, e.cfg.API.PollInterval)

	e.wireEventHandlers()

	// Server-side health pushes drop the local cache entry so the next
	// read refetches.
	sub := messaging.NewSubscriber(e.msgClient, e.cfg.Messaging.HealthTopic, e.cache, func(vehicleID string) {
		e.Events.Emit(Event{Type: EventHealthInvalidated, Payload: HealthInvalidatedEvent{
			VehicleID: vehicleID,
			Source:    "push",
		}})
	})
	if e.msgClient.IsConnected() {
		if err := sub.Start(); err != nil {
			e.logFn("engine: subscribe health topic: %v", err)
		}
	}

	// Emit initial connection status
	e.checkConnectionStatus()

	// Start periodic connection health check
	go e.connectionHealthLoop()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	select {
	case e.stopChan <- struct{}{}:
	default:
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB               { return e.db }
func (e *Engine) AppConfig() *config.Config   { return e.cfg }
func (e *Engine) ConfigPath() string          { return e.configPath }
func (e *Engine) API() *api.Client            { return e.api }
func (e *Engine) Cache() *healthcache.Cache   { return e.cache }
func (e *Engine) Offers() *offers.Service     { return e.offers }
func (e *Engine) Transfers() *transfer.Manager { return e.transfers }
func (e *Engine) MsgClient() *messaging.Client { return e.msgClient }

func (e *Engine) checkConnectionStatus() {
	// Marketplace API
	if _, err := e.api.Ping(); err == nil {
		if !e.apiConnected {
			e.apiConnected = true
			e.Events.Emit(Event{Type: EventAPIConnected, Payload: ConnectionEvent{Detail: e.api.BaseURL() + " reachable"}})
		}
	} else {
		if e.apiConnected {
			e.apiConnected = false
			e.Events.Emit(Event{Type: EventAPIDisconnected, Payload: ConnectionEvent{Detail: err.Error()}})
		}
	}

	// Messaging
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureAPI applies API config changes live.
func (e *Engine) ReconfigureAPI() {
	e.api.Reconfigure(e.cfg.API.BaseURL, e.cfg.API.Timeout)
	e.logFn("engine: api reconfigured (%s)", e.cfg.API.BaseURL)
	e.checkConnectionStatus()
}
