package messaging

import (
	"encoding/json"
	"log"
)

// HealthEvent is the push notification the server sends when a
// vehicle's diagnostic report changes upstream.
type HealthEvent struct {
	VehicleID string `json:"vehicle_id"`
}

// Invalidator drops cached health data for a vehicle.
type Invalidator interface {
	Invalidate(vehicleID string)
}

// Subscriber listens for health-update pushes and invalidates the
// local cache so the next read refetches.
type Subscriber struct {
	client      *Client
	topic       string
	invalidator Invalidator
	onEvent     func(vehicleID string)
}

// NewSubscriber creates a health-update subscriber. onEvent may be nil;
// when set it fires after the cache entry is dropped.
func NewSubscriber(client *Client, topic string, invalidator Invalidator, onEvent func(vehicleID string)) *Subscriber {
	return &Subscriber{
		client:      client,
		topic:       topic,
		invalidator: invalidator,
		onEvent:     onEvent,
	}
}

// Start subscribes to the health topic and begins processing pushes.
func (s *Subscriber) Start() error {
	return s.client.Subscribe(s.topic, s.handleMessage)
}

func (s *Subscriber) handleMessage(payload []byte) {
	var ev HealthEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("unmarshal health event: %v", err)
		return
	}
	if ev.VehicleID == "" {
		return
	}

	s.invalidator.Invalidate(ev.VehicleID)
	if s.onEvent != nil {
		s.onEvent(ev.VehicleID)
	}
}
