package engine

import "mecanimovil/api"

const (
	EventHealthRefreshed EventType = iota + 1
	EventHealthInvalidated
	EventOffersRefreshed
	EventOfferResponded
	EventTransferTokenIssued
	EventTransferCompleted
	EventAPIConnected
	EventAPIDisconnected
	EventMessagingConnected
	EventMessagingDisconnected
)

// --- Event payloads ---

type HealthRefreshedEvent struct {
	VehicleID string
	Score     float64
	Alert     bool
}

type HealthInvalidatedEvent struct {
	VehicleID string
	Source    string // "push", "manual", "force"
}

type OffersRefreshedEvent struct {
	Count int
}

type OfferRespondedEvent struct {
	OfferID int64
	Status  string
	Actor   string // session username of whoever responded
}

type TransferTokenIssuedEvent struct {
	OfferID   int64
	ExpiresAt string
	Actor     string
}

type TransferCompletedEvent struct {
	OfferID  int64
	Vehicle  string
	NewOwner *api.Counterpart
}

type ConnectionEvent struct {
	Detail string
}
