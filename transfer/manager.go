package transfer

import (
	"fmt"
	"time"

	"mecanimovil/api"
)

// TokenClient covers the transfer endpoints of the marketplace API.
type TokenClient interface {
	GenerateTransferToken(offerID int64) (*api.TransferToken, error)
	CompleteTransfer(token string) (*api.TransferResult, error)
	GetOffer(offerID int64) (*api.OfferRecord, error)
}

// Emitter receives transfer lifecycle events.
type Emitter interface {
	EmitTransferCompleted(offerID int64, vehicle string, newOwner *api.Counterpart)
}

// Manager creates transfer sessions and completes handovers on the
// buyer side.
type Manager struct {
	client   TokenClient
	emitter  Emitter
	interval time.Duration
}

func NewManager(client TokenClient, emitter Emitter, interval time.Duration) *Manager {
	return &Manager{
		client:   client,
		emitter:  emitter,
		interval: interval,
	}
}

// Generate requests a single-use transfer token for the given offer and
// returns a session ready to watch for the buyer's completion.
func (m *Manager) Generate(offerID int64) (*Session, error) {
	tok, err := m.client.GenerateTransferToken(offerID)
	if err != nil {
		return nil, fmt.Errorf("generate transfer token: %w", err)
	}

	return &Session{
		offerID:   offerID,
		token:     tok.Token,
		expiresAt: tok.ExpiresAt,
		client:    m.client,
		emitter:   m.emitter,
		interval:  m.interval,
	}, nil
}

// Complete redeems a transfer token on the buyer side. Business
// rejections come back as *api.APIError with a code the caller can
// inspect (token_expired, token_invalid, token_used, offer_state).
func (m *Manager) Complete(token string) (*api.TransferResult, error) {
	return m.client.CompleteTransfer(token)
}
