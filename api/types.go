package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// APIError is a decoded server error. Code carries the server's business
// error code so callers can distinguish error kinds; a plain transport
// failure never produces an APIError.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// Server business error codes the client cares about.
const (
	CodeTokenExpired = "token_expired"
	CodeTokenInvalid = "token_invalid"
	CodeTokenUsed    = "token_used"
	CodeOfferState   = "offer_state"
)

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}

// IsTokenError reports whether err is a transfer-token business error
// (expired, invalid, or already redeemed). These are retryable by
// re-scanning, unlike transport failures.
func IsTokenError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case CodeTokenExpired, CodeTokenInvalid, CodeTokenUsed:
		return true
	}
	return false
}

// --- Health ---

// HealthSnapshot is the typed envelope for a vehicle health report. The
// cache treats the payload as opaque; the fields below are the few the
// local surface re-serves, everything else stays in Raw.
type HealthSnapshot struct {
	VehicleID  string            `json:"vehicle_id"`
	Score      float64           `json:"score"`
	Components []ComponentHealth `json:"components"`
	Alert      bool              `json:"alert"`
	Raw        json.RawMessage   `json:"-"`
}

type ComponentHealth struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Status string  `json:"status"`
}

// --- Offers ---

// Counterpart is the display identity of the other negotiating party.
type Counterpart struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// OfferRecord is the wire shape of a negotiation, shared by the sent and
// received listings. Status is the raw server code; mapping to client
// semantics happens in the offers package.
type OfferRecord struct {
	ID             int64       `json:"id"`
	Status         string      `json:"status"`
	Amount         float64     `json:"amount"`
	Counterpart    Counterpart `json:"counterpart"`
	Vehicle        string      `json:"vehicle"`
	ConversationID *int64      `json:"conversation_id,omitempty"`
	// Buyer is populated on single-offer reads once a buyer exists; the
	// transfer flow reads the new-owner identity from it.
	Buyer *Counterpart `json:"buyer,omitempty"`
}

type offerListResponse struct {
	Offers []OfferRecord `json:"offers"`
}

type RespondOfferRequest struct {
	Accept bool `json:"accept"`
}

type RespondOfferResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// --- Transfers ---

type TransferToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CompleteTransferRequest struct {
	Token string `json:"token"`
}

type TransferResult struct {
	VehicleID string      `json:"vehicle_id"`
	NewOwner  Counterpart `json:"new_owner"`
}

type PingResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
