package offers

import (
	"sort"

	"mecanimovil/api"
)

// Direction says which side of the negotiation the local user is on.
type Direction string

const (
	DirectionSent     Direction = "sent"     // local user is the prospective buyer
	DirectionReceived Direction = "received" // local user is the seller
)

// Offer is the client-side projection of one negotiation. Exactly one
// Offer exists per underlying id after merging, even when the same entity
// shows up in both the sent and received listings.
type Offer struct {
	ID             int64           `json:"id"`
	Direction      Direction       `json:"direction"`
	Status         Status          `json:"status"`
	Amount         float64         `json:"amount"`
	Counterpart    api.Counterpart `json:"counterpart"`
	Vehicle        string          `json:"vehicle"`
	ConversationID *int64          `json:"conversation_id,omitempty"`
	// Pending marks an optimistic accept/reject awaiting server
	// confirmation. Never survives past the next authoritative fetch.
	Pending bool `json:"pending,omitempty"`
}

func fromRecord(rec api.OfferRecord, dir Direction) Offer {
	return Offer{
		ID:             rec.ID,
		Direction:      dir,
		Status:         MapStatus(rec.Status),
		Amount:         rec.Amount,
		Counterpart:    rec.Counterpart,
		Vehicle:        rec.Vehicle,
		ConversationID: rec.ConversationID,
	}
}

// Merge combines the received (seller-role) and sent (buyer-role) listings
// into one list keyed by offer id. Seller entries are concatenated first so
// that on an id collision the buyer-perspective record overwrites: after a
// sale the local user appears in both listings and the buyer view is the
// one worth showing. The result is sorted by id descending as a recency
// proxy, which also makes ties deterministic.
func Merge(received, sent []api.OfferRecord) []Offer {
	byID := make(map[int64]Offer, len(received)+len(sent))
	order := make([]int64, 0, len(received)+len(sent))

	for _, rec := range received {
		if _, seen := byID[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		byID[rec.ID] = fromRecord(rec, DirectionReceived)
	}
	for _, rec := range sent {
		if _, seen := byID[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		byID[rec.ID] = fromRecord(rec, DirectionSent)
	}

	merged := make([]Offer, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ID > merged[j].ID
	})
	return merged
}
