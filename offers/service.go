package offers

import (
	"fmt"
	"sync"

	"mecanimovil/api"
)

// ListerResponder is the slice of the remote API the offer service uses.
type ListerResponder interface {
	ListSentOffers() ([]api.OfferRecord, error)
	ListReceivedOffers() ([]api.OfferRecord, error)
	RespondOffer(offerID int64, accept bool) (*api.RespondOfferResponse, error)
}

// Service derives the merged offer list from the two remote listings and
// tracks optimistic accept/reject overlays over the last-known-good list.
// Offers are never persisted locally; the list is re-derived on every
// Refresh.
type Service struct {
	client ListerResponder

	mu        sync.Mutex
	lastKnown []Offer
	// overlay holds optimistic statuses awaiting server confirmation,
	// keyed by offer id. Discarded unconditionally on the next Refresh,
	// whether the server confirms or contradicts the guess.
	overlay map[int64]Status
}

func NewService(client ListerResponder) *Service {
	return &Service{
		client:  client,
		overlay: make(map[int64]Status),
	}
}

// Refresh fetches both listings, merges them, and replaces the last-known
// list. The received (seller-role) listing is fetched first to preserve the
// merge's overwrite order. Any optimistic overlay is dropped: whatever the
// server reports now is authoritative.
func (s *Service) Refresh() ([]Offer, error) {
	received, err := s.client.ListReceivedOffers()
	if err != nil {
		return nil, fmt.Errorf("list received offers: %w", err)
	}
	sent, err := s.client.ListSentOffers()
	if err != nil {
		return nil, fmt.Errorf("list sent offers: %w", err)
	}

	merged := Merge(received, sent)
	s.mu.Lock()
	s.lastKnown = merged
	s.overlay = make(map[int64]Status)
	s.mu.Unlock()
	return merged, nil
}

// Snapshot returns the last-known list with any optimistic overlay applied.
// Overlaid entries are flagged Pending so the UI can tag them.
func (s *Service) Snapshot() []Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.overlay) == 0 {
		return s.lastKnown
	}
	out := make([]Offer, len(s.lastKnown))
	copy(out, s.lastKnown)
	for i := range out {
		if st, ok := s.overlay[out[i].ID]; ok {
			out[i].Status = st
			out[i].Pending = true
		}
	}
	return out
}

// Respond accepts or rejects an offer. The guessed state is applied as an
// overlay immediately; if the server call fails the overlay is reverted so
// the failure cannot masquerade as success. The overlay lives at most until
// the next Refresh.
func (s *Service) Respond(offerID int64, accept bool) (*api.RespondOfferResponse, error) {
	guess := StatusRejected
	if accept {
		guess = StatusAccepted
	}
	s.mu.Lock()
	s.overlay[offerID] = guess
	s.mu.Unlock()

	resp, err := s.client.RespondOffer(offerID, accept)
	if err != nil {
		s.mu.Lock()
		delete(s.overlay, offerID)
		s.mu.Unlock()
		return nil, err
	}
	return resp, nil
}
