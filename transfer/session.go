package transfer

import (
	"log"
	"sync"
	"time"

	"mecanimovil/offers"
)

// Session tracks one outstanding vehicle handover on the seller side.
// The seller shows the token to the buyer and polls the offer until the
// server reports the sale as completed.
type Session struct {
	offerID   int64
	token     string
	expiresAt time.Time
	client    TokenClient
	emitter   Emitter
	interval  time.Duration

	mu       sync.Mutex
	active   bool
	stopChan chan struct{}
}

func (s *Session) OfferID() int64       { return s.offerID }
func (s *Session) Token() string        { return s.token }
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Active reports whether the session is currently polling.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// StartPolling begins watching the offer for completion. Calling it on
// a session that is already polling restarts the watch from scratch.
func (s *Session) StartPolling() {
	s.mu.Lock()
	if s.active {
		close(s.stopChan)
	}
	s.stopChan = make(chan struct{})
	s.active = true
	stop := s.stopChan
	s.mu.Unlock()

	go s.run(stop)
}

// StopPolling cancels the watch. It is safe to call on an idle session,
// and no completion event fires after it returns.
func (s *Session) StopPolling() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.stopChan)
}

func (s *Session) run(stop chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.poll(stop) {
				return
			}
		}
	}
}

// poll checks the offer once and returns true when the watch is done.
// Transport errors are transient: log and keep polling.
func (s *Session) poll(stop chan struct{}) bool {
	offer, err := s.client.GetOffer(s.offerID)
	if err != nil {
		log.Printf("transfer: poll offer %d: %v", s.offerID, err)
		return false
	}

	if offers.MapStatus(offer.Status) != offers.StatusCompleted {
		return false
	}

	// Emit under the lock so a concurrent StopPolling either already
	// returned before this event or suppresses it entirely.
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.stopChan != stop {
		return true
	}
	s.active = false
	s.emitter.EmitTransferCompleted(s.offerID, offer.Vehicle, offer.Buyer)
	return true
}
