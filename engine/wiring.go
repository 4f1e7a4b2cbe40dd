package engine

import "fmt"

func (e *Engine) wireEventHandlers() {
	// When an offer is responded to, audit it under the session user.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(OfferRespondedEvent)
		e.logFn("engine: offer %d responded: %s", ev.OfferID, ev.Status)
		e.db.AppendAudit("offer", ev.OfferID, "responded", ev.Status, ev.Actor)
	}, EventOfferResponded)

	// When a transfer token is issued, audit it under the session user.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TransferTokenIssuedEvent)
		e.db.AppendAudit("transfer", ev.OfferID, "token_issued", fmt.Sprintf("expires %s", ev.ExpiresAt), ev.Actor)
	}, EventTransferTokenIssued)

	// When a transfer completes, audit it and refresh the offer lists so
	// the sold vehicle shows up with its final status.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TransferCompletedEvent)
		detail := ev.Vehicle
		if ev.NewOwner != nil {
			detail = fmt.Sprintf("%s -> %s", ev.Vehicle, ev.NewOwner.Name)
		}
		e.logFn("engine: transfer for offer %d completed (%s)", ev.OfferID, detail)
		e.db.AppendAudit("transfer", ev.OfferID, "completed", detail, "system")

		if _, err := e.offers.Refresh(); err != nil {
			e.logFn("engine: refresh offers after transfer: %v", err)
		}
	}, EventTransferCompleted)

	// Push invalidations: log only, the next health read refetches.
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(HealthInvalidatedEvent)
		e.logFn("engine: health cache invalidated for %s (%s)", ev.VehicleID, ev.Source)
	}, EventHealthInvalidated)
}
